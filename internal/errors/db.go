package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// "Key (account_id, platform_post_id)=(...) already exists."
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// "... is not present in table "accounts"."
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// tableNames maps tables to the names used in operator-facing messages.
var tableNames = map[string]string{
	"jobs":               "job",
	"accounts":           "account",
	"posts":              "post",
	"follower_snapshots": "follower snapshot",
	"monthly_metrics":    "monthly metrics",
	"collection_logs":    "collection log",
}

// MapDBError maps database errors to AppError values:
//   - sql.ErrNoRows and pgx.ErrNoRows become NotFound
//   - unique and serialization failures become Conflict
//   - foreign key violations become ForeignKey
//   - check and NOT NULL violations become Validation
//   - connection failures become Unavailable
//   - context deadlines and cancellations become Timeout and Canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrCodeTimeout, "database call timed out")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, ErrCodeCanceled, "database call canceled")
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return Wrap(err, ErrCodeNotFound, "row not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Wrap(err, ErrCodeUnavailable, "database unreachable")
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch {
	case pgErr.Code == pgerrcode.UniqueViolation:
		return &AppError{Code: ErrCodeConflict, Message: "row already exists", Field: uniqueField(pgErr), Cause: pgErr}
	case pgErr.Code == pgerrcode.SerializationFailure, pgErr.Code == pgerrcode.DeadlockDetected:
		return Wrap(pgErr, ErrCodeConflict, "concurrent update, try again")
	case pgErr.Code == pgerrcode.ForeignKeyViolation:
		return Wrap(pgErr, ErrCodeForeignKey, foreignKeyMessage(pgErr))
	case pgErr.Code == pgerrcode.CheckViolation:
		return &AppError{Code: ErrCodeValidation, Message: "value violates " + constraintLabel(pgErr), Field: pgErr.ColumnName, Cause: pgErr}
	case pgErr.Code == pgerrcode.NotNullViolation:
		return &AppError{Code: ErrCodeValidation, Message: "required value is missing", Field: pgErr.ColumnName, Cause: pgErr}
	case pgerrcode.IsConnectionException(pgErr.Code), pgErr.Code == pgerrcode.AdminShutdown,
		pgErr.Code == pgerrcode.CannotConnectNow, pgErr.Code == pgerrcode.TooManyConnections:
		return Wrap(pgErr, ErrCodeUnavailable, "database unavailable")
	default:
		return Wrap(pgErr, ErrCodeInternal, "database error")
	}
}

// uniqueField prefers the column metadata, then the Detail message.
func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return ""
}

func foreignKeyMessage(pgErr *pgconn.PgError) string {
	if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "referenced " + tableLabel(m[1]) + " does not exist"
	}
	if pgErr.TableName != "" {
		return tableLabel(pgErr.TableName) + " references a missing row"
	}
	return "referenced row does not exist"
}

func constraintLabel(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != "" {
		return "constraint " + pgErr.ConstraintName
	}
	return "a check constraint"
}

func tableLabel(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	if name, ok := tableNames[table]; ok {
		return name
	}
	return strings.ReplaceAll(table, "_", " ")
}
