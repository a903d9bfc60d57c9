package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_Codes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: fmt.Errorf("claim next job: %w", context.Canceled), wantCode: ErrCodeCanceled},
		{name: "sql no rows", err: sql.ErrNoRows, wantCode: ErrCodeNotFound},
		{name: "pgx no rows", err: pgx.ErrNoRows, wantCode: ErrCodeNotFound},
		{
			name:     "serialization failure",
			err:      &pgconn.PgError{Code: pgerrcode.SerializationFailure},
			wantCode: ErrCodeConflict,
		},
		{
			name:     "deadlock",
			err:      &pgconn.PgError{Code: pgerrcode.DeadlockDetected},
			wantCode: ErrCodeConflict,
		},
		{
			name:     "check violation",
			err:      &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "jobs_priority_check"},
			wantCode: ErrCodeValidation,
		},
		{
			name:     "not null violation",
			err:      &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "type"},
			wantCode: ErrCodeValidation,
		},
		{
			name:     "connection failure",
			err:      &pgconn.PgError{Code: pgerrcode.ConnectionFailure},
			wantCode: ErrCodeUnavailable,
		},
		{
			name:     "too many connections",
			err:      &pgconn.PgError{Code: pgerrcode.TooManyConnections},
			wantCode: ErrCodeUnavailable,
		},
		{
			name:     "unhandled code",
			err:      &pgconn.PgError{Code: pgerrcode.DivisionByZero},
			wantCode: ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			if !IsAppError(err, tt.wantCode) {
				t.Errorf("MapDBError() code = %q, want %q", GetCode(err), tt.wantCode)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("MapDBError() lost the cause: %v", err)
			}
		})
	}
}

func TestMapDBError_UniqueViolationField(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantField string
	}{
		{
			name:      "column metadata",
			pgErr:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, ColumnName: "id"},
			wantField: "id",
		},
		{
			name: "detail message",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.UniqueViolation,
				Detail: "Key (account_id, platform_post_id)=(nl_instagram_nlinde, C1x) already exists.",
			},
			wantField: "account_id, platform_post_id",
		},
		{
			name:  "nothing to go on",
			pgErr: &pgconn.PgError{Code: pgerrcode.UniqueViolation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsConflict(err) {
				t.Fatalf("MapDBError() code = %q, want conflict", GetCode(err))
			}
			if got := GetField(err); got != tt.wantField {
				t.Errorf("GetField() = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestMapDBError_ForeignKeyMessage(t *testing.T) {
	tests := []struct {
		name    string
		pgErr   *pgconn.PgError
		wantMsg string
	}{
		{
			name: "missing account",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.ForeignKeyViolation,
				Detail: `Key (account_id)=(xx_twitter_ghost) is not present in table "accounts".`,
			},
			wantMsg: "referenced account does not exist",
		},
		{
			name:    "table metadata",
			pgErr:   &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, TableName: "follower_snapshots"},
			wantMsg: "follower snapshot references a missing row",
		},
		{
			name:    "no metadata",
			pgErr:   &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation},
			wantMsg: "referenced row does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			var appErr *AppError
			if !errors.As(err, &appErr) || appErr.Code != ErrCodeForeignKey {
				t.Fatalf("MapDBError() = %v, want foreign key AppError", err)
			}
			if appErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", appErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestMapDBError_PassThrough(t *testing.T) {
	plain := errors.New("some driver error")
	if got := MapDBError(plain); !errors.Is(got, plain) || GetCode(got) != "" {
		t.Errorf("MapDBError(plain) = %v, want unchanged", got)
	}

	already := Validation("bad payload")
	if got := MapDBError(already); got != error(already) {
		t.Errorf("MapDBError(AppError) = %v, want same value", got)
	}
}
