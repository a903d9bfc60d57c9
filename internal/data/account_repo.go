package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	apperrors "github.com/JuliaLoth/NLWW-socialmediamonitor/internal/errors"
)

const accountColumns = `id, country, platform, handle, display_name, status, notes, created_at`

// AccountRepo stores monitored accounts in Postgres.
type AccountRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(db *sql.DB, cfg RepoConfig) *AccountRepo {
	tp, logger := cfg.resolve()
	return &AccountRepo{DB: db, timeProvider: tp, logger: logger.With("component", "account_repo")}
}

// resolve returns the configured collaborators with defaults applied.
func (c RepoConfig) resolve() (TimeProvider, *slog.Logger) {
	tp := c.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return tp, logger
}

// Upsert inserts the account or refreshes its display name, status and notes.
// Country, platform and handle are part of the id and never change.
func (r *AccountRepo) Upsert(ctx context.Context, a *model.Account) error {
	if a == nil {
		return errors.New("account is required")
	}
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = model.AccountActive
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.timeProvider.Now().UTC()
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			status = EXCLUDED.status,
			notes = EXCLUDED.notes
	`, a.ID, a.Country, string(a.Platform), a.Handle, a.DisplayName, string(a.Status), a.Notes, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.ID, apperrors.MapDBError(err))
	}
	return nil
}

func scanAccount(scanner rowScanner) (*model.Account, error) {
	var (
		a                  model.Account
		platform, status   string
		displayName, notes sql.NullString
	)
	if err := scanner.Scan(&a.ID, &a.Country, &platform, &a.Handle, &displayName, &status, &notes, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Platform = model.Platform(platform)
	a.Status = model.AccountStatus(status)
	a.DisplayName = cloneNullableString(displayName)
	a.Notes = cloneNullableString(notes)
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

// GetByID returns the account or ErrAccountNotFound.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	a, err := scanAccount(r.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, apperrors.MapDBError(err))
	}
	return a, nil
}

// List returns accounts ordered by country, platform and handle.
func (r *AccountRepo) List(ctx context.Context, opts model.AccountListOptions) ([]*model.Account, error) {
	b := &jobFilterQueryBuilder{
		query:  `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`,
		argIdx: 1,
	}
	if opts.Country != "" {
		b.addFilter("country", opts.Country)
	}
	if opts.Platform != "" {
		b.addFilter("platform", string(opts.Platform))
	}
	if opts.ActiveOnly {
		b.query += ` AND status = 'active'`
	}
	b.query += ` ORDER BY country, platform, handle`

	rows, err := r.DB.QueryContext(ctx, b.query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []*model.Account
	for rows.Next() {
		a, scanErr := scanAccount(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan account: %w", scanErr)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByPlatform counts active accounts per platform.
func (r *AccountRepo) CountByPlatform(ctx context.Context) ([]model.PlatformCount, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT platform, count(*)
		FROM accounts
		WHERE status = 'active'
		GROUP BY platform
		ORDER BY platform
	`)
	if err != nil {
		return nil, fmt.Errorf("count accounts by platform: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []model.PlatformCount
	for rows.Next() {
		var pc model.PlatformCount
		var platform string
		if scanErr := rows.Scan(&platform, &pc.Count); scanErr != nil {
			return nil, fmt.Errorf("scan platform count: %w", scanErr)
		}
		pc.Platform = model.Platform(platform)
		out = append(out, pc)
	}
	return out, rows.Err()
}
