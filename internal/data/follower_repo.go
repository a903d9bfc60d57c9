package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	apperrors "github.com/JuliaLoth/NLWW-socialmediamonitor/internal/errors"
	"github.com/google/uuid"
)

const followerColumns = `id, account_id, date, followers, following, collected_at`

// FollowerRepo stores daily follower snapshots in Postgres.
type FollowerRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewFollowerRepo creates a new FollowerRepo.
func NewFollowerRepo(db *sql.DB, cfg RepoConfig) *FollowerRepo {
	tp, logger := cfg.resolve()
	return &FollowerRepo{DB: db, timeProvider: tp, logger: logger.With("component", "follower_repo")}
}

// snapshotDay truncates t to its UTC calendar day.
func snapshotDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Upsert stores the snapshot, replacing an earlier one for the same account and day.
func (r *FollowerRepo) Upsert(ctx context.Context, snap *model.FollowerSnapshot) error {
	if snap == nil || snap.AccountID == "" {
		return ErrAccountIDRequired
	}
	now := r.timeProvider.Now().UTC()
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.Date.IsZero() {
		snap.Date = now
	}
	snap.Date = snapshotDay(snap.Date)
	if snap.CollectedAt.IsZero() {
		snap.CollectedAt = now
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO follower_snapshots (`+followerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, date) DO UPDATE SET
			followers = EXCLUDED.followers,
			following = EXCLUDED.following,
			collected_at = EXCLUDED.collected_at
	`, snap.ID, snap.AccountID, snap.Date, snap.Followers, snap.Following, snap.CollectedAt)
	if err != nil {
		return fmt.Errorf("upsert follower snapshot for %s: %w", snap.AccountID, apperrors.MapDBError(err))
	}
	return nil
}

func scanSnapshot(scanner rowScanner) (*model.FollowerSnapshot, error) {
	var s model.FollowerSnapshot
	var following sql.NullInt64
	if err := scanner.Scan(&s.ID, &s.AccountID, &s.Date, &s.Followers, &following, &s.CollectedAt); err != nil {
		return nil, err
	}
	if following.Valid {
		v := int(following.Int64)
		s.Following = &v
	}
	s.Date = snapshotDay(s.Date)
	s.CollectedAt = s.CollectedAt.UTC()
	return &s, nil
}

// History returns snapshots of one account in [From, To), oldest first.
func (r *FollowerRepo) History(ctx context.Context, params core.FollowerRangeParams) ([]*model.FollowerSnapshot, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+followerColumns+`
		FROM follower_snapshots
		WHERE account_id = $1 AND date >= $2 AND date < $3
		ORDER BY date ASC
	`, params.AccountID, snapshotDay(params.From), snapshotDay(params.To))
	if err != nil {
		return nil, fmt.Errorf("follower history of %s: %w", params.AccountID, apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []*model.FollowerSnapshot
	for rows.Next() {
		s, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan follower snapshot: %w", scanErr)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Latest returns the newest snapshot of the account, or nil when none exists.
func (r *FollowerRepo) Latest(ctx context.Context, accountID string) (*model.FollowerSnapshot, error) {
	s, err := scanSnapshot(r.DB.QueryRowContext(ctx, `
		SELECT `+followerColumns+`
		FROM follower_snapshots
		WHERE account_id = $1
		ORDER BY date DESC
		LIMIT 1
	`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("latest follower snapshot of %s: %w", accountID, apperrors.MapDBError(err))
	}
	return s, nil
}
