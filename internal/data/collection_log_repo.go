package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	apperrors "github.com/JuliaLoth/NLWW-socialmediamonitor/internal/errors"
	"github.com/google/uuid"
)

// CollectionLogRepo records collection attempts in Postgres.
type CollectionLogRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewCollectionLogRepo creates a new CollectionLogRepo.
func NewCollectionLogRepo(db *sql.DB, cfg RepoConfig) *CollectionLogRepo {
	_, logger := cfg.resolve()
	return &CollectionLogRepo{DB: db, logger: logger.With("component", "collection_log_repo")}
}

// Insert appends one collection log row.
func (r *CollectionLogRepo) Insert(ctx context.Context, l *model.CollectionLog) error {
	if l == nil || l.AccountID == "" {
		return ErrAccountIDRequired
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO collection_logs (id, account_id, platform, status, posts_collected, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, l.ID, l.AccountID, string(l.Platform), string(l.Status), l.PostsCollected, l.ErrorMessage,
		l.StartedAt.UTC(), l.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert collection log for %s: %w", l.AccountID, apperrors.MapDBError(err))
	}
	return nil
}
