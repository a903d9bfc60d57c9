package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data/pgxutil"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	apperrors "github.com/JuliaLoth/NLWW-socialmediamonitor/internal/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const postColumns = `id, account_id, platform_post_id, posted_at, content_type, likes, comments, shares,
	views, url, caption_snippet, hashtags, collected_at`

// PostRepo stores collected posts in Postgres.
type PostRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewPostRepo creates a new PostRepo.
func NewPostRepo(db *sql.DB, cfg RepoConfig) *PostRepo {
	tp, logger := cfg.resolve()
	return &PostRepo{DB: db, timeProvider: tp, logger: logger.With("component", "post_repo")}
}

const upsertPostSQL = `
	INSERT INTO posts (
		id, account_id, platform_post_id, posted_at, content_type, likes, comments, shares,
		views, url, caption_snippet, hashtags, collected_at, last_updated)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	ON CONFLICT (account_id, platform_post_id) DO UPDATE SET
		likes = EXCLUDED.likes,
		comments = EXCLUDED.comments,
		shares = EXCLUDED.shares,
		views = EXCLUDED.views,
		last_updated = EXCLUDED.last_updated
	RETURNING id, (xmax = 0) AS inserted`

// Upsert inserts new posts and refreshes engagement counters of known ones in a single batch.
// Returns the number of posts that were new.
func (r *PostRepo) Upsert(ctx context.Context, posts []*model.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	now := r.timeProvider.Now().UTC()
	batch := &pgx.Batch{}
	for _, p := range posts {
		if p.AccountID == "" || p.PlatformPostID == "" {
			return 0, errors.New("post requires account_id and platform_post_id")
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CollectedAt.IsZero() {
			p.CollectedAt = now
		}
		hashtags, err := encodeHashtags(p.Hashtags)
		if err != nil {
			return 0, err
		}
		batch.Queue(upsertPostSQL,
			p.ID, p.AccountID, p.PlatformPostID, p.PostedAt.UTC(), nullIfEmpty(string(p.ContentType)),
			p.Likes, p.Comments, p.Shares, p.Views, nullIfEmpty(p.URL), nullIfEmpty(p.Caption),
			hashtags, p.CollectedAt,
		)
	}

	inserted := 0
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			br := tx.SendBatch(ctx, batch)
			for i, p := range posts {
				var isNew bool
				if err := br.QueryRow().Scan(&p.ID, &isNew); err != nil {
					_ = br.Close()
					return fmt.Errorf("upsert post %d (%s): %w", i, p.PlatformPostID, apperrors.MapDBError(err))
				}
				if isNew {
					inserted++
				}
			}
			if cerr := br.Close(); cerr != nil {
				return fmt.Errorf("batch close: %w", cerr)
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}

	r.logger.DebugContext(ctx, "posts upserted", "total", len(posts), "new", inserted)
	return inserted, nil
}

func encodeHashtags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode hashtags: %w", apperrors.MapDBError(err))
	}
	return b, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanPost(scanner rowScanner) (*model.Post, error) {
	var (
		p                         model.Post
		contentType, url, caption sql.NullString
		views                     sql.NullInt64
		hashtags                  []byte
	)
	if err := scanner.Scan(
		&p.ID, &p.AccountID, &p.PlatformPostID, &p.PostedAt, &contentType,
		&p.Likes, &p.Comments, &p.Shares, &views, &url, &caption, &hashtags, &p.CollectedAt,
	); err != nil {
		return nil, err
	}
	p.ContentType = model.ContentType(contentType.String)
	p.URL = url.String
	p.Caption = caption.String
	if views.Valid {
		v := int(views.Int64)
		p.Views = &v
	}
	if len(hashtags) > 0 {
		if err := json.Unmarshal(hashtags, &p.Hashtags); err != nil {
			return nil, fmt.Errorf("decode hashtags of post %s: %w", p.ID, apperrors.MapDBError(err))
		}
	}
	p.PostedAt = p.PostedAt.UTC()
	p.CollectedAt = p.CollectedAt.UTC()
	return &p, nil
}

// LatestPostedAt returns the newest posted_at of the account, or nil when it has no posts.
func (r *PostRepo) LatestPostedAt(ctx context.Context, accountID string) (*time.Time, error) {
	var latest sql.NullTime
	err := r.DB.QueryRowContext(ctx, `SELECT max(posted_at) FROM posts WHERE account_id = $1`, accountID).Scan(&latest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest post of %s: %w", accountID, apperrors.MapDBError(err))
	}
	return cloneNullableTime(latest), nil
}

// ListByAccount returns posts of one account in [From, To), oldest first.
// A zero To means no upper bound.
func (r *PostRepo) ListByAccount(ctx context.Context, params core.PostRangeParams) ([]*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE account_id = $1 AND posted_at >= $2`
	args := []any{params.AccountID, params.From.UTC()}
	if !params.To.IsZero() {
		query += ` AND posted_at < $3`
		args = append(args, params.To.UTC())
	}
	query += ` ORDER BY posted_at ASC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts of %s: %w", params.AccountID, apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []*model.Post
	for rows.Next() {
		p, scanErr := scanPost(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan post: %w", scanErr)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AccountsWithPostsSince returns ids of accounts that posted at or after since.
func (r *PostRepo) AccountsWithPostsSince(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT DISTINCT account_id
		FROM posts
		WHERE posted_at >= $1
		ORDER BY account_id
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("accounts with posts since %s: %w", since.Format(time.DateOnly), apperrors.MapDBError(err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("scan account id: %w", scanErr)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
