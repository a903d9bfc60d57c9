// Package migrate applies the embedded Postgres schema migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data/pgxutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Options configures a migration run.
type Options struct {
	Logger *slog.Logger
}

// migration is one embedded file; version is its name without ".sql".
type migration struct {
	version string
	file    string
}

// Run applies every embedded migration not yet recorded in
// schema_migrations. It is safe to call repeatedly.
func Run(ctx context.Context, db *sql.DB) error {
	return RunWithOptions(ctx, db, Options{})
}

// RunWithOptions is Run with an explicit logger.
func RunWithOptions(ctx context.Context, db *sql.DB, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "migrations")

	if err := ensureVersionTable(ctx, db); err != nil {
		return err
	}
	migrations, err := embedded()
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range migrations {
		done, err := isApplied(ctx, db, m.version)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		logger.InfoContext(ctx, "applying migration", "version", m.version)
		if err = apply(ctx, db, m); err != nil {
			return err
		}
		applied++
	}
	logger.DebugContext(ctx, "migrations up to date", "applied", applied, "known", len(migrations))
	return nil
}

// Applied returns the versions recorded in schema_migrations, oldest first.
func Applied(ctx context.Context, db *sql.DB) ([]string, error) {
	if err := ensureVersionTable(ctx, db); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err = rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func ensureVersionTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// embedded lists the migration files in lexical order.
func embedded() ([]migration, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list embedded migrations: %w", err)
	}
	sort.Strings(names)
	out := make([]migration, 0, len(names))
	for _, name := range names {
		file := path.Base(name)
		out = append(out, migration{version: strings.TrimSuffix(file, ".sql"), file: file})
	}
	return out, nil
}

func isApplied(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var ok bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return ok, nil
}

// apply runs the file and records its version in one transaction.
func apply(ctx context.Context, db *sql.DB, m migration) error {
	body, err := migrationsFS.ReadFile("migrations/" + m.file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.file, err)
	}
	return pgxutil.WithSQLTx(ctx, db, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(body)); err != nil {
				return fmt.Errorf("exec migration %s: %w", m.file, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
				return fmt.Errorf("record migration %s: %w", m.version, err)
			}
			return nil
		},
	})
}
