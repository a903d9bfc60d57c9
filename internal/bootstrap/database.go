package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/redis/go-redis/v9"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/config"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/migrate"
)

const (
	connectTimeout  = 5 * time.Second
	connMaxLifetime = 5 * time.Minute
	maxIdleConns    = 5
)

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

func (c DatabaseConfig) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// postgresDSN builds a pgx URL; url.URL escapes credentials.
func postgresDSN(cfg config.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// ConnectDB opens the Postgres pool and pings it before returning.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg.DBConfig))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	maxOpen := max(cfg.DBConfig.MaxOpenConns, 1)
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(maxIdleConns, maxOpen))
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping database %s: %w", cfg.DBConfig.Host, err), db.Close())
	}

	cfg.logger().Info("database connected",
		"host", cfg.DBConfig.Host,
		"port", cfg.DBConfig.Port,
		"database", cfg.DBConfig.Name,
		"max_open_conns", maxOpen,
	)
	return db, nil
}

// redisOptions maps RedisConfig onto go-redis universal options. The
// returned label names the deployment without credentials.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	switch {
	case cfg.UseCluster:
		addrs := trimAll(cfg.ClusterNodes)
		if len(addrs) == 0 {
			return nil, "", errors.New("redis cluster mode needs REDIS_CLUSTER_NODES")
		}
		return &redis.UniversalOptions{
			Addrs:         addrs,
			Password:      cfg.Password,
			IsClusterMode: true,
		}, "cluster:" + strings.Join(addrs, ","), nil

	case cfg.UseSentinel:
		addrs := trimAll(cfg.SentinelNodes)
		if len(addrs) == 0 || cfg.SentinelMasterName == "" {
			return nil, "", errors.New("redis sentinel mode needs REDIS_SENTINEL_NODES and REDIS_SENTINEL_MASTER_NAME")
		}
		return &redis.UniversalOptions{
			Addrs:            addrs,
			MasterName:       cfg.SentinelMasterName,
			Password:         cfg.Password,
			SentinelPassword: cfg.SentinelPassword,
		}, "sentinel:" + cfg.SentinelMasterName, nil
	}

	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, "", errors.New("redis needs REDIS_URI")
	}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		return &redis.UniversalOptions{Addrs: []string{uri}, Password: cfg.Password}, uri, nil
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, "", fmt.Errorf("parse redis url: %w", err)
	}
	return &redis.UniversalOptions{
		Addrs:     []string{opt.Addr},
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, opt.Addr, nil
}

func trimAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ConnectRedis creates a direct, sentinel or cluster client and pings it.
//
//nolint:ireturn // the concrete client type depends on the configured mode.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	opts, label, err := redisOptions(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err = client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("ping redis %s: %w", label, err), client.Close())
	}

	cfg.logger().Info("redis connected", "addr", label)
	return client, nil
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	start := time.Now()
	if err := migrate.RunWithOptions(ctx, db, migrate.Options{Logger: logger}); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed", "duration", time.Since(start))
	}
	return nil
}
