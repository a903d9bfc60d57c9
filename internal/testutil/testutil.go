package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/redis/go-redis/v9"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/migrate"
)

const pingTimeout = 2 * time.Second

// TestingTB is the subset of testing.TB the helpers need.
type TestingTB interface {
	Helper()
	Skip(args ...any)
	Skipf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
	Cleanup(func())
}

// TestDBConfig points the integration tests at a Postgres instance.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig reads TEST_DB_*; the port defaults to the docker
// compose test profile (55432).
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "socialmonitor"),
		Password: envOr("TEST_DB_PASSWORD", "socialmonitor"),
		DBName:   envOr("TEST_DB_NAME", "socialmonitor"),
	}
}

// DSN renders the config as a pgx URL, optionally scoped to a schema.
func (c TestDBConfig) DSN(schema string) string {
	q := url.Values{"sslmode": []string{envOr("DB_SSL_MODE", "disable")}}
	if schema != "" {
		q.Set("search_path", schema+",public")
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func openAndPing(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// SkipIfNoTestDB skips (or fails under TEST_REQUIRE_DB) when Postgres is unreachable.
func SkipIfNoTestDB(t TestingTB) {
	t.Helper()
	db, err := openAndPing(DefaultTestDBConfig().DSN(""))
	if err != nil {
		if requireDB() {
			t.Fatal("test database not available:", err)
		}
		t.Skip("test database not available:", err)
	}
	closeAndLog(t, "ping db", db)
}

// tables in reverse foreign key order.
var cleanupTables = []string{
	"collection_logs",
	"monthly_metrics",
	"posts",
	"follower_snapshots",
	"accounts",
	"jobs",
}

// WithAutoDB runs fn against a migrated database. With TEST_DB_EPHEMERAL set
// every test gets its own schema; otherwise the shared database is emptied
// before and after fn.
func WithAutoDB(t TestingTB, fn func(*sql.DB)) {
	t.Helper()
	SkipIfNoTestDB(t)
	if envBool("TEST_DB_EPHEMERAL") {
		fn(ephemeralDB(t))
		return
	}

	db, err := openAndPing(DefaultTestDBConfig().DSN(""))
	if err != nil {
		t.Fatal("open test database:", err)
	}
	migrateOrFail(t, db)
	truncate(t, db)
	defer func() {
		truncate(t, db)
		closeAndLog(t, "test db", db)
	}()
	fn(db)
}

func ephemeralDB(t TestingTB) *sql.DB {
	t.Helper()
	cfg := DefaultTestDBConfig()
	admin, err := openAndPing(cfg.DSN(""))
	if err != nil {
		t.Fatal("open admin database:", err)
	}

	schema := schemaName()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err = admin.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		closeAndLog(t, "admin db", admin)
		t.Fatalf("create schema %s: %v", schema, err)
	}

	db, err := openAndPing(cfg.DSN(schema))
	if err != nil {
		closeAndLog(t, "admin db", admin)
		t.Fatal("open schema database:", err)
	}
	t.Logf("using ephemeral schema %s", schema)
	t.Cleanup(func() {
		closeAndLog(t, "schema db", db)
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dropCancel()
		if _, dropErr := admin.ExecContext(dropCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); dropErr != nil {
			t.Logf("drop schema %s: %v", schema, dropErr)
		}
		closeAndLog(t, "admin db", admin)
	})
	migrateOrFail(t, db)
	return db
}

func migrateOrFail(t TestingTB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := migrate.Run(ctx, db); err != nil {
		t.Fatal("run migrations:", err)
	}
}

func truncate(t TestingTB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, table := range cleanupTables {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clean table %s: %v", table, err)
		}
	}
}

func schemaName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t_%d", time.Now().UnixNano())
	}
	return "t_" + hex.EncodeToString(b)
}

func closeAndLog(t TestingTB, name string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		t.Logf("close %s: %v", name, err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func requireDB() bool    { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }

// LogJobStates dumps the jobs table, oldest first, to the test log.
func LogJobStates(t TestingTB, db *sql.DB, message string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, `
		SELECT id, type, status, priority, retries, max_retries, coalesce(error, '')
		FROM jobs ORDER BY created_at`)
	if err != nil {
		t.Fatalf("query job states: %v", err)
	}
	defer closeAndLog(t, "job rows", rows)

	t.Logf("--- %s ---", message)
	for rows.Next() {
		var (
			id, typ, status, errMsg       string
			priority, retries, maxRetries int
		)
		if err = rows.Scan(&id, &typ, &status, &priority, &retries, &maxRetries, &errMsg); err != nil {
			t.Fatalf("scan job state: %v", err)
		}
		t.Logf("%s %s %s p=%d retries=%d/%d %s", id, typ, status, priority, retries, maxRetries, errMsg)
	}
	if err = rows.Err(); err != nil {
		t.Fatalf("iterate job states: %v", err)
	}
}

// ConcurrentTestRunner fans functions out on goroutines and collects their errors.
type ConcurrentTestRunner struct {
	t  TestingTB
	db *sql.DB
}

// NewConcurrentTestRunner creates a runner bound to t.
func NewConcurrentTestRunner(t TestingTB, db *sql.DB) *ConcurrentTestRunner {
	return &ConcurrentTestRunner{t: t, db: db}
}

// RunConcurrent starts every fn at once and returns their errors in argument order.
func (r *ConcurrentTestRunner) RunConcurrent(funcs ...func() error) []error {
	r.t.Helper()
	errs := make([]error, len(funcs))
	var wg sync.WaitGroup
	for i, fn := range funcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}
	wg.Wait()
	return errs
}

// AssertNoErrors fails the test on the first non-nil error.
func (r *ConcurrentTestRunner) AssertNoErrors(errs []error) {
	r.t.Helper()
	for i, err := range errs {
		if err != nil {
			r.t.Fatalf("concurrent call %d failed: %v", i, err)
		}
	}
}

// redisCandidates lists where a test Redis usually lives: REDIS_ADDR in CI,
// the compose service name, then the local test profile port.
func redisCandidates() []string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return []string{addr}
	}
	return []string{"redis:6379", "localhost:6379", "localhost:56379"}
}

// SetupTestRedis returns a client on an isolated, flushed database index.
// The test is skipped when no Redis answers.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()
	for _, addr := range redisCandidates() {
		meta := redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err := meta.Ping(ctx).Err()
		cancel()
		if err != nil {
			closeAndLog(t, "redis ping", meta)
			continue
		}

		idx := reserveRedisDB(t, meta)
		closeAndLog(t, "redis meta", meta)

		client := redis.NewClient(&redis.Options{Addr: addr, DB: idx})
		ctx, cancel = context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err = client.FlushDB(ctx).Err(); err != nil {
			closeAndLog(t, "redis client", client)
			t.Fatalf("flush redis db %d: %v", idx, err)
		}
		t.Cleanup(func() { closeAndLog(t, "redis client", client) })
		return client
	}

	if requireRedis() {
		t.Fatal("redis not available for testing")
	}
	t.Skip("redis not available for testing")
	return nil
}

// reserveRedisDB picks TEST_REDIS_DB or claims a free index in 1..15 through
// a lock key in DB 0, so parallel packages do not flush each other.
func reserveRedisDB(t TestingTB, meta *redis.Client) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for i := 1; i <= 15; i++ {
		key := fmt.Sprintf("socialmonitor:testutil:db_lock:%d", i)
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		ok, err := meta.SetNX(ctx, key, owner, 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		addr := meta.Options().Addr
		t.Cleanup(func() {
			c := redis.NewClient(&redis.Options{Addr: addr})
			defer closeAndLog(t, "redis cleanup", c)
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			defer cancel()
			if err := c.Del(ctx, key).Err(); err != nil {
				t.Logf("release redis db lock %s: %v", key, err)
			}
		})
		return i
	}
	return 1
}
