// Package storage hands out ready-to-use connections to the game store.
//
// Opening a Provider guarantees that:
//   - the SQLite file and its parent directory exist
//   - foreign keys are enforced and the journal is in WAL mode
//   - the schema has been applied (idempotently)
//
// Work is executed either synchronously with WithConn, or through the bounded
// worker pool with Go / Do / Run, which keeps blocking driver calls off the
// goroutines that serve requests. Each call gets its own pooled connection for
// its whole duration; nothing spans two calls.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type Config struct {
	Driver      string
	Path        string // SQLite database file
	DSN         string // PostgreSQL connection string
	SchemaFile  string // optional DDL override
	Workers     int
	QueueSize   int
	BusyTimeout time.Duration
}

type Provider struct {
	db      *sql.DB
	dialect Dialect
	pool    *workerPool
	logger  *zap.Logger
}

// Open connects to the configured store and prepares it for use.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(cfg)
	case DriverPostgres:
		db, err = openPostgres(ctx, cfg)
	default:
		return nil, &Error{Reason: ReasonEngine, Op: fmt.Sprintf("unsupported database driver %q", cfg.Driver)}
	}
	if err != nil {
		return nil, err
	}

	ddl, err := loadSchema(driver, cfg.SchemaFile)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(ctx, db, driver, ddl); err != nil {
		db.Close()
		return nil, err
	}

	p := &Provider{
		db:      db,
		dialect: Dialect{name: driver},
		pool:    newWorkerPool(cfg.Workers, cfg.QueueSize),
		logger:  logger,
	}
	logger.Info("storage_open",
		zap.String("driver", driver),
		zap.String("path", cfg.Path),
		zap.Int("workers", p.pool.workers),
	)
	return p, nil
}

func openSQLite(cfg Config) (*sql.DB, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, &Error{Reason: ReasonFilesystem, Op: "database path is required"}
	}
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", fmt.Sprint(busy.Milliseconds()))
	q.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, Engine("open sqlite", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, Engine("connect sqlite", err)
	}
	return db, nil
}

func openPostgres(ctx context.Context, cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, &Error{Reason: ReasonEngine, Op: "DATABASE_URL is required for postgres"}
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, Engine("open postgres", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, Engine("ping postgres", err)
	}
	return db, nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Wrap(ReasonFilesystem, "create database directory", err)
	}
	return nil
}

// Close stops the workers, waiting for queued jobs, then closes the pool.
func (p *Provider) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	p.pool.close()
	return p.db.Close()
}

func (p *Provider) Dialect() Dialect { return p.dialect }

// WithConn runs fn on the calling goroutine with a dedicated connection.
func (p *Provider) WithConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return Engine("acquire connection", err)
	}
	defer conn.Close()

	if p.dialect.name == DriverSQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			return Engine("enable foreign keys", err)
		}
	}
	return fn(ctx, conn)
}

// Go queues the same work as WithConn onto the worker pool. The channel
// receives exactly one result.
func (p *Provider) Go(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) <-chan error {
	return p.pool.submit(ctx, func(ctx context.Context) error {
		return p.WithConn(ctx, fn)
	})
}

// Do is Go followed by waiting for the result. A job that is still queued when
// ctx ends is dropped with ReasonOffload; a running job observes ctx through the
// driver, so a cancelled transaction is rolled back rather than half-applied.
func (p *Provider) Do(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	return <-p.Go(ctx, fn)
}

// Run is Do for work that produces a value.
func Run[T any](ctx context.Context, p *Provider, fn func(ctx context.Context, conn *sql.Conn) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context, conn *sql.Conn) error {
		v, err := fn(ctx, conn)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// InTx runs fn inside one transaction on conn. SQLite stores open it with
// BEGIN IMMEDIATE, so the write lock is taken before the first read.
func InTx(ctx context.Context, conn *sql.Conn, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return Engine("begin tx", err)
	}
	defer tx.Rollback() // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return Engine("commit", err)
	}
	return nil
}

// verifyPragma checks a connection-level setting; used by tests.
func (p *Provider) verifyPragma(ctx context.Context, name, expected string) error {
	return p.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var value string
		if err := conn.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
			return fmt.Errorf("query %s: %w", name, err)
		}
		if !strings.EqualFold(value, expected) {
			return fmt.Errorf("%s = %q, expected %q", name, value, expected)
		}
		return nil
	})
}
