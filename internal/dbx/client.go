// Package dbx provides the PostgreSQL connection pool and migration runner
// shared by the ingest and worker roles, adapted from the teacher's
// pkg/database/client.go. Query execution elsewhere in photoflow goes
// through plain database/sql (internal/photorepo), not a generated ent
// client — see DESIGN.md for why.
package dbx

import (
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for database/sql

	"github.com/photoflow-io/photoflow/internal/config"

	"context"
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps the pooled *sql.DB used by every repository.
type Client struct {
	db             *stdsql.DB
	acquireTimeout time.Duration
}

// DB returns the underlying pool for direct queries and health checks.
func (c *Client) DB() *stdsql.DB { return c.db }

// AcquireTimeout is the configured bound on waiting for a pool connection
// (§5 "Database connection pool"). Callers that need it explicit — e.g. to
// wrap a context — can read it here; pgx itself also honors the context
// deadline passed to each query.
func (c *Client) AcquireTimeout() time.Duration { return c.acquireTimeout }

// Close closes the pool.
func (c *Client) Close() error { return c.db.Close() }

// NewClient opens a connection pool against cfg, applies embedded
// migrations, and returns a ready Client.
func NewClient(ctx context.Context, cfg config.Database) (*Client, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Client{db: db, acquireTimeout: cfg.AcquireTimeout}, nil
}

// runMigrations applies every embedded migration using golang-migrate,
// mirroring pkg/database/client.go's runMigrations.
func runMigrations(db *stdsql.DB, databaseName string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("failed to check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found — binary may be built incorrectly")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Only close the source driver. Closing the migrate instance would also
	// close the postgres driver, which calls db.Close() on the shared pool.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}

	return nil
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && len(entry.Name()) > 4 && entry.Name()[len(entry.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
