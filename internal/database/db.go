package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"lurnetreau/newsapi/internal/categories"
)

// DB represents the database connection
type DB struct {
	*sqlx.DB
}

// NewDB creates a new database connection with optimized settings and
// ensures the per-category collections exist.
func NewDB(cfg *Config) (*DB, error) {
	dir := filepath.Dir(cfg.DBPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for database: %w", err)
		}
	}

	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}

	// WAL mode allows the read API to keep serving while an ingestion
	// pass is writing.
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=%d&_loc=UTC",
		cfg.DBPath, cfg.BusyTimeoutMS)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = %d;", cfg.CacheSizeKB),
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("Failed to set PRAGMA")
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	log.Info().Str("path", cfg.DBPath).Msg("Database connection successful")
	return &DB{db}, nil
}

// articleSchema is instantiated once per category collection. Each
// collection carries a unique slug index and an external-content FTS4
// table for ranked search; the FTS index is maintained by the storage
// layer inside the insert transaction. FTS4 rather than FTS5 because
// go-sqlite3 compiles FTS5 only behind the sqlite_fts5 build tag.
const articleSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	category TEXT NOT NULL,
	slug TEXT NOT NULL,
	image_url TEXT,
	published_at TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_slug_idx ON %[1]s (slug);
CREATE INDEX IF NOT EXISTS %[1]s_published_idx ON %[1]s (published_at);
CREATE VIRTUAL TABLE IF NOT EXISTS %[1]s_fts USING fts4(title, content, content=%[1]s);
`

const subscriberSchema = `
CREATE TABLE IF NOT EXISTS subscribers (
	email TEXT NOT NULL,
	subscribed_at TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS subscribers_email_idx ON subscribers (email);
`

// ensureSchema creates the collections for the fixed category set plus the
// subscriber collection. The category set is static, so the schema is
// derived rather than migrated from files.
func ensureSchema(db *sqlx.DB) error {
	for _, c := range categories.All {
		if _, err := db.Exec(fmt.Sprintf(articleSchema, c.Collection())); err != nil {
			return fmt.Errorf("creating collection %s: %w", c.Collection(), err)
		}
	}
	if _, err := db.Exec(subscriberSchema); err != nil {
		return fmt.Errorf("creating subscribers collection: %w", err)
	}
	return nil
}

// DeleteDB removes the database file if it exists
func DeleteDB(dbPath string) error {
	if _, err := os.Stat(dbPath); err == nil {
		return os.Remove(dbPath)
	}
	return nil
}
