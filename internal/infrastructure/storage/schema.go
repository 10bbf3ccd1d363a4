package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsletterDigest/internal/config"
)

// Dialect captures the differences between the supported SQL backends.
type Dialect struct {
	Driver      string
	Placeholder sq.PlaceholderFormat
	schema      string
}

var (
	Postgres = Dialect{Driver: "postgres", Placeholder: sq.Dollar, schema: `
CREATE TABLE IF NOT EXISTS articles (
	id            BIGSERIAL PRIMARY KEY,
	email_uid     TEXT NOT NULL DEFAULT '',
	email_time    TIMESTAMPTZ NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL,
	url           TEXT NOT NULL UNIQUE,
	criteria      TEXT NOT NULL DEFAULT '[]',
	raw_content   TEXT NOT NULL DEFAULT '',
	source_domain TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS articles_email_time_idx ON articles (email_time DESC);`}

	SQLite = Dialect{Driver: "sqlite", Placeholder: sq.Question, schema: `
CREATE TABLE IF NOT EXISTS articles (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	email_uid     TEXT NOT NULL DEFAULT '',
	email_time    DATETIME NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL,
	url           TEXT NOT NULL UNIQUE,
	criteria      TEXT NOT NULL DEFAULT '[]',
	raw_content   TEXT NOT NULL DEFAULT '',
	source_domain TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS articles_email_time_idx ON articles (email_time DESC);`}
)

// DialectFor maps a configured driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Open connects to the configured database and ensures the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(dialect.Driver, cfg.DSN)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s: %w", dialect.Driver, err)
	}
	if dialect.Driver == SQLite.Driver {
		// sqlite allows one writer; also keeps ":memory:" on one connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s: %w", dialect.Driver, err)
	}
	if err := Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, Dialect{}, err
	}
	return db, dialect, nil
}

// Migrate creates the articles table when missing.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	for _, stmt := range strings.Split(dialect.schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}
