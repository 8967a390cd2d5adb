package storage

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect captures the SQL differences between the supported drivers.
type Dialect struct {
	Name        string
	driverName  string
	placeholder sq.PlaceholderFormat
	lockSuffix  string
	schema      []string
}

// Postgres is the production dialect backed by lib/pq.
var Postgres = Dialect{
	Name:        "postgres",
	driverName:  "postgres",
	placeholder: sq.Dollar,
	lockSuffix:  "FOR UPDATE",
	schema:      postgresSchema,
}

// SQLite is the embedded dialect backed by modernc.org/sqlite.
var SQLite = Dialect{
	Name:        "sqlite",
	driverName:  "sqlite",
	placeholder: sq.Question,
	schema:      sqliteSchema,
}

// DialectFor resolves a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS topics (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_scanned_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS topic_profiles (
		id BIGSERIAL PRIMARY KEY,
		topic_id TEXT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		authority TEXT NOT NULL DEFAULT '',
		queries TEXT[] NOT NULL DEFAULT '{}',
		primary_sources TEXT[] NOT NULL DEFAULT '{}',
		allowed_domains TEXT[] NOT NULL DEFAULT '{}',
		trigger_words TEXT[] NOT NULL DEFAULT '{}',
		max_articles INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id BIGSERIAL PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		snippet TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		topic_id TEXT NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		published_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS verified_updates (
		id BIGSERIAL PRIMARY KEY,
		topic_id TEXT NOT NULL,
		anchor TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT NOT NULL,
		impact_level TEXT NOT NULL,
		related_article_ids BIGINT[] NOT NULL DEFAULT '{}',
		deduced_published_at TIMESTAMPTZ,
		is_latest BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS verified_updates_one_latest
		ON verified_updates (topic_id, anchor) WHERE is_latest`,
	`CREATE INDEX IF NOT EXISTS articles_topic_idx ON articles (topic_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS topics (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		last_scanned_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS topic_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_id TEXT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		authority TEXT NOT NULL DEFAULT '',
		queries TEXT NOT NULL DEFAULT '{}',
		primary_sources TEXT NOT NULL DEFAULT '{}',
		allowed_domains TEXT NOT NULL DEFAULT '{}',
		trigger_words TEXT NOT NULL DEFAULT '{}',
		max_articles INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		snippet TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		topic_id TEXT NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT 0,
		published_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS verified_updates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_id TEXT NOT NULL,
		anchor TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT NOT NULL,
		impact_level TEXT NOT NULL,
		related_article_ids TEXT NOT NULL DEFAULT '{}',
		deduced_published_at TIMESTAMP,
		is_latest BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS verified_updates_one_latest
		ON verified_updates (topic_id, anchor) WHERE is_latest`,
	`CREATE INDEX IF NOT EXISTS articles_topic_idx ON articles (topic_id)`,
}
