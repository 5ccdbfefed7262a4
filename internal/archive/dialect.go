package archive

import (
	"database/sql"
	"regexp"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect isolates what differs between the supported SQL backends.
type Dialect interface {
	Name() string
	DriverName() string
	// RewriteQuery converts ? placeholders when the driver wants another form.
	RewriteQuery(query string) string
	ConfigureConnection(db *sql.DB) error
	Schema() []string
}

var placeholder = regexp.MustCompile(`\?`)

func numberPlaceholders(query string) string {
	n := 0
	return placeholder.ReplaceAllStringFunc(query, func(string) string {
		n++
		return "$" + strconv.Itoa(n)
	})
}

type postgresDialect struct{}

func (postgresDialect) Name() string                     { return "postgres" }
func (postgresDialect) DriverName() string               { return "postgres" }
func (postgresDialect) RewriteQuery(query string) string { return numberPlaceholders(query) }

func (postgresDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	return nil
}

func (postgresDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS wc_match_archive (
			record_id   UUID PRIMARY KEY,
			match_id    TEXT NOT NULL UNIQUE,
			channel_id  TEXT NOT NULL,
			winner_id   TEXT NOT NULL DEFAULT '',
			turns       INTEGER NOT NULL,
			players     JSONB NOT NULL,
			used_words  JSONB NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			ended_at    TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS wc_match_archive_channel_idx ON wc_match_archive (channel_id, ended_at DESC)`,
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string                     { return "sqlite" }
func (sqliteDialect) DriverName() string               { return "sqlite" }
func (sqliteDialect) RewriteQuery(query string) string { return query }

func (sqliteDialect) ConfigureConnection(db *sql.DB) error {
	// one writer; WAL lets readers proceed alongside it
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return err
	}
	_, err := db.Exec("PRAGMA busy_timeout=5000;")
	return err
}

func (sqliteDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS wc_match_archive (
			record_id   TEXT PRIMARY KEY,
			match_id    TEXT NOT NULL UNIQUE,
			channel_id  TEXT NOT NULL,
			winner_id   TEXT NOT NULL DEFAULT '',
			turns       INTEGER NOT NULL,
			players     TEXT NOT NULL,
			used_words  TEXT NOT NULL,
			started_at  TIMESTAMP NOT NULL,
			ended_at    TIMESTAMP NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS wc_match_archive_channel_idx ON wc_match_archive (channel_id, ended_at DESC)`,
	}
}
