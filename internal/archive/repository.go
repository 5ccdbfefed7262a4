package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/park285/noitu-kakao-bot/internal/wordchain"
)

// MatchRecord is one finished English match as stored.
type MatchRecord struct {
	RecordID   string
	MatchID    string
	ChannelID  string
	WinnerID   string
	Turns      int
	Players    []wordchain.Player
	UsedWords  []string
	StartedAt  time.Time
	EndedAt    time.Time
	DurationMS int64
}

func (r MatchRecord) Winner() *wordchain.Player {
	for i := range r.Players {
		if r.Players[i].ID == r.WinnerID {
			return &r.Players[i]
		}
	}
	return nil
}

type Repository struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects with driver "postgres" (dsn is a URL) or "sqlite" (dsn is a path)
// and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*Repository, error) {
	var d Dialect
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql":
		d = postgresDialect{}
	case "sqlite", "sqlite3":
		d = sqliteDialect{}
	default:
		return nil, fmt.Errorf("unsupported archive driver: %q", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("archive DSN is required")
	}
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name(), err)
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name(), err)
	}
	if err := d.ConfigureConnection(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure %s: %w", d.Name(), err)
	}
	r := &Repository{db: db, dialect: d}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Dialect() string { return r.dialect.Name() }

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	for _, stmt := range r.dialect.Schema() {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate archive: %w", err)
		}
	}
	return nil
}

// ArchiveMatch upserts an ended match keyed by its match id.
func (r *Repository) ArchiveMatch(ctx context.Context, m *wordchain.Match) error {
	if r == nil || r.db == nil || m == nil {
		return nil
	}
	if m.Status != wordchain.StatusEnded {
		return fmt.Errorf("archive match %s: status %s", m.ID, m.Status)
	}
	players := make([]wordchain.Player, 0, len(m.Players))
	for _, p := range m.Players {
		players = append(players, *p)
	}
	playersRaw, err := json.Marshal(players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	words := m.UsedWords
	if words == nil {
		words = []string{}
	}
	wordsRaw, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("encode words: %w", err)
	}
	ended := time.Now()
	if m.EndedAt != nil {
		ended = *m.EndedAt
	}
	duration := ended.Sub(m.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := r.dialect.RewriteQuery(`INSERT INTO wc_match_archive (
		record_id, match_id, channel_id, winner_id, turns,
		players, used_words, started_at, ended_at, duration_ms
	) VALUES (?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT (match_id) DO UPDATE SET
		winner_id=EXCLUDED.winner_id,
		turns=EXCLUDED.turns,
		players=EXCLUDED.players,
		used_words=EXCLUDED.used_words,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`)
	_, err = r.db.ExecContext(ctx, q,
		uuid.NewString(), m.ID, m.ChannelID, m.WinnerID, m.TurnNumber-1,
		string(playersRaw), string(wordsRaw), m.StartedAt.UTC(), ended.UTC(), duration,
	)
	if err != nil {
		return fmt.Errorf("archive match %s: %w", m.ID, err)
	}
	return nil
}

// Recent returns the channel's latest archived matches, newest first.
func (r *Repository) Recent(ctx context.Context, channelID string, limit int) ([]MatchRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	q := r.dialect.RewriteQuery(`SELECT record_id, match_id, channel_id, winner_id, turns,
		players, used_words, started_at, ended_at, duration_ms
		FROM wc_match_archive WHERE channel_id = ? ORDER BY ended_at DESC LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, q, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		var (
			rec               MatchRecord
			playersRaw, words []byte
		)
		if err := rows.Scan(&rec.RecordID, &rec.MatchID, &rec.ChannelID, &rec.WinnerID, &rec.Turns,
			&playersRaw, &words, &rec.StartedAt, &rec.EndedAt, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		if err := json.Unmarshal(playersRaw, &rec.Players); err != nil {
			return nil, fmt.Errorf("decode players: %w", err)
		}
		if err := json.Unmarshal(words, &rec.UsedWords); err != nil {
			return nil, fmt.Errorf("decode words: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
