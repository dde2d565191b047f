// Package sqlite provides a SQLite-backed implementation of the listening store ports.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
	"github.com/ewilliams-labs/resonance/internal/logging"
)

// playedAtLayout is fixed width so stored timestamps sort lexically.
const playedAtLayout = "2006-01-02T15:04:05.000000000Z"

const defaultBusyTimeout = 5 * time.Second

// Adapter implements ports.EventStore and ports.EventWriter for SQLite.
type Adapter struct {
	db  *sql.DB
	log zerolog.Logger
}

// Option configures an Adapter.
type Option func(*options)

type options struct {
	busyTimeout time.Duration
}

// WithBusyTimeout sets how long SQLite waits on a locked database before
// returning SQLITE_BUSY.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// NewAdapter opens the database at storagePath and runs the schema migration.
// ":memory:" gives a private in-memory store.
func NewAdapter(storagePath string, opts ...Option) (*Adapter, error) {
	o := options{busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=on", storagePath, o.busyTimeout.Milliseconds())
	if storagePath != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if storagePath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	a := &Adapter{db: db, log: logging.WithComponent("sqlite")}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	a.log.Debug().Str("path", storagePath).Msg("store opened")

	return a, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ping reports whether the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		track_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		preview_url TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER,
		popularity INTEGER,
		danceability REAL,
		energy REAL,
		valence REAL,
		acousticness REAL,
		instrumentalness REAL,
		liveness REAL,
		speechiness REAL,
		tempo REAL,
		loudness REAL,
		musical_key INTEGER,
		mode INTEGER,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		track_id TEXT NOT NULL,
		played_at TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, track_id, played_at)
	);
	CREATE INDEX IF NOT EXISTS idx_events_user_played ON events (user_id, played_at);

	CREATE TABLE IF NOT EXISTS artist_genres (
		artist_key TEXT NOT NULL,
		artist TEXT NOT NULL,
		genre TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (artist_key, genre)
	);
	CREATE INDEX IF NOT EXISTS idx_artist_genres_genre ON artist_genres (genre);

	CREATE TABLE IF NOT EXISTS store_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		generation INTEGER NOT NULL
	);
	INSERT OR IGNORE INTO store_meta (id, generation) VALUES (1, 0);
	`
	_, err := a.db.Exec(query)
	return err
}

// Generation returns the counter bumped by every committed write to tracks or
// artist genres. It is shared by every process using the database file.
func (a *Adapter) Generation(ctx context.Context) (int64, error) {
	var gen int64
	if err := a.db.QueryRowContext(ctx, "SELECT generation FROM store_meta WHERE id = 1").Scan(&gen); err != nil {
		return 0, storeErr("generation", err)
	}
	return gen, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func bumpGeneration(ctx context.Context, tx execer) error {
	_, err := tx.ExecContext(ctx, "UPDATE store_meta SET generation = generation + 1 WHERE id = 1")
	return err
}

// storeErr maps SQLite contention to a transient domain error and wraps
// everything else.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return domain.NewTransientStoreError(op, err)
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

// jsonList encodes values for use with json_each, which keeps IN lists free of
// SQLite's bound-variable limit.
func jsonList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func artistKey(artist string) string {
	return strings.ToLower(strings.TrimSpace(artist))
}

func formatPlayedAt(t time.Time) string {
	return t.UTC().Format(playedAtLayout)
}
