// Package storage persists the client's local preferences in SQLite.
// Only the theme and locale survive a restart; messages and presence
// are always refetched from the backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

// Preference names the client uses.
const (
	PrefTheme  = "theme"
	PrefLocale = "locale"
)

// Store wraps the SQLite handle behind a simple name/value interface.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database at the provided path. Call
// Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "chatroom.db"
	}
	dsn := buildDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS prefs (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`)
	return err
}

// GetPref returns the stored value for a preference, or "" when it was
// never set.
func (s *Store) GetPref(ctx context.Context, name string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE name = ?`, name)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// SetPref stores a preference, replacing any previous value.
func (s *Store) SetPref(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prefs(name, value) VALUES(?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
	return err
}
