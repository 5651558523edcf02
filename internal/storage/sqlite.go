// Package storage keeps the user directory and match history in an in-memory
// SQLite database. Uses the pure-Go modernc.org/sqlite driver to avoid CGO.
// Everything is lost when the process exits.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/elimination/internal/multiplayer"
)

var (
	// ErrUserExists is returned when registering a name that is already taken.
	ErrUserExists = errors.New("storage: user already exists")
)

// Store wraps the in-memory database.
type Store struct {
	db *sql.DB
}

// User is a registered player.
type User struct {
	ID           int64
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// MatchRecord is a stored room outcome.
type MatchRecord struct {
	ID         int64
	MatchID    string
	PlayerA    string
	PlayerB    string
	ScoreA     int
	ScoreB     int
	Winner     string
	VsAI       bool
	EndReason  string
	DurationMS int64
	CreatedAt  time.Time
}

// Open creates a fresh in-memory database and its schema.
func Open() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_id TEXT NOT NULL UNIQUE,
			player_a TEXT NOT NULL,
			player_b TEXT NOT NULL,
			score_a INTEGER NOT NULL DEFAULT 0,
			score_b INTEGER NOT NULL DEFAULT 0,
			winner TEXT,
			vs_ai INTEGER NOT NULL DEFAULT 0,
			end_reason TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_matches_player_a ON matches(player_a);
		CREATE INDEX IF NOT EXISTS idx_matches_player_b ON matches(player_b);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database. All data is discarded.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateUser registers a new user. Returns ErrUserExists if the name is taken,
// so concurrent registrations of the same name have exactly one winner.
func (s *Store) CreateUser(ctx context.Context, name, passwordHash string) (*User, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, password_hash) VALUES (?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot create user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get affected rows: %w", err)
	}
	if n == 0 {
		return nil, ErrUserExists
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}
	return &User{ID: id, Name: name, PasswordHash: passwordHash, CreatedAt: time.Now()}, nil
}

// UserByName looks a user up. Returns nil, nil when the name is unknown.
func (s *Store) UserByName(ctx context.Context, name string) (*User, error) {
	var u User
	var createdAt any
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, password_hash, created_at FROM users WHERE name = ?`,
		name,
	).Scan(&u.ID, &u.Name, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// UserCount returns the number of registered users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: cannot count users: %w", err)
	}
	return n, nil
}

// SaveMatch records a finished room. Returns the row ID.
func (s *Store) SaveMatch(ctx context.Context, m MatchRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO matches
		 (match_id, player_a, player_b, score_a, score_b, winner, vs_ai, end_reason, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MatchID, m.PlayerA, m.PlayerB, m.ScoreA, m.ScoreB,
		nullString(m.Winner), m.VsAI, m.EndReason, m.DurationMS,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: cannot save match: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}
	return id, nil
}

const matchColumns = `id, match_id, player_a, player_b, score_a, score_b,
	winner, vs_ai, end_reason, duration_ms, created_at`

// MatchByID returns a match by its match ID, or nil, nil if unknown.
func (s *Store) MatchByID(ctx context.Context, matchID string) (*MatchRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE match_id = ?`, matchID)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query match: %w", err)
	}
	return m, nil
}

// RecentMatches returns the newest matches first.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query matches: %w", err)
	}
	return collectMatches(rows)
}

// PlayerMatches returns the newest matches a user took part in.
func (s *Store) PlayerMatches(ctx context.Context, name string, limit int) ([]MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE player_a = ? OR player_b = ?
		 ORDER BY id DESC LIMIT ?`,
		name, name, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query player matches: %w", err)
	}
	return collectMatches(rows)
}

// SaveMatchResult implements multiplayer.ResultSaver.
func (s *Store) SaveMatchResult(r multiplayer.MatchResult) error {
	_, err := s.SaveMatch(context.Background(), MatchRecord{
		MatchID:    string(r.MatchID),
		PlayerA:    r.PlayerA,
		PlayerB:    r.PlayerB,
		ScoreA:     r.ScoreA,
		ScoreB:     r.ScoreB,
		Winner:     r.Winner,
		VsAI:       r.VsAI,
		EndReason:  r.EndReason,
		DurationMS: r.Duration.Milliseconds(),
	})
	return err
}

var _ multiplayer.ResultSaver = (*Store)(nil)

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (*MatchRecord, error) {
	var m MatchRecord
	var winner sql.NullString
	var createdAt any
	if err := row.Scan(
		&m.ID, &m.MatchID, &m.PlayerA, &m.PlayerB, &m.ScoreA, &m.ScoreB,
		&winner, &m.VsAI, &m.EndReason, &m.DurationMS, &createdAt,
	); err != nil {
		return nil, err
	}
	m.Winner = winner.String
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

func collectMatches(rows *sql.Rows) ([]MatchRecord, error) {
	defer rows.Close()
	var out []MatchRecord
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return out, nil
}

// parseTime handles both time.Time and string values from the driver.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
