// Package archive persists turn transcripts to SQLite for offline
// diagnosis. It is strictly write-ahead observability: game state is
// never read back from the archive, so disabling it (the default)
// changes nothing about gameplay.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is a SQLite-backed turn transcript.
type Store struct {
	db *sql.DB
}

// Turn is one archived request/response cycle.
type Turn struct {
	ID        string
	UserID    string
	APIType   string
	Message   string
	Narrative string
	Raw       string
	GameOver  bool
	CreatedAt time.Time
}

// Open creates or opens the archive database at path. The caller must
// import a database/sql driver registered under the name "sqlite"
// (modernc.org/sqlite).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return s, nil
}

// migrate creates the schema if it does not exist.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			api_type     TEXT NOT NULL,
			message      TEXT NOT NULL,
			narrative    TEXT NOT NULL,
			raw_response TEXT NOT NULL,
			game_over    INTEGER NOT NULL,
			created_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_turns_user ON turns(user_id, created_at);
	`)
	return err
}

// RecordTurn appends one completed turn. A zero ID or CreatedAt is
// filled in.
func (s *Store) RecordTurn(ctx context.Context, t Turn) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, user_id, api_type, message, narrative, raw_response, game_over, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.APIType, t.Message, t.Narrative, t.Raw, boolToInt(t.GameOver),
		t.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit turns for userID, newest first.
func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, api_type, message, narrative, raw_response, game_over, created_at
		FROM turns
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var gameOver int
		var createdAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.APIType, &t.Message, &t.Narrative,
			&t.Raw, &gameOver, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.GameOver = gameOver != 0
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
