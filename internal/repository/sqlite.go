package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers anyway, and for in-memory databases every extra
	// connection is a separate database. One connection keeps both cases sane.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('human', 'ai')),
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			tool_calls TEXT,
			tool_call_id TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetSession retrieves a session by ID. It returns nil, nil when the session does not exist.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	var userID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, created_at, updated_at FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &userID, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	session.UserID = userID.String
	return &session, nil
}

// GetOrCreateSession gets an existing session or creates a new one.
// Concurrent callers with the same ID never produce two rows.
func (s *SQLiteStore) GetOrCreateSession(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	now := normalizeTime(time.Now())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		sessionID, nullString(userID), now, now); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %s vanished after insert", sessionID)
	}
	return session, nil
}

// AppendTurn persists a human or ai turn and bumps the session's updated_at.
func (s *SQLiteStore) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	if !turn.Kind.Valid() {
		return domain.ErrInvalidKind
	}
	if turn.MessageID == "" {
		turn.MessageID = "msg_" + uuid.New().String()
	}
	turn.CreatedAt = normalizeTime(turn.CreatedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var last time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT created_at FROM messages WHERE session_id = ? ORDER BY created_at DESC, seq DESC LIMIT 1`,
		turn.SessionID).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read last turn: %w", err)
	}
	turn.CreatedAt = nextTimestamp(turn.CreatedAt, last.UTC())

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, kind, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		turn.MessageID, turn.SessionID, string(turn.Kind), turn.Content, turn.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE session_id = ?`,
		turn.CreatedAt, turn.SessionID); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return tx.Commit()
}

// History returns the session's human and ai turns in chronological order.
func (s *SQLiteStore) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, session_id, kind, content, created_at FROM messages
		 WHERE session_id = ? AND kind IN ('human', 'ai')
		 ORDER BY created_at ASC, seq ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var turn domain.Turn
		var kind string
		if err := rows.Scan(&turn.MessageID, &turn.SessionID, &kind, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, err
		}
		turn.Kind = domain.TurnKind(kind)
		turn.CreatedAt = turn.CreatedAt.UTC()
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
