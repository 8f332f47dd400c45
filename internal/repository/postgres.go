package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and applies the schema.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq BIGSERIAL PRIMARY KEY,
			message_id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
			kind TEXT NOT NULL CHECK (kind IN ('human', 'ai')),
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			tool_calls JSONB,
			tool_call_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at, seq)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// GetSession retrieves a session by ID. It returns nil, nil when the session does not exist.
func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	var userID *string
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, user_id, created_at, updated_at FROM sessions WHERE session_id = $1`,
		sessionID).Scan(&session.SessionID, &userID, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if userID != nil {
		session.UserID = *userID
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	return &session, nil
}

// GetOrCreateSession gets an existing session or creates a new one.
func (s *PostgresStore) GetOrCreateSession(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	var owner *string
	if userID != "" {
		owner = &userID
	}
	now := normalizeTime(time.Now())
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (session_id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO NOTHING`,
		sessionID, owner, now, now); err != nil {
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
// The session row is locked for the duration so concurrent appends to one
// session keep non-decreasing timestamps.
func (s *PostgresStore) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	if !turn.Kind.Valid() {
		return domain.ErrInvalidKind
	}
	if turn.MessageID == "" {
		turn.MessageID = "msg_" + uuid.New().String()
	}
	turn.CreatedAt = normalizeTime(turn.CreatedAt)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT session_id FROM sessions WHERE session_id = $1 FOR UPDATE`, turn.SessionID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}

	var last time.Time
	err = tx.QueryRow(ctx,
		`SELECT created_at FROM messages WHERE session_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1`,
		turn.SessionID).Scan(&last)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to read last turn: %w", err)
	}
	turn.CreatedAt = nextTimestamp(turn.CreatedAt, last.UTC())

	if _, err := tx.Exec(ctx,
		`INSERT INTO messages (message_id, session_id, kind, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		turn.MessageID, turn.SessionID, string(turn.Kind), turn.Content, turn.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET updated_at = $1 WHERE session_id = $2`,
		turn.CreatedAt, turn.SessionID); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return tx.Commit(ctx)
}

// History returns the session's human and ai turns in chronological order.
func (s *PostgresStore) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT message_id, session_id, kind, content, created_at FROM messages
		 WHERE session_id = $1 AND kind IN ('human', 'ai')
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
