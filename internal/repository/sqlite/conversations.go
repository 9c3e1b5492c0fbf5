// Package sqlite holds the process-local conversation store. Conversations
// are scoped to one service instance, like per-tab storage in a browser:
// they survive a restart of the same instance but are not shared or durable.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prosomo/agenthub/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	user_id    TEXT NOT NULL,
	agent_id   TEXT NOT NULL,
	session_id TEXT NOT NULL,
	messages   TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, agent_id)
);
`

// ConversationStore implements domain.ConversationStore on a local SQLite
// file, one row per (user, agent) pair.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore opens (and initializes) the store at path. Use
// ":memory:" for an ephemeral store.
func NewConversationStore(path string) (*ConversationStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create conversation store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}
	// SQLite allows one writer; the protocol serializes per conversation
	// but distinct conversations write concurrently.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize conversation store: %w", err)
	}
	return &ConversationStore{db: db}, nil
}

// Close closes the underlying database
func (s *ConversationStore) Close() error {
	return s.db.Close()
}

func (s *ConversationStore) Load(ctx context.Context, userID uuid.UUID, agentID string) (*domain.Conversation, error) {
	query := `
		SELECT session_id, messages
		FROM conversations
		WHERE user_id = ? AND agent_id = ?
	`
	var sessionID, rawMessages string
	err := s.db.QueryRowContext(ctx, query, userID.String(), agentID).Scan(&sessionID, &rawMessages)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var messages []domain.Message
	if err := json.Unmarshal([]byte(rawMessages), &messages); err != nil {
		return nil, fmt.Errorf("failed to decode conversation history: %w", err)
	}

	return &domain.Conversation{
		SessionID: sessionID,
		UserID:    userID,
		AgentID:   agentID,
		Messages:  messages,
	}, nil
}

func (s *ConversationStore) Save(ctx context.Context, conv *domain.Conversation) error {
	rawMessages, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode conversation history: %w", err)
	}

	query := `
		INSERT INTO conversations (user_id, agent_id, session_id, messages, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, agent_id) DO UPDATE SET
			session_id = excluded.session_id,
			messages   = excluded.messages,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		conv.UserID.String(), conv.AgentID, conv.SessionID, string(rawMessages), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

func (s *ConversationStore) Delete(ctx context.Context, userID uuid.UUID, agentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE user_id = ? AND agent_id = ?`,
		userID.String(), agentID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}
