package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a chat message
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// Message is one entry in a conversation. Messages are append-only and never
// mutated after creation. Agent text may carry **bold** markup which is
// passed through unmodified; rendering is the presentation layer's concern.
type Message struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"is_error,omitempty"`
}

// Conversation is the chat history for one (user, agent) pair. The session id
// is opaque and changes whenever the conversation is reset.
type Conversation struct {
	SessionID string    `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	Messages  []Message `json:"messages"`
}

// LastMessageID returns the highest message id in the conversation, 0 when empty
func (c *Conversation) LastMessageID() int64 {
	if len(c.Messages) == 0 {
		return 0
	}
	return c.Messages[len(c.Messages)-1].ID
}

// ConversationStore persists one conversation record per (user, agent) pair.
// The store is process-local and volatile in spirit: records survive a
// restart of the same instance but carry no long-term durability guarantee.
type ConversationStore interface {
	Load(ctx context.Context, userID uuid.UUID, agentID string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, userID uuid.UUID, agentID string) error
}
