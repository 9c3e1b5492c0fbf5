package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Interaction categories recorded by the chat protocol
const (
	InteractionUserMessage   = "user_message"
	InteractionAgentResponse = "agent_response"
)

// Interaction is one usage-analytics record. Write-only from the core's
// perspective; failures to record are never surfaced to the chat flow.
type Interaction struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	AgentName     string    `json:"agent_name"`
	Message       string    `json:"message"`
	MessageLength int       `json:"message_length"`
	Category      string    `json:"category"`
	CreatedAt     time.Time `json:"created_at"`
}

// InteractionSink defines the write-only analytics interface
type InteractionSink interface {
	Record(ctx context.Context, interaction *Interaction) error
}
