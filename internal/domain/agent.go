package domain

import (
	"context"
	"time"
)

// Agent is an AI assistant reachable over an opaque webhook endpoint. The
// chat protocol only needs the id, webhook URL and display metadata.
type Agent struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	WebhookURL string    `json:"webhook_url"`
	Color      string    `json:"color"`
	Icon       string    `json:"icon"`
	Custom     bool      `json:"custom"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// AgentCreate represents custom agent creation data
type AgentCreate struct {
	ID         string `json:"id" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=255"`
	WebhookURL string `json:"webhook_url" validate:"required,url"`
	Color      string `json:"color" validate:"max=64"`
	Icon       string `json:"icon" validate:"max=16"`
}

// AgentRepository defines the interface for custom agent storage
type AgentRepository interface {
	Create(ctx context.Context, agent *Agent) error
	Get(ctx context.Context, id string) (*Agent, error)
	List(ctx context.Context) ([]Agent, error)
	Update(ctx context.Context, agent *Agent) error
	Delete(ctx context.Context, id string) error
}
