package agentscope

import (
	"context"
	"fmt"

	"github.com/prosomo/agenthub/internal/domain"
)

// builtinAgents is the static agent set shipped with the product. Custom
// agents from the store are merged on top; ids must not collide.
var builtinAgents = []domain.Agent{
	{
		ID:         "hr-manager",
		Name:       "HR Manager",
		WebhookURL: "https://prosomoinc.app.n8n.cloud/webhook/58d9cd50-b83b-49d9-a2ce-1d3f6dd03a0b",
		Color:      "bg-blue-500",
		Icon:       "👥",
	},
	{
		ID:         "seo-manager",
		Name:       "SEO Manager",
		WebhookURL: "https://prosomoinc.app.n8n.cloud/webhook/5097393d-57b4-4f7c-aa1c-8ae6602293f8",
		Color:      "bg-green-500",
		Icon:       "📈",
	},
	{
		ID:         "ads-manager",
		Name:       "Ads Manager",
		WebhookURL: "https://prosomoinc.app.n8n.cloud/webhook/7121011b-5b40-4d97-9cc9-727080db3956",
		Color:      "bg-purple-500",
		Icon:       "📱",
	},
}

// Registry merges the built-in agent set with stored custom agents
type Registry struct {
	custom domain.AgentRepository
}

// NewRegistry creates a registry. The custom repository may be nil, leaving
// only built-in agents.
func NewRegistry(custom domain.AgentRepository) *Registry {
	return &Registry{custom: custom}
}

// All returns built-in agents followed by custom ones, in stable order
func (r *Registry) All(ctx context.Context) ([]domain.Agent, error) {
	agents := make([]domain.Agent, len(builtinAgents))
	copy(agents, builtinAgents)

	if r.custom != nil {
		custom, err := r.custom.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list custom agents: %w", err)
		}
		agents = append(agents, custom...)
	}
	return agents, nil
}

// IDs returns every known agent id
func (r *Registry) IDs(ctx context.Context) ([]string, error) {
	agents, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	return ids, nil
}

// Get resolves one agent by id, domain.ErrNotFound when unknown
func (r *Registry) Get(ctx context.Context, id string) (*domain.Agent, error) {
	for _, a := range builtinAgents {
		if a.ID == id {
			agent := a
			return &agent, nil
		}
	}
	if r.custom != nil {
		return r.custom.Get(ctx, id)
	}
	return nil, domain.ErrNotFound
}
