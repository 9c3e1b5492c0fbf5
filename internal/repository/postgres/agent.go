package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prosomo/agenthub/internal/domain"
)

// AgentRepository implements domain.AgentRepository for custom agents
type AgentRepository struct {
	db *DB
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *DB) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	query := `
		INSERT INTO custom_agents (id, name, webhook_url, color, icon, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		agent.ID, agent.Name, agent.WebhookURL, agent.Color, agent.Icon, agent.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	return nil
}

func (r *AgentRepository) Get(ctx context.Context, id string) (*domain.Agent, error) {
	query := `
		SELECT id, name, webhook_url, color, icon, created_at
		FROM custom_agents
		WHERE id = $1
	`
	var a domain.Agent
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.WebhookURL, &a.Color, &a.Icon, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	a.Custom = true
	return &a, nil
}

func (r *AgentRepository) List(ctx context.Context) ([]domain.Agent, error) {
	query := `
		SELECT id, name, webhook_url, color, icon, created_at
		FROM custom_agents
		ORDER BY created_at
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var a domain.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.WebhookURL, &a.Color, &a.Icon, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		a.Custom = true
		agents = append(agents, a)
	}
	return agents, nil
}

func (r *AgentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	query := `
		UPDATE custom_agents
		SET name = $1, webhook_url = $2, color = $3, icon = $4, updated_at = $5
		WHERE id = $6
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		agent.Name, agent.WebhookURL, agent.Color, agent.Icon, time.Now(), agent.ID)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM custom_agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	return nil
}
