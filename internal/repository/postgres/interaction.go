package postgres

import (
	"context"
	"fmt"

	"github.com/prosomo/agenthub/internal/domain"
)

// InteractionRepository implements domain.InteractionSink. Write-only: the
// core never reads interaction rows back, analytics tooling does.
type InteractionRepository struct {
	db *DB
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

func (r *InteractionRepository) Record(ctx context.Context, interaction *domain.Interaction) error {
	query := `
		INSERT INTO interactions (id, user_id, agent_name, message, message_length, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		interaction.ID,
		interaction.UserID,
		interaction.AgentName,
		interaction.Message,
		interaction.MessageLength,
		interaction.Category,
		interaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}
