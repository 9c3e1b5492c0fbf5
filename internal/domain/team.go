package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Team groups users and scopes which agents they may use
type Team struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TeamCreate represents team creation data
type TeamCreate struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1000"`
}

// TeamRepository defines the interface for team storage
type TeamRepository interface {
	Create(ctx context.Context, team *Team) error
	Get(ctx context.Context, id uuid.UUID) (*Team, error)
	List(ctx context.Context) ([]Team, error)
	Update(ctx context.Context, team *Team) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MembershipRepository maps users to teams. Reads return empty slices, not
// errors, when no rows exist.
type MembershipRepository interface {
	Add(ctx context.Context, teamID, userID uuid.UUID) error
	Remove(ctx context.Context, teamID, userID uuid.UUID) error
	// ListTeamIDs returns the user's team ids in insertion order. The first
	// entry is treated as the active team by the agent resolver.
	ListTeamIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListMemberIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error)
}

// AllowListRepository holds the agent ids a team's members may use
type AllowListRepository interface {
	Set(ctx context.Context, teamID uuid.UUID, agentIDs []string) error
	ListAgentIDs(ctx context.Context, teamID uuid.UUID) ([]string, error)
}
