package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prosomo/agenthub/internal/domain"
)

// TeamRepository implements domain.TeamRepository
type TeamRepository struct {
	db *DB
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(db *DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) Create(ctx context.Context, team *domain.Team) error {
	query := `
		INSERT INTO teams (id, name, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		team.ID, team.Name, team.Description, team.CreatedBy, team.CreatedAt, team.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *TeamRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	query := `
		SELECT id, name, description, created_by, created_at, updated_at
		FROM teams
		WHERE id = $1
	`
	var t domain.Team
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &t, nil
}

func (r *TeamRepository) List(ctx context.Context) ([]domain.Team, error) {
	query := `
		SELECT id, name, description, created_by, created_at, updated_at
		FROM teams
		ORDER BY created_at
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, nil
}

func (r *TeamRepository) Update(ctx context.Context, team *domain.Team) error {
	query := `
		UPDATE teams
		SET name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`
	tag, err := r.db.Pool.Exec(ctx, query, team.Name, team.Description, team.UpdatedAt, team.ID)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TeamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return nil
}

// MembershipRepository implements domain.MembershipRepository
type MembershipRepository struct {
	db *DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) Add(ctx context.Context, teamID, userID uuid.UUID) error {
	query := `
		INSERT INTO team_members (team_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (team_id, user_id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to add membership: %w", err)
	}
	return nil
}

func (r *MembershipRepository) Remove(ctx context.Context, teamID, userID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}
	return nil
}

// ListTeamIDs returns the user's teams ordered by when they joined. The
// agent resolver depends on this order being stable: the first row is the
// active team.
func (r *MembershipRepository) ListTeamIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT team_id FROM team_members WHERE user_id = $1 ORDER BY joined_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var teamIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		teamIDs = append(teamIDs, id)
	}
	return teamIDs, nil
}

func (r *MembershipRepository) ListMemberIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT user_id FROM team_members WHERE team_id = $1 ORDER BY joined_at`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var userIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, nil
}

// AllowListRepository implements domain.AllowListRepository
type AllowListRepository struct {
	db *DB
}

// NewAllowListRepository creates a new allow-list repository
func NewAllowListRepository(db *DB) *AllowListRepository {
	return &AllowListRepository{db: db}
}

// Set replaces the team's allow-list atomically
func (r *AllowListRepository) Set(ctx context.Context, teamID uuid.UUID, agentIDs []string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM team_allowed_agents WHERE team_id = $1`, teamID); err != nil {
		return fmt.Errorf("failed to clear allow-list: %w", err)
	}
	for _, agentID := range agentIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO team_allowed_agents (team_id, agent_id) VALUES ($1, $2)`,
			teamID, agentID); err != nil {
			return fmt.Errorf("failed to insert allow-list row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit allow-list: %w", err)
	}
	return nil
}

// ListAgentIDs returns the team's allowed agent ids, empty when none exist
func (r *AllowListRepository) ListAgentIDs(ctx context.Context, teamID uuid.UUID) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT agent_id FROM team_allowed_agents WHERE team_id = $1 ORDER BY agent_id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allowed agents: %w", err)
	}
	defer rows.Close()

	var agentIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan allowed agent: %w", err)
		}
		agentIDs = append(agentIDs, id)
	}
	return agentIDs, nil
}
