// Package agentscope computes which agents a user may see, based on team
// membership and per-team allow-lists.
package agentscope

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/prosomo/agenthub/internal/rbac"
	"github.com/rs/zerolog"
)

// Resolver computes the visible agent set per user. Only the first team in
// membership order scopes visibility; allow-lists are never unioned across
// teams. That matches the observed product behavior and is kept as-is.
type Resolver struct {
	memberships domain.MembershipRepository
	allowLists  domain.AllowListRepository
	teams       domain.TeamRepository
	registry    *Registry
	logger      zerolog.Logger

	mu     sync.Mutex
	scopes map[uuid.UUID]*scope
}

// scope remembers a user's active team and last good allow-list so a
// failing switch can fall back instead of blanking the view.
type scope struct {
	activeTeam uuid.UUID
	visible    []string
}

// NewResolver creates a new resolver
func NewResolver(
	memberships domain.MembershipRepository,
	allowLists domain.AllowListRepository,
	teams domain.TeamRepository,
	registry *Registry,
	logger zerolog.Logger,
) *Resolver {
	return &Resolver{
		memberships: memberships,
		allowLists:  allowLists,
		teams:       teams,
		registry:    registry,
		logger:      logger.With().Str("component", "agentscope").Logger(),
		scopes:      make(map[uuid.UUID]*scope),
	}
}

// VisibleAgents returns the agent ids the identity may use. No memberships
// plus canAccessAllAgents yields the full registry; no memberships without
// it yields nothing; otherwise the first team's allow-list applies.
func (r *Resolver) VisibleAgents(ctx context.Context, ident *domain.Identity) ([]string, error) {
	teamIDs, err := r.memberships.ListTeamIDs(ctx, ident.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	if len(teamIDs) == 0 {
		if rbac.HasCapability(ident.Role, rbac.CapAccessAllAgents) {
			return r.registry.IDs(ctx)
		}
		return []string{}, nil
	}

	r.mu.Lock()
	sc, ok := r.scopes[ident.ID]
	r.mu.Unlock()

	activeTeam := teamIDs[0]
	if ok && containsTeam(teamIDs, sc.activeTeam) {
		activeTeam = sc.activeTeam
	}

	visible, err := r.resolveTeam(ctx, ident, activeTeam)
	if err != nil {
		return nil, err
	}

	r.setScope(ident.ID, activeTeam, visible)
	return visible, nil
}

// SwitchActiveTeam recomputes the allow-list for the newly selected team.
// Errors fail soft: the previous visible set is kept and returned.
func (r *Resolver) SwitchActiveTeam(ctx context.Context, ident *domain.Identity, teamID uuid.UUID) ([]string, error) {
	visible, err := r.resolveTeam(ctx, ident, teamID)
	if err != nil {
		r.logger.Warn().Err(err).
			Stringer("user_id", ident.ID).
			Stringer("team_id", teamID).
			Msg("team switch failed, keeping previous agent list")

		r.mu.Lock()
		defer r.mu.Unlock()
		if sc, ok := r.scopes[ident.ID]; ok {
			return sc.visible, nil
		}
		return []string{}, nil
	}

	r.setScope(ident.ID, teamID, visible)
	return visible, nil
}

// Teams lists the identity's teams in membership order, first one active
func (r *Resolver) Teams(ctx context.Context, ident *domain.Identity) ([]domain.Team, error) {
	teamIDs, err := r.memberships.ListTeamIDs(ctx, ident.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	teams := make([]domain.Team, 0, len(teamIDs))
	for _, id := range teamIDs {
		team, err := r.teams.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load team %s: %w", id, err)
		}
		teams = append(teams, *team)
	}
	return teams, nil
}

// resolveTeam computes the visible set for one team. An identity with
// canAccessAllAgents and an empty allow-list still sees everything; once
// explicit rows exist it is scoped like any member.
func (r *Resolver) resolveTeam(ctx context.Context, ident *domain.Identity, teamID uuid.UUID) ([]string, error) {
	allowed, err := r.allowLists.ListAgentIDs(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load allow-list: %w", err)
	}

	if len(allowed) == 0 && rbac.HasCapability(ident.Role, rbac.CapAccessAllAgents) {
		return r.registry.IDs(ctx)
	}

	known, err := r.registry.IDs(ctx)
	if err != nil {
		return nil, err
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, id := range known {
		knownSet[id] = struct{}{}
	}

	visible := make([]string, 0, len(allowed))
	for _, id := range allowed {
		if _, ok := knownSet[id]; ok {
			visible = append(visible, id)
		}
	}
	return visible, nil
}

func (r *Resolver) setScope(userID, teamID uuid.UUID, visible []string) {
	r.mu.Lock()
	r.scopes[userID] = &scope{activeTeam: teamID, visible: visible}
	r.mu.Unlock()
}

func containsTeam(teamIDs []uuid.UUID, id uuid.UUID) bool {
	for _, t := range teamIDs {
		if t == id {
			return true
		}
	}
	return false
}
