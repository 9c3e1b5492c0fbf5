package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prosomo/agenthub/internal/api/middleware"
	"github.com/prosomo/agenthub/internal/api/response"
	"github.com/prosomo/agenthub/internal/domain"
)

// TeamHandler handles team administration endpoints
type TeamHandler struct {
	teams       domain.TeamRepository
	memberships domain.MembershipRepository
	allowLists  domain.AllowListRepository
}

// NewTeamHandler creates a new team handler
func NewTeamHandler(
	teams domain.TeamRepository,
	memberships domain.MembershipRepository,
	allowLists domain.AllowListRepository,
) *TeamHandler {
	return &TeamHandler{teams: teams, memberships: memberships, allowLists: allowLists}
}

// List returns all teams
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.List(r.Context())
	if err != nil {
		response.InternalError(w, "failed to list teams")
		return
	}

	response.OK(w, map[string]any{"teams": teams})
}

// Create registers a new team
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.TeamCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	now := time.Now()
	team := &domain.Team{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.teams.Create(r.Context(), team); err != nil {
		response.InternalError(w, "failed to create team")
		return
	}

	response.Created(w, team)
}

// Get returns one team
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	teamID, ok := parseTeamID(w, r)
	if !ok {
		return
	}

	team, err := h.teams.Get(r.Context(), teamID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "team not found")
			return
		}
		response.InternalError(w, "failed to load team")
		return
	}

	response.OK(w, team)
}

// Update changes a team's name or description
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	teamID, ok := parseTeamID(w, r)
	if !ok {
		return
	}

	var input domain.TeamCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	team, err := h.teams.Get(r.Context(), teamID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "team not found")
			return
		}
		response.InternalError(w, "failed to load team")
		return
	}

	team.Name = input.Name
	team.Description = input.Description
	team.UpdatedAt = time.Now()

	if err := h.teams.Update(r.Context(), team); err != nil {
		response.InternalError(w, "failed to update team")
		return
	}

	response.OK(w, team)
}

// Delete removes a team and its membership rows
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	teamID, ok := parseTeamID(w, r)
	if !ok {
		return
	}

	if err := h.teams.Delete(r.Context(), teamID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "team not found")
			return
		}
		response.InternalError(w, "failed to delete team")
		return
	}

	response.NoContent(w)
}

// Members lists the team's member ids
func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request) {
	teamID, ok := parseTeamID(w, r)
	if !ok {
		return
	}

	members, err := h.memberships.ListMemberIDs(r.Context(), teamID)
	if err != nil {
		response.InternalError(w, "failed to list members")
		return
	}

	response.OK(w, map[string]any{"members": members})
}

// AddMember adds a user to the team
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := parseTeamID(w, r)
	if !ok {
		return
	}

	var input struct {
		UserID uuid.UUID `json:"user_id" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if input.UserID == uuid.Nil {
		response.BadRequest(w, "missing user ID")
		return
	}

	if err := h.memberships.Add(r.Context(), teamID, input.UserID); err != nil {
		response.InternalError(w, "failed to add member")
		return
	}

	response.Created(w, map[string]any{"team_id": teamID, "user_id": input.UserID})
}

// RemoveMember removes a user from the team
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := parseTeamID(w, r)
	if !ok {
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "invalid user ID")
		return
	}

	if err := h.memberships.Remove(r.Context(), teamID, userID); err != nil {
		response.InternalError(w, "failed to remove member")
		return
	}

	response.NoContent(w)
}

// AllowList returns the agent ids the team's members may use
func (h *TeamHandler) AllowList(w http.ResponseWriter, r *http.Request) {
	teamID, ok := parseTeamID(w, r)
	if !ok {
		return
	}

	agentIDs, err := h.allowLists.ListAgentIDs(r.Context(), teamID)
	if err != nil {
		response.InternalError(w, "failed to load allow-list")
		return
	}

	response.OK(w, map[string]any{"agent_ids": agentIDs})
}

// SetAllowList replaces the team's allowed agent set
func (h *TeamHandler) SetAllowList(w http.ResponseWriter, r *http.Request) {
	teamID, ok := parseTeamID(w, r)
	if !ok {
		return
	}

	var input struct {
		AgentIDs []string `json:"agent_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.allowLists.Set(r.Context(), teamID, input.AgentIDs); err != nil {
		response.InternalError(w, "failed to update allow-list")
		return
	}

	response.OK(w, map[string]any{"agent_ids": input.AgentIDs})
}

func parseTeamID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	teamID, err := uuid.Parse(chi.URLParam(r, "teamID"))
	if err != nil {
		response.BadRequest(w, "invalid team ID")
		return uuid.Nil, false
	}
	return teamID, true
}
