package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prosomo/agenthub/internal/agentscope"
	"github.com/prosomo/agenthub/internal/api/middleware"
	"github.com/prosomo/agenthub/internal/api/response"
	"github.com/prosomo/agenthub/internal/domain"
)

// AgentsHandler serves the caller's visible agent set and team selection
type AgentsHandler struct {
	registry *agentscope.Registry
	resolver *agentscope.Resolver
}

// NewAgentsHandler creates a new agents handler
func NewAgentsHandler(registry *agentscope.Registry, resolver *agentscope.Resolver) *AgentsHandler {
	return &AgentsHandler{registry: registry, resolver: resolver}
}

// List returns the agents the caller may use, in registry order
func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	visible, err := h.resolver.VisibleAgents(r.Context(), ident)
	if err != nil {
		response.InternalError(w, "failed to resolve agents")
		return
	}

	agents, err := h.details(r, visible)
	if err != nil {
		response.InternalError(w, "failed to load agents")
		return
	}

	response.OK(w, map[string]any{"agents": agents})
}

// Teams lists the caller's teams in membership order, first one active
func (h *AgentsHandler) Teams(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	teams, err := h.resolver.Teams(r.Context(), ident)
	if err != nil {
		response.InternalError(w, "failed to load teams")
		return
	}

	response.OK(w, map[string]any{"teams": teams})
}

// SwitchTeam makes the given team the active scope for agent visibility.
// A failing switch keeps the previous agent list rather than blanking it.
func (h *AgentsHandler) SwitchTeam(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	teamID, err := uuid.Parse(chi.URLParam(r, "teamID"))
	if err != nil {
		response.BadRequest(w, "invalid team ID")
		return
	}

	visible, err := h.resolver.SwitchActiveTeam(r.Context(), ident, teamID)
	if err != nil {
		response.InternalError(w, "failed to switch team")
		return
	}

	agents, err := h.details(r, visible)
	if err != nil {
		response.InternalError(w, "failed to load agents")
		return
	}

	response.OK(w, map[string]any{"agents": agents})
}

func (h *AgentsHandler) details(r *http.Request, ids []string) ([]domain.Agent, error) {
	agents := make([]domain.Agent, 0, len(ids))
	for _, id := range ids {
		agent, err := h.registry.Get(r.Context(), id)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *agent)
	}
	return agents, nil
}
