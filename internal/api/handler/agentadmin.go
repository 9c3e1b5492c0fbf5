package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prosomo/agenthub/internal/api/response"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/prosomo/agenthub/internal/repository/redis"
)

// AgentAdminHandler manages custom agents. Built-in agents are immutable
// and rejected here.
type AgentAdminHandler struct {
	agents   domain.AgentRepository
	notifier *redis.Notifier
}

// NewAgentAdminHandler creates a new agent admin handler
func NewAgentAdminHandler(agents domain.AgentRepository, notifier *redis.Notifier) *AgentAdminHandler {
	return &AgentAdminHandler{agents: agents, notifier: notifier}
}

// List returns all custom agents
func (h *AgentAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.List(r.Context())
	if err != nil {
		response.InternalError(w, "failed to list agents")
		return
	}

	response.OK(w, map[string]any{"agents": agents})
}

// Create registers a new custom agent
func (h *AgentAdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.AgentCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	agent := &domain.Agent{
		ID:         input.ID,
		Name:       input.Name,
		WebhookURL: input.WebhookURL,
		Color:      input.Color,
		Icon:       input.Icon,
		Custom:     true,
		CreatedAt:  time.Now(),
	}

	if err := h.agents.Create(r.Context(), agent); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	h.publish(r, "INSERT", agent.ID)
	response.Created(w, agent)
}

// Update changes a custom agent's fields
func (h *AgentAdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	agent, err := h.agents.Get(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "agent not found")
			return
		}
		response.InternalError(w, "failed to load agent")
		return
	}

	var input domain.AgentCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	input.ID = agentID

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	agent.Name = input.Name
	agent.WebhookURL = input.WebhookURL
	agent.Color = input.Color
	agent.Icon = input.Icon

	if err := h.agents.Update(r.Context(), agent); err != nil {
		response.InternalError(w, "failed to update agent")
		return
	}

	h.publish(r, "UPDATE", agentID)
	response.OK(w, agent)
}

// Delete removes a custom agent
func (h *AgentAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	if err := h.agents.Delete(r.Context(), agentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "agent not found")
			return
		}
		response.InternalError(w, "failed to delete agent")
		return
	}

	h.publish(r, "DELETE", agentID)
	response.NoContent(w)
}

func (h *AgentAdminHandler) publish(r *http.Request, action, id string) {
	h.notifier.Publish(r.Context(), redis.ChannelAgentChanges, redis.ChangeEvent{
		Table:  "custom_agents",
		Action: action,
		ID:     id,
	})
}
