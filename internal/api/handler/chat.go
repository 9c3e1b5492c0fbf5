package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prosomo/agenthub/internal/agentscope"
	"github.com/prosomo/agenthub/internal/api/middleware"
	"github.com/prosomo/agenthub/internal/api/response"
	"github.com/prosomo/agenthub/internal/chat"
	"github.com/prosomo/agenthub/internal/domain"
)

// ChatHandler exposes the conversation protocol over HTTP
type ChatHandler struct {
	protocol *chat.Protocol
	registry *agentscope.Registry
	resolver *agentscope.Resolver
}

// NewChatHandler creates a new chat handler
func NewChatHandler(protocol *chat.Protocol, registry *agentscope.Registry, resolver *agentscope.Resolver) *ChatHandler {
	return &ChatHandler{protocol: protocol, registry: registry, resolver: resolver}
}

// Open restores or creates the conversation with the agent
func (h *ChatHandler) Open(w http.ResponseWriter, r *http.Request) {
	ident, agent, ok := h.resolveAgent(w, r)
	if !ok {
		return
	}

	conv, err := h.protocol.OpenSession(r.Context(), ident, agent)
	if err != nil {
		response.InternalError(w, "failed to open session")
		return
	}

	response.OK(w, conv)
}

// Send posts one user message and waits for the agent's reply
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ident, agent, ok := h.resolveAgent(w, r)
	if !ok {
		return
	}

	var input struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	conv, outcome, err := h.protocol.SendMessage(r.Context(), ident, agent, input.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			response.BadRequest(w, "message is empty")
		case errors.Is(err, chat.ErrSendInFlight):
			response.Error(w, http.StatusConflict, "a send is already in flight")
		case outcome == chat.OutcomeStale:
			response.OK(w, map[string]any{"outcome": outcome.String()})
		default:
			response.InternalError(w, "failed to send message")
		}
		return
	}

	response.OK(w, map[string]any{
		"outcome":      outcome.String(),
		"conversation": conv,
	})
}

// Reset discards the conversation and starts a fresh session
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ident, agent, ok := h.resolveAgent(w, r)
	if !ok {
		return
	}

	conv, err := h.protocol.ResetSession(r.Context(), ident, agent)
	if err != nil {
		response.InternalError(w, "failed to reset session")
		return
	}

	response.OK(w, conv)
}

// resolveAgent loads the agent from the URL and checks the caller may use
// it. Visibility is enforced here, not in the protocol.
func (h *ChatHandler) resolveAgent(w http.ResponseWriter, r *http.Request) (*domain.Identity, *domain.Agent, bool) {
	ident, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return nil, nil, false
	}

	agentID := chi.URLParam(r, "agentID")
	if agentID == "" {
		response.BadRequest(w, "missing agent ID")
		return nil, nil, false
	}

	agent, err := h.registry.Get(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "unknown agent")
			return nil, nil, false
		}
		response.InternalError(w, "failed to load agent")
		return nil, nil, false
	}

	visible, err := h.resolver.VisibleAgents(r.Context(), ident)
	if err != nil {
		response.InternalError(w, "failed to resolve agents")
		return nil, nil, false
	}
	for _, id := range visible {
		if id == agentID {
			return ident, agent, true
		}
	}

	response.Forbidden(w, "agent not available to your team")
	return nil, nil, false
}
