package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prosomo/agenthub/internal/api/middleware"
	"github.com/prosomo/agenthub/internal/api/response"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/prosomo/agenthub/internal/rbac"
	"github.com/prosomo/agenthub/internal/repository/redis"
)

// UserHandler handles administration of other users
type UserHandler struct {
	profiles domain.ProfileRepository
	notifier *redis.Notifier
}

// NewUserHandler creates a new user handler
func NewUserHandler(profiles domain.ProfileRepository, notifier *redis.Notifier) *UserHandler {
	return &UserHandler{profiles: profiles, notifier: notifier}
}

// UpdateRole assigns a role to another user. The new role must be one the
// caller may assign; the affected user's session picks it up on its next
// profile refresh, not immediately.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "invalid user ID")
		return
	}

	var input struct {
		Role domain.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	assignable := false
	for _, role := range rbac.AssignableRoles(caller.Role) {
		if role == input.Role {
			assignable = true
			break
		}
	}
	if !assignable {
		response.BadRequest(w, "role cannot be assigned")
		return
	}

	if err := h.profiles.UpdateRole(r.Context(), userID, input.Role); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w, "failed to update role")
		return
	}

	h.notifier.Publish(r.Context(), redis.ChannelProfileChanges, redis.ChangeEvent{
		Table:  "user_profiles",
		Action: "UPDATE",
		ID:     userID.String(),
	})

	response.OK(w, map[string]any{"id": userID, "role": input.Role})
}
