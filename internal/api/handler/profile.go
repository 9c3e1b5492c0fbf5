package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prosomo/agenthub/internal/api/middleware"
	"github.com/prosomo/agenthub/internal/api/response"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/prosomo/agenthub/internal/repository/redis"
)

// ProfileHandler serves the caller's own profile
type ProfileHandler struct {
	notifier *redis.Notifier
	logger   zerolog.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(notifier *redis.Notifier, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		notifier: notifier,
		logger:   logger.With().Str("handler", "profile").Logger(),
	}
}

// Me returns the caller's merged identity
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	response.OK(w, identityView(ident))
}

// Update applies a partial profile update
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	manager, ok := middleware.GetManager(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var update domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(update); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	ident, err := manager.UpdateProfile(r.Context(), update)
	if err != nil {
		if errors.Is(err, domain.ErrNoIdentity) {
			response.Unauthorized(w, "unauthorized")
			return
		}
		response.BadRequest(w, err.Error())
		return
	}

	h.notifier.Publish(r.Context(), redis.ChannelProfileChanges, redis.ChangeEvent{
		Table:  "user_profiles",
		Action: "UPDATE",
		ID:     ident.ID.String(),
	})

	response.OK(w, identityView(ident))
}

// Refresh re-reads the profile row so role changes made elsewhere apply to
// this session.
func (h *ProfileHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	manager, ok := middleware.GetManager(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	ident, err := manager.RefreshProfile(r.Context())
	if err != nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	response.OK(w, identityView(ident))
}
