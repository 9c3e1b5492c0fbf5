package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/prosomo/agenthub/internal/api/middleware"
	"github.com/prosomo/agenthub/internal/api/response"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/prosomo/agenthub/internal/identity"
	"github.com/prosomo/agenthub/internal/identity/local"
	"github.com/prosomo/agenthub/internal/rbac"
)

var validate = validator.New()

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	registry *identity.Registry
	provider *local.Provider
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(registry *identity.Registry, provider *local.Provider) *AuthHandler {
	return &AuthHandler{registry: registry, provider: provider}
}

type registerInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Language string `json:"language" validate:"omitempty,len=2"`
}

// Register handles account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input registerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	manager := h.registry.NewSession()
	result, err := manager.SignUp(r.Context(), input.Email, input.Password, input.FullName, input.Language)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if !result.PendingVerification {
		h.registry.Bind(result.Session.UserID, manager)
	}

	response.Created(w, map[string]any{
		"id":                   result.Session.UserID,
		"email":                input.Email,
		"pending_verification": result.PendingVerification,
	})
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login checks credentials and returns tokens plus the merged identity.
// A profile store outage does not block the login; the identity falls back
// to defaults and the response says so.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input loginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	manager := h.registry.NewSession()
	ident, creds, err := manager.SignIn(r.Context(), input.Email, input.Password)
	if err != nil && !errors.Is(err, domain.ErrProfileFetch) {
		response.Unauthorized(w, "invalid credentials")
		return
	}

	h.registry.Bind(ident.ID, manager)

	response.OK(w, map[string]any{
		"access_token":     creds.AccessToken,
		"refresh_token":    creds.RefreshToken,
		"expires_in":       creds.ExpiresIn,
		"user":             identityView(ident),
		"profile_degraded": err != nil,
	})
}

// Refresh exchanges a refresh token for a new token pair
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	creds, err := h.provider.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		response.Unauthorized(w, err.Error())
		return
	}

	response.OK(w, map[string]any{
		"access_token":  creds.AccessToken,
		"refresh_token": creds.RefreshToken,
		"expires_in":    creds.ExpiresIn,
	})
}

// Logout invalidates the session and drops its manager
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	manager, ok := middleware.GetManager(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	token, _ := middleware.GetAccessToken(r.Context())

	if err := manager.SignOut(r.Context(), token); err != nil {
		// Local state is already cleared; the caller is signed out either way
		response.OK(w, map[string]string{"status": "signed out"})
		h.registry.Drop(userID)
		return
	}
	h.registry.Drop(userID)

	response.OK(w, map[string]string{"status": "signed out"})
}

// VerifyEmail marks a pending account as verified
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email" validate:"required,email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	if err := h.provider.VerifyEmail(r.Context(), input.Email); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	response.OK(w, map[string]string{"status": "verified"})
}

// identityView is the identity shape returned to clients, enriched with the
// role-derived landing page and capability set.
func identityView(ident *domain.Identity) map[string]any {
	return map[string]any{
		"id":           ident.ID,
		"email":        ident.Email,
		"full_name":    ident.FullName,
		"role":         ident.Role,
		"avatar_url":   ident.AvatarURL,
		"language":     ident.Language,
		"landing_page": rbac.LandingPageFor(ident.Role),
		"capabilities": rbac.Capabilities(ident.Role),
	}
}

// validationErrors flattens validator output into a field -> message map
func validationErrors(err error) any {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	errors := make(map[string]string)
	for _, e := range validationErrs {
		switch e.Tag() {
		case "required":
			errors[e.Field()] = "field is required"
		case "email":
			errors[e.Field()] = "invalid email format"
		case "min":
			errors[e.Field()] = "must be at least " + e.Param() + " characters"
		case "max":
			errors[e.Field()] = "must be at most " + e.Param() + " characters"
		case "len":
			errors[e.Field()] = "must be exactly " + e.Param() + " characters"
		case "url":
			errors[e.Field()] = "invalid URL"
		default:
			errors[e.Field()] = "validation failed on " + e.Tag()
		}
	}
	return errors
}
