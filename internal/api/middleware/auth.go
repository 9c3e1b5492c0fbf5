package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/prosomo/agenthub/internal/api/response"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/prosomo/agenthub/internal/identity"
	"github.com/prosomo/agenthub/internal/repository/redis"
	"github.com/prosomo/agenthub/internal/security"
)

type contextKey string

const (
	UserIDKey      contextKey = "userID"
	UserEmailKey   contextKey = "userEmail"
	AccessTokenKey contextKey = "accessToken"
	ManagerKey     contextKey = "identityManager"
)

// AuthMiddleware validates bearer tokens and binds the request to the
// caller's identity session manager.
type AuthMiddleware struct {
	jwtManager *security.JWTManager
	registry   *identity.Registry
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *security.JWTManager, registry *identity.Registry) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager, registry: registry}
}

// Authenticate validates the JWT token and resolves the identity manager
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Error(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := m.jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			response.Unauthorized(w, "invalid or expired token: "+err.Error())
			return
		}

		manager, err := m.registry.For(r.Context(), claims.UserID, parts[1])
		if err != nil {
			response.Unauthorized(w, "failed to resolve session")
			return
		}

		// Add user info to context
		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
		ctx = context.WithValue(ctx, AccessTokenKey, parts[1])
		ctx = context.WithValue(ctx, ManagerKey, manager)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID gets the user ID from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetUserEmail gets the user email from context
func GetUserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}

// GetAccessToken gets the raw bearer token from context
func GetAccessToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(AccessTokenKey).(string)
	return token, ok
}

// GetManager gets the identity session manager from context
func GetManager(ctx context.Context) (*identity.Manager, bool) {
	manager, ok := ctx.Value(ManagerKey).(*identity.Manager)
	return manager, ok
}

// GetIdentity gets the authenticated identity from context. False when the
// request is unauthenticated or the session has no identity yet.
func GetIdentity(ctx context.Context) (*domain.Identity, bool) {
	manager, ok := GetManager(ctx)
	if !ok {
		return nil, false
	}
	ident, _ := manager.Current()
	if ident == nil {
		return nil, false
	}
	return ident, true
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	rateLimiter *redis.RateLimiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(rateLimiter *redis.RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{rateLimiter: rateLimiter}
}

// Limit applies rate limiting based on user ID
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		allowed, remaining, resetTime, err := m.rateLimiter.Allow(r.Context(), userID.String())
		if err != nil {
			// If rate limiter fails, allow the request but log the error
			next.ServeHTTP(w, r)
			return
		}

		// Set rate limit headers
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", resetTime.Format("2006-01-02T15:04:05Z"))

		if !allowed {
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
