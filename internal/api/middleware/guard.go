package middleware

import (
	"net/http"

	"github.com/prosomo/agenthub/internal/api/response"
	"github.com/prosomo/agenthub/internal/guard"
	"github.com/prosomo/agenthub/internal/rbac"
)

// RequireCapability denies the request unless the caller's role carries the
// capability. A session still resolving its identity is told to retry.
func RequireCapability(cap rbac.Capability) func(http.Handler) http.Handler {
	return requirement(guard.Requirement{Capability: cap})
}

// RequirePage denies the request unless the caller's role may open the page
func RequirePage(page rbac.Page) func(http.Handler) http.Handler {
	return requirement(guard.Requirement{Page: page})
}

func requirement(req guard.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			manager, ok := GetManager(r.Context())
			if !ok {
				response.Unauthorized(w, "unauthorized")
				return
			}

			switch guard.New(manager).Evaluate(req) {
			case guard.Granted:
				next.ServeHTTP(w, r)
			case guard.Pending:
				w.Header().Set("Retry-After", "1")
				response.Error(w, http.StatusServiceUnavailable, "session still loading")
			default:
				response.Forbidden(w, "insufficient permissions")
			}
		})
	}
}
