// Package guard is the reusable access-control checkpoint composing the
// permission tables with the identity session manager.
package guard

import (
	"context"
	"errors"

	"github.com/prosomo/agenthub/internal/domain"
	"github.com/prosomo/agenthub/internal/identity"
	"github.com/prosomo/agenthub/internal/rbac"
)

// Decision is the outcome of an access check. Pending means the identity
// or its profile is still loading and the caller must not treat the check
// as either granted or denied yet.
type Decision int

const (
	Pending Decision = iota
	Granted
	Denied
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Requirement names what a protected view needs: a capability or a page.
// An empty requirement grants access; an unknown one denies it.
type Requirement struct {
	Capability rbac.Capability
	Page       rbac.Page
}

// Empty reports whether the requirement imposes nothing
func (r Requirement) Empty() bool {
	return r.Capability == "" && r.Page == ""
}

// Guard evaluates requirements against one session's identity. It caches
// nothing: every call re-reads the manager state, fail-closed.
type Guard struct {
	manager *identity.Manager
}

// New creates a guard over the session's identity manager
func New(manager *identity.Manager) *Guard {
	return &Guard{manager: manager}
}

// Evaluate checks the requirement against the current identity
func (g *Guard) Evaluate(req Requirement) Decision {
	ident, state := g.manager.Current()

	switch state {
	case identity.StateUninitialized, identity.StateInitializing, identity.StateRefreshing:
		return Pending
	}

	if ident == nil {
		return Denied
	}
	if req.Empty() {
		return Granted
	}
	if req.Capability != "" {
		return decide(rbac.HasCapability(ident.Role, req.Capability))
	}
	return decide(rbac.CanAccessPage(ident.Role, req.Page))
}

// Reevaluate refreshes the profile first, then evaluates. Role changes made
// by an administrator elsewhere are not pushed to the affected session, so
// the affected user triggers this manually.
func (g *Guard) Reevaluate(ctx context.Context, req Requirement) (Decision, error) {
	if _, err := g.manager.RefreshProfile(ctx); err != nil && !errors.Is(err, domain.ErrNoIdentity) {
		return Denied, err
	}
	return g.Evaluate(req), nil
}

func decide(allowed bool) Decision {
	if allowed {
		return Granted
	}
	return Denied
}
