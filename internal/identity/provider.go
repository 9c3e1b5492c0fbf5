package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/prosomo/agenthub/internal/domain"
)

// AuthSession is the identity provider's view of an authenticated user
type AuthSession struct {
	UserID uuid.UUID
	Email  string
}

// Credentials is the result of a successful credential check
type Credentials struct {
	Session      AuthSession
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// SignUpResult reports account creation. When the provider defers activation
// until external verification, PendingVerification is true and the caller
// must not assume the user is signed in.
type SignUpResult struct {
	Session             AuthSession
	PendingVerification bool
}

// EventType enumerates provider-pushed auth state changes
type EventType string

const (
	EventSignedIn    EventType = "SIGNED_IN"
	EventSignedOut   EventType = "SIGNED_OUT"
	EventUserUpdated EventType = "USER_UPDATED"
)

// Event is one auth state change pushed by the provider
type Event struct {
	Type    EventType
	Session AuthSession
}

// Provider abstracts the external identity provider. Credential checks,
// token issuance and email ownership live here; profiles live in the store.
type Provider interface {
	// GetSession resolves an access token to its session, or
	// domain.ErrAuthentication when the token is invalid or expired.
	GetSession(ctx context.Context, accessToken string) (*AuthSession, error)

	// SignIn checks credentials and issues tokens. Bad credentials return
	// domain.ErrAuthentication; they are never retried automatically.
	SignIn(ctx context.Context, email, password string) (*Credentials, error)

	// SignUp creates the account. See SignUpResult for activation semantics.
	SignUp(ctx context.Context, email, password string) (*SignUpResult, error)

	// SignOut invalidates the provider session behind the token.
	SignOut(ctx context.Context, accessToken string) error

	// UpdateEmail changes the account email. Called before any profile
	// field update so a failure aborts the whole operation.
	UpdateEmail(ctx context.Context, userID uuid.UUID, email string) error

	// Events returns a push stream of auth state changes. The channel is
	// closed when ctx is cancelled; consumers must not block the stream.
	Events(ctx context.Context) <-chan Event
}

// Cache persists the merged identity outside process memory so a restarted
// instance can recover it. Cleared deterministically on sign-out. A miss is
// reported as domain.ErrNotFound.
type Cache interface {
	Put(ctx context.Context, identity *domain.Identity) error
	Get(ctx context.Context, userID uuid.UUID) (*domain.Identity, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}
