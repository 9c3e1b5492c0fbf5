// Package local is the built-in identity provider: Postgres-backed accounts
// with bcrypt credentials and HS256 token pairs. It satisfies the same
// contract an external hosted provider would.
package local

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/prosomo/agenthub/internal/identity"
	"github.com/prosomo/agenthub/internal/repository/postgres"
	"github.com/prosomo/agenthub/internal/security"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Provider implements identity.Provider
type Provider struct {
	accounts *postgres.AccountRepository
	tokens   *security.JWTManager
	logger   zerolog.Logger

	// autoConfirm skips the email verification step; sign-ups then
	// authenticate immediately instead of returning PendingVerification.
	autoConfirm bool

	mu   sync.Mutex
	subs map[chan identity.Event]struct{}
}

// NewProvider creates a new local identity provider
func NewProvider(accounts *postgres.AccountRepository, tokens *security.JWTManager, autoConfirm bool, logger zerolog.Logger) *Provider {
	return &Provider{
		accounts:    accounts,
		tokens:      tokens,
		autoConfirm: autoConfirm,
		logger:      logger.With().Str("component", "identity_provider").Logger(),
		subs:        make(map[chan identity.Event]struct{}),
	}
}

// GetSession resolves an access token to its session
func (p *Provider) GetSession(ctx context.Context, accessToken string) (*identity.AuthSession, error) {
	claims, err := p.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}
	return &identity.AuthSession{UserID: claims.UserID, Email: claims.Email}, nil
}

// SignIn checks credentials and issues a token pair
func (p *Provider) SignIn(ctx context.Context, email, password string) (*identity.Credentials, error) {
	account, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", domain.ErrAuthentication)
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrAuthentication)
	}
	if !account.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified", domain.ErrAuthentication)
	}

	accessToken, refreshToken, expiresIn, err := p.tokens.GenerateTokenPair(account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	session := identity.AuthSession{UserID: account.ID, Email: account.Email}
	p.publish(identity.Event{Type: identity.EventSignedIn, Session: session})

	return &identity.Credentials{
		Session:      session,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// SignUp creates the account. Unless the provider is configured to
// auto-confirm, the account stays pending until VerifyEmail runs and the
// result carries PendingVerification.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*identity.SignUpResult, error) {
	exists, err := p.accounts.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: email already registered", domain.ErrAuthentication)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	account := &postgres.Account{
		ID:            uuid.New(),
		Email:         email,
		PasswordHash:  string(hash),
		EmailVerified: p.autoConfirm,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	session := identity.AuthSession{UserID: account.ID, Email: account.Email}
	if p.autoConfirm {
		p.publish(identity.Event{Type: identity.EventSignedIn, Session: session})
	}

	return &identity.SignUpResult{
		Session:             session,
		PendingVerification: !p.autoConfirm,
	}, nil
}

// SignOut invalidates the session. Access tokens are short-lived and not
// individually revocable; the signed-out event clears dependent state, and
// the token simply ages out.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		// An already-expired token still counts as signed out.
		p.logger.Debug().Err(err).Msg("sign-out with invalid token")
		return nil
	}
	p.publish(identity.Event{
		Type:    identity.EventSignedOut,
		Session: identity.AuthSession{UserID: claims.UserID, Email: claims.Email},
	})
	return nil
}

// Refresh exchanges a refresh token for a new token pair
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*identity.Credentials, error) {
	userID, err := p.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", domain.ErrAuthentication)
	}

	account, err := p.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", domain.ErrAuthentication)
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	accessToken, newRefreshToken, expiresIn, err := p.tokens.GenerateTokenPair(account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return &identity.Credentials{
		Session:      identity.AuthSession{UserID: account.ID, Email: account.Email},
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// UpdateEmail changes the account email and pushes a USER_UPDATED event
func (p *Provider) UpdateEmail(ctx context.Context, userID uuid.UUID, email string) error {
	exists, err := p.accounts.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return fmt.Errorf("email already in use")
	}

	if err := p.accounts.UpdateEmail(ctx, userID, email); err != nil {
		return err
	}
	p.publish(identity.Event{
		Type:    identity.EventUserUpdated,
		Session: identity.AuthSession{UserID: userID, Email: email},
	})
	return nil
}

// VerifyEmail completes the deferred activation step for a pending account
func (p *Provider) VerifyEmail(ctx context.Context, email string) error {
	return p.accounts.MarkVerified(ctx, email)
}

// Events returns a push stream of auth state changes, closed when ctx ends
func (p *Provider) Events(ctx context.Context) <-chan identity.Event {
	ch := make(chan identity.Event, 16)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs, ch)
		p.mu.Unlock()
		close(ch)
	}()

	return ch
}

// publish delivers an event to every subscriber without ever blocking the
// auth operation that produced it.
func (p *Provider) publish(ev identity.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- ev:
		default:
			p.logger.Warn().Str("event", string(ev.Type)).Msg("dropping auth event for slow subscriber")
		}
	}
}
