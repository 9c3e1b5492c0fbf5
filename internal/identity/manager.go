package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/rs/zerolog"
)

// State is the lifecycle phase of a Manager
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateAnonymous
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Manager owns one client session's merged identity: the provider's auth
// record combined with the stored profile. All mutation goes through its
// operations; nothing else writes the identity.
type Manager struct {
	provider Provider
	profiles domain.ProfileRepository
	cache    Cache
	logger   zerolog.Logger

	mu       sync.RWMutex
	state    State
	identity *domain.Identity
}

// NewManager creates a manager in the Uninitialized state
func NewManager(provider Provider, profiles domain.ProfileRepository, cache Cache, logger zerolog.Logger) *Manager {
	return &Manager{
		provider: provider,
		profiles: profiles,
		cache:    cache,
		logger:   logger.With().Str("component", "identity").Logger(),
	}
}

// Current returns a copy of the identity together with the manager state.
// The identity pointer is nil unless the state is Authenticated or
// Refreshing.
func (m *Manager) Current() (*domain.Identity, State) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return nil, m.state
	}
	ident := *m.identity
	return &ident, m.state
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Initialize resolves an existing provider session, merges the profile and
// primes the cache. An empty token or an invalid session leaves the manager
// Anonymous without error; only transport failures are surfaced.
func (m *Manager) Initialize(ctx context.Context, accessToken string) error {
	m.setState(StateInitializing)

	if accessToken == "" {
		m.setAnonymous()
		return nil
	}

	session, err := m.provider.GetSession(ctx, accessToken)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			m.setAnonymous()
			return nil
		}
		m.setAnonymous()
		return fmt.Errorf("failed to resolve session: %w", err)
	}

	ident := m.mergeIdentity(ctx, *session)
	m.setAuthenticated(ident)
	m.writeCache(ctx, ident)
	return nil
}

// SignIn delegates the credential check to the provider, then fetches and
// merges the profile. A missing profile row degrades to the default role; a
// failing profile store still authenticates but reports domain.ErrProfileFetch
// alongside the identity so the caller can decide what to show.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*domain.Identity, *Credentials, error) {
	creds, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	profile, fetchErr := m.fetchProfile(ctx, creds.Session.UserID)
	ident := merge(creds.Session, profile)
	m.setAuthenticated(ident)
	m.writeCache(ctx, ident)

	if fetchErr != nil {
		return ident, creds, fmt.Errorf("%w: %v", domain.ErrProfileFetch, fetchErr)
	}
	return ident, creds, nil
}

// SignUp creates the provider account and seeds the initial profile row with
// the default role. When the provider defers activation the caller gets
// PendingVerification and no authenticated identity.
func (m *Manager) SignUp(ctx context.Context, email, password, fullName, language string) (*SignUpResult, error) {
	result, err := m.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if language == "" {
		language = domain.DefaultLanguage
	}
	now := time.Now()
	profile := &domain.Profile{
		ID:        result.Session.UserID,
		FullName:  fullName,
		Role:      domain.RoleTeamMember,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	if !result.PendingVerification {
		ident := merge(result.Session, profile)
		m.setAuthenticated(ident)
		m.writeCache(ctx, ident)
	}
	return result, nil
}

// SignOut invalidates the provider session and deterministically clears the
// identity and its cache entry so no stale state survives.
func (m *Manager) SignOut(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	ident := m.identity
	m.identity = nil
	m.state = StateAnonymous
	m.mu.Unlock()

	if ident != nil {
		if err := m.cache.Clear(ctx, ident.ID); err != nil {
			m.logger.Warn().Err(err).Msg("failed to clear identity cache on sign-out")
		}
	}
	if err := m.provider.SignOut(ctx, accessToken); err != nil {
		return fmt.Errorf("provider sign-out failed: %w", err)
	}
	return nil
}

// RefreshProfile re-fetches the profile row and re-merges it. Used to pick
// up role changes made elsewhere without a full re-login. A call without an
// active identity logs a warning and is a no-op.
func (m *Manager) RefreshProfile(ctx context.Context) (*domain.Identity, error) {
	m.mu.Lock()
	if m.identity == nil {
		m.mu.Unlock()
		m.logger.Warn().Msg("cannot refresh profile: no active identity")
		return nil, domain.ErrNoIdentity
	}
	session := AuthSession{UserID: m.identity.ID, Email: m.identity.Email}
	prev := *m.identity
	m.state = StateRefreshing
	m.mu.Unlock()

	profile, err := m.fetchProfile(ctx, session.UserID)
	if err != nil {
		// Keep the previous identity; a flaky profile store must not
		// strip an authenticated session of its role.
		m.setAuthenticated(&prev)
		m.logger.Warn().Err(err).Msg("profile refresh failed, keeping previous identity")
		return &prev, nil
	}

	ident := merge(session, profile)
	m.setAuthenticated(ident)
	m.writeCache(ctx, ident)
	return ident, nil
}

// UpdateProfile writes the changed fields and re-merges them locally. The
// email change runs first against the provider; if it fails no profile field
// is touched, so a partial update is never applied silently.
func (m *Manager) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.Identity, error) {
	m.mu.RLock()
	if m.identity == nil {
		m.mu.RUnlock()
		return nil, domain.ErrNoIdentity
	}
	current := *m.identity
	m.mu.RUnlock()

	if update.Empty() {
		return &current, nil
	}

	if update.Email != nil && *update.Email != current.Email {
		if err := m.provider.UpdateEmail(ctx, current.ID, *update.Email); err != nil {
			return nil, fmt.Errorf("%w: email change rejected: %v", domain.ErrUpdate, err)
		}
		current.Email = *update.Email
	}

	if err := m.profiles.Update(ctx, current.ID, update); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpdate, err)
	}

	if update.FullName != nil {
		current.FullName = *update.FullName
	}
	if update.AvatarURL != nil {
		current.AvatarURL = *update.AvatarURL
	}
	if update.Language != nil {
		current.Language = *update.Language
	}

	m.setAuthenticated(&current)
	m.writeCache(ctx, &current)
	return &current, nil
}

// HandleEvent folds one provider-pushed auth event into the manager state
func (m *Manager) HandleEvent(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventSignedIn:
		ident := m.mergeIdentity(ctx, ev.Session)
		m.setAuthenticated(ident)
		m.writeCache(ctx, ident)
	case EventSignedOut:
		m.mu.Lock()
		ident := m.identity
		m.identity = nil
		m.state = StateAnonymous
		m.mu.Unlock()
		if ident != nil {
			if err := m.cache.Clear(ctx, ident.ID); err != nil {
				m.logger.Warn().Err(err).Msg("failed to clear identity cache on signed-out event")
			}
		}
	case EventUserUpdated:
		ident := m.mergeIdentity(ctx, ev.Session)
		m.setAuthenticated(ident)
		m.writeCache(ctx, ident)
	}
}

// mergeIdentity fetches the profile for the session and merges. When the
// profile store is down it recovers the last merged identity from the cache
// so a restarted instance keeps the user's real role; only a cache miss
// degrades to defaults.
func (m *Manager) mergeIdentity(ctx context.Context, session AuthSession) *domain.Identity {
	profile, err := m.fetchProfile(ctx, session.UserID)
	if err != nil {
		if cached, cacheErr := m.cache.Get(ctx, session.UserID); cacheErr == nil && cached != nil {
			m.logger.Warn().Err(err).Stringer("user_id", session.UserID).
				Msg("profile fetch failed, recovering cached identity")
			cached.Email = session.Email
			return cached
		}
		m.logger.Warn().Err(err).Stringer("user_id", session.UserID).
			Msg("profile fetch failed, falling back to defaults")
	}
	return merge(session, profile)
}

// fetchProfile reads the profile row. A missing row is not an error: the
// caller merges with defaults. Transport failures are returned.
func (m *Manager) fetchProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	profile, err := m.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return profile, nil
}

// merge combines the auth session with a profile row. The role is always
// non-nil after this: absence of a profile falls back to Team Member.
func merge(session AuthSession, profile *domain.Profile) *domain.Identity {
	ident := &domain.Identity{
		ID:       session.UserID,
		Email:    session.Email,
		Role:     domain.RoleTeamMember,
		Language: domain.DefaultLanguage,
	}
	if profile == nil {
		return ident
	}
	ident.FullName = profile.FullName
	if profile.Role != "" {
		ident.Role = profile.Role
	}
	ident.AvatarURL = profile.AvatarURL
	if profile.Language != "" {
		ident.Language = profile.Language
	}
	return ident
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) setAnonymous() {
	m.mu.Lock()
	m.identity = nil
	m.state = StateAnonymous
	m.mu.Unlock()
}

func (m *Manager) setAuthenticated(ident *domain.Identity) {
	m.mu.Lock()
	m.identity = ident
	m.state = StateAuthenticated
	m.mu.Unlock()
}

func (m *Manager) writeCache(ctx context.Context, ident *domain.Identity) {
	if err := m.cache.Put(ctx, ident); err != nil {
		m.logger.Warn().Err(err).Msg("failed to write identity cache")
	}
}
