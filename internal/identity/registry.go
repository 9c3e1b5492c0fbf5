package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/rs/zerolog"
)

// ProfileChangeFeed streams the ids of users whose profile rows changed
// outside this process, typically through the admin role endpoint on
// another instance. The channel is closed when ctx is cancelled.
type ProfileChangeFeed interface {
	ProfileChanges(ctx context.Context) <-chan uuid.UUID
}

// Registry holds one Manager per authenticated user session and routes
// provider-pushed auth events to the right one. It replaces the original
// process-wide singleton with an explicit, injectable lifecycle.
type Registry struct {
	provider Provider
	profiles domain.ProfileRepository
	cache    Cache
	changes  ProfileChangeFeed
	logger   zerolog.Logger

	mu       sync.RWMutex
	managers map[uuid.UUID]*Manager

	cancel context.CancelFunc
}

// NewRegistry creates an empty registry. The change feed may be nil when no
// cross-instance invalidation is available.
func NewRegistry(provider Provider, profiles domain.ProfileRepository, cache Cache, changes ProfileChangeFeed, logger zerolog.Logger) *Registry {
	return &Registry{
		provider: provider,
		profiles: profiles,
		cache:    cache,
		changes:  changes,
		logger:   logger.With().Str("component", "identity_registry").Logger(),
		managers: make(map[uuid.UUID]*Manager),
	}
}

// Start subscribes to the provider's auth event stream and, when a change
// feed is wired, to profile change notifications, both for the lifetime of
// ctx. Callbacks only fold state into managers; they never block foreground
// operations.
func (r *Registry) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	events := r.provider.Events(ctx)
	go func() {
		for ev := range events {
			r.dispatch(ctx, ev)
		}
	}()

	if r.changes == nil {
		return
	}
	updates := r.changes.ProfileChanges(ctx)
	go func() {
		for userID := range updates {
			r.applyProfileChange(ctx, userID)
		}
	}()
}

// Stop tears down the event and change feed subscriptions
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

// For returns the manager bound to the user, initializing one from the
// access token on first use.
func (r *Registry) For(ctx context.Context, userID uuid.UUID, accessToken string) (*Manager, error) {
	r.mu.RLock()
	mgr, ok := r.managers[userID]
	r.mu.RUnlock()
	if ok {
		return mgr, nil
	}

	mgr = NewManager(r.provider, r.profiles, r.cache, r.logger)
	if err := mgr.Initialize(ctx, accessToken); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.managers[userID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.managers[userID] = mgr
	r.mu.Unlock()
	return mgr, nil
}

// NewSession builds an unbound manager for sign-in and sign-up flows
func (r *Registry) NewSession() *Manager {
	return NewManager(r.provider, r.profiles, r.cache, r.logger)
}

// Bind registers a manager under its authenticated user id
func (r *Registry) Bind(userID uuid.UUID, mgr *Manager) {
	r.mu.Lock()
	r.managers[userID] = mgr
	r.mu.Unlock()
}

// Drop forgets the user's manager, typically on sign-out
func (r *Registry) Drop(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.managers, userID)
	r.mu.Unlock()
}

// applyProfileChange drops the cached identity for the user and refreshes
// any live manager, so a role change made elsewhere takes effect without a
// re-login. RefreshProfile rewrites the cache entry on success.
func (r *Registry) applyProfileChange(ctx context.Context, userID uuid.UUID) {
	if err := r.cache.Clear(ctx, userID); err != nil {
		r.logger.Warn().Err(err).Stringer("user_id", userID).
			Msg("failed to invalidate cached identity")
	}

	r.mu.RLock()
	mgr, ok := r.managers[userID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if _, err := mgr.RefreshProfile(ctx); err != nil {
		r.logger.Warn().Err(err).Stringer("user_id", userID).
			Msg("profile change refresh failed")
		return
	}
	r.logger.Debug().Stringer("user_id", userID).Msg("profile change applied")
}

func (r *Registry) dispatch(ctx context.Context, ev Event) {
	r.mu.RLock()
	mgr, ok := r.managers[ev.Session.UserID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	mgr.HandleEvent(ctx, ev)
	if ev.Type == EventSignedOut {
		r.Drop(ev.Session.UserID)
	}
	r.logger.Debug().
		Str("event", string(ev.Type)).
		Stringer("user_id", ev.Session.UserID).
		Msg("auth event applied")
}
