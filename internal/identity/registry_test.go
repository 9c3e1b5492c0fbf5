package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prosomo/agenthub/internal/domain"
)

// stubFeed forwards ids pushed on ch and records the subscription context
// so teardown is observable from the test.
type stubFeed struct {
	ch  chan uuid.UUID
	ctx context.Context
}

func (f *stubFeed) ProfileChanges(ctx context.Context) <-chan uuid.UUID {
	f.ctx = ctx
	out := make(chan uuid.UUID)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case id, ok := <-f.ch:
				if !ok {
					return
				}
				select {
				case out <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func TestRegistry_ProfileChangeRefreshesManagerAndCache(t *testing.T) {
	provider := new(MockProvider)
	profiles := new(MockProfileRepository)
	cache := new(MockCache)
	feed := &stubFeed{ch: make(chan uuid.UUID)}
	registry := NewRegistry(provider, profiles, cache, feed, zerolog.Nop())

	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID, Email: "u@example.com"}, nil)
	profiles.On("GetByID", mock.Anything, userID).
		Return(&domain.Profile{ID: userID, Role: domain.RoleTeamMember}, nil).Once()
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)

	mgr, err := registry.For(context.Background(), userID, "token")
	require.NoError(t, err)

	profiles.On("GetByID", mock.Anything, userID).
		Return(&domain.Profile{ID: userID, Role: domain.RoleAdministrator}, nil)
	cache.On("Clear", mock.Anything, userID).Return(nil)

	registry.Start(context.Background())
	defer registry.Stop()

	feed.ch <- userID

	require.Eventually(t, func() bool {
		ident, _ := mgr.Current()
		return ident != nil && ident.Role == domain.RoleAdministrator
	}, time.Second, 10*time.Millisecond)
	cache.AssertCalled(t, "Clear", mock.Anything, userID)
}

func TestRegistry_ProfileChangeWithoutManagerOnlyInvalidatesCache(t *testing.T) {
	provider := new(MockProvider)
	profiles := new(MockProfileRepository)
	cache := new(MockCache)
	feed := &stubFeed{ch: make(chan uuid.UUID)}
	registry := NewRegistry(provider, profiles, cache, feed, zerolog.Nop())

	userID := uuid.New()
	cleared := make(chan struct{})
	cache.On("Clear", mock.Anything, userID).Return(nil).
		Run(func(mock.Arguments) { close(cleared) })

	registry.Start(context.Background())
	defer registry.Stop()

	feed.ch <- userID

	select {
	case <-cleared:
	case <-time.After(time.Second):
		t.Fatal("cache was not invalidated")
	}
	profiles.AssertNotCalled(t, "GetByID", mock.Anything, userID)
}

func TestRegistry_StopTearsDownChangeFeed(t *testing.T) {
	feed := &stubFeed{ch: make(chan uuid.UUID)}
	registry := NewRegistry(new(MockProvider), new(MockProfileRepository), new(MockCache), feed, zerolog.Nop())

	registry.Start(context.Background())
	require.NotNil(t, feed.ctx)

	registry.Stop()

	assert.ErrorIs(t, feed.ctx.Err(), context.Canceled)
}
