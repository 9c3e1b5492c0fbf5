package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	identityCachePrefix = "identity:"
	identityCacheTTL    = 24 * time.Hour
)

// IdentityCache holds merged identities in Redis so a restarted instance
// can recover them without re-querying the profile store.
type IdentityCache struct {
	client *Client
}

// NewIdentityCache creates a new identity cache
func NewIdentityCache(client *Client) *IdentityCache {
	return &IdentityCache{client: client}
}

// Put stores the merged identity under its user id
func (c *IdentityCache) Put(ctx context.Context, identity *domain.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	key := identityCachePrefix + identity.ID.String()
	return c.client.rdb.Set(ctx, key, data, identityCacheTTL).Err()
}

// Get retrieves a cached identity, domain.ErrNotFound on a miss
func (c *IdentityCache) Get(ctx context.Context, userID uuid.UUID) (*domain.Identity, error) {
	key := identityCachePrefix + userID.String()
	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read identity cache: %w", err)
	}

	var identity domain.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity: %w", err)
	}
	return &identity, nil
}

// Clear removes the cached identity deterministically on sign-out
func (c *IdentityCache) Clear(ctx context.Context, userID uuid.UUID) error {
	return c.client.rdb.Del(ctx, identityCachePrefix+userID.String()).Err()
}
