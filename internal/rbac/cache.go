package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotKey = "rbac:rules:snapshot"

// SnapshotCache keeps a serialized copy of the rule table in Redis so that
// replicas can rebuild the policy without querying Postgres.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache instantiates the cache helper. A nil client disables caching.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// Get returns the cached rules. ok is false on a miss.
func (c *SnapshotCache) Get(ctx context.Context) ([]Rule, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rules []Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, false, err
	}
	return rules, true, nil
}

// Put stores rules for the configured TTL.
func (c *SnapshotCache) Put(ctx context.Context, rules []Rule) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey, raw, c.ttl).Err()
}

// Invalidate drops the snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, snapshotKey).Err()
}
