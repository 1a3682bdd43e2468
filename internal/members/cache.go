package members

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache holds the per-company member list in Redis. Mutators invalidate it
// after every successful write; a stale read self-heals at the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache. A zero ttl defaults to five minutes.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(companyID uuid.UUID) string {
	return "members:company:" + companyID.String()
}

// Get returns the cached member list, if any.
func (c *Cache) Get(ctx context.Context, companyID uuid.UUID) ([]Member, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, c.key(companyID)).Bytes()
	if err != nil {
		return nil, false
	}
	var members []Member
	if err := json.Unmarshal(payload, &members); err != nil {
		return nil, false
	}
	return members, true
}

// Set stores the member list.
func (c *Cache) Set(ctx context.Context, companyID uuid.UUID, members []Member) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(members)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(companyID), payload, c.ttl).Err()
}

// Invalidate drops the cached list for a company.
func (c *Cache) Invalidate(ctx context.Context, companyID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.key(companyID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
