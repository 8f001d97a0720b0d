// internal/events/dedupe.go
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator filters redelivered events. FirstDelivery returns true only
// the first time a dedupe key is seen within the retention window. Release
// backs out a claim when processing fails, so the redelivery is not dropped.
type Deduplicator interface {
	FirstDelivery(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

const dedupeTTL = 24 * time.Hour

// RedisDeduplicator marks seen events with SETNX so every dispatcher
// replica shares one view of what has already been processed.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduplicator creates a RedisDeduplicator with the default
// retention window.
func NewRedisDeduplicator(client *redis.Client) *RedisDeduplicator {
	return &RedisDeduplicator{client: client, ttl: dedupeTTL}
}

// FirstDelivery atomically claims the key. A redelivered event finds the
// key already set and is skipped.
func (d *RedisDeduplicator) FirstDelivery(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event dedupe key: %w", err)
	}
	return ok, nil
}

// Release removes the claim so a failed event can be reprocessed.
func (d *RedisDeduplicator) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release event dedupe key: %w", err)
	}
	return nil
}
