// internal/engine/latch.go
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AckLatch decides which acknowledgment is the first for an emergency.
// First-ack detection must hold across engine replicas, so the production
// implementation lives in Redis.
type AckLatch interface {
	FirstAck(ctx context.Context, emergencyID uuid.UUID) (bool, error)
	Clear(ctx context.Context, emergencyID uuid.UUID) error
}

const latchTTL = 72 * time.Hour

// RedisAckLatch claims first-ack with SETNX, shared across replicas.
type RedisAckLatch struct {
	client *redis.Client
}

// NewRedisAckLatch creates a RedisAckLatch.
func NewRedisAckLatch(client *redis.Client) *RedisAckLatch {
	return &RedisAckLatch{client: client}
}

func latchKey(emergencyID uuid.UUID) string {
	return "emergency:first_ack:" + emergencyID.String()
}

// FirstAck returns true for exactly one caller per emergency.
func (l *RedisAckLatch) FirstAck(ctx context.Context, emergencyID uuid.UUID) (bool, error) {
	ok, err := l.client.SetNX(ctx, latchKey(emergencyID), "1", latchTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim first-ack latch: %w", err)
	}
	return ok, nil
}

// Clear drops the latch once the emergency reaches a terminal status.
func (l *RedisAckLatch) Clear(ctx context.Context, emergencyID uuid.UUID) error {
	if err := l.client.Del(ctx, latchKey(emergencyID)).Err(); err != nil {
		return fmt.Errorf("failed to clear first-ack latch: %w", err)
	}
	return nil
}

// MemoryAckLatch is a process-local latch for single-node deployments and
// tests.
type MemoryAckLatch struct {
	mu      sync.Mutex
	claimed map[uuid.UUID]bool
}

// NewMemoryAckLatch creates a MemoryAckLatch.
func NewMemoryAckLatch() *MemoryAckLatch {
	return &MemoryAckLatch{claimed: make(map[uuid.UUID]bool)}
}

func (l *MemoryAckLatch) FirstAck(_ context.Context, emergencyID uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.claimed[emergencyID] {
		return false, nil
	}
	l.claimed[emergencyID] = true
	return true, nil
}

func (l *MemoryAckLatch) Clear(_ context.Context, emergencyID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claimed, emergencyID)
	return nil
}
