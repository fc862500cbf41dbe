// Package redis guards payment of a transaction with a short-lived Redis
// lock so a double-submitted pay request is refused instead of queued.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultTTL = 30 * time.Second

type SettleLock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSettleLock(client *redis.Client, ttl time.Duration) *SettleLock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SettleLock{Client: client, TTL: ttl}
}

func lockKey(transactionID string) string {
	return "settle_lock:" + transactionID
}

// Acquire takes the lock for owner. It reports false when someone else
// holds it.
func (l *SettleLock) Acquire(ctx context.Context, transactionID, owner string) (bool, error) {
	return l.Client.SetNX(ctx, lockKey(transactionID), owner, l.TTL).Result()
}

// Release drops the lock only if owner still holds it.
func (l *SettleLock) Release(ctx context.Context, transactionID, owner string) error {
	key := lockKey(transactionID)
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // expired
	}
	if err != nil {
		return fmt.Errorf("read settle lock: %w", err)
	}
	if val != owner {
		return nil
	}
	return l.Client.Del(ctx, key).Err()
}

// Held reports whether any owner currently holds the lock.
func (l *SettleLock) Held(ctx context.Context, transactionID string) (bool, error) {
	n, err := l.Client.Exists(ctx, lockKey(transactionID)).Result()
	return n > 0, err
}
