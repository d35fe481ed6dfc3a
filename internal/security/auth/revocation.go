package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/aryan0dhankhar/smartcrm/pkg/cache"
)

const revokedKeyPrefix = "revoked:"

// RevocationList records token ids invalidated before their expiry (logout).
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// KeyValueStore is the subset of the Redis client used for revocations.
type KeyValueStore interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// RedisRevocationList keeps revoked ids in Redis until the token would have expired anyway.
type RedisRevocationList struct {
	kv KeyValueStore
}

func NewRedisRevocationList(kv KeyValueStore) *RedisRevocationList {
	return &RedisRevocationList{kv: kv}
}

func (l *RedisRevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := l.kv.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ok, err := l.kv.Exists(ctx, revokedKeyPrefix+tokenID)
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return ok, nil
}

// MemoryRevocationList is the single-process fallback used when Redis is not configured.
type MemoryRevocationList struct {
	c *cache.Cache[bool]
}

func NewMemoryRevocationList(c *cache.Cache[bool]) *MemoryRevocationList {
	return &MemoryRevocationList{c: c}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if ttl := time.Until(until); ttl > 0 {
		l.c.Set(revokedKeyPrefix+tokenID, true, ttl)
	}
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := l.c.Get(revokedKeyPrefix + tokenID)
	return ok, nil
}
