package redis

import (
	"context"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/user"
)

// StatsCache implements the user.Cache interface on top of the generic
// Redis Cache. It caches whole user aggregates (profile + materialized
// statistics), because the stats screen needs both anyway.
type StatsCache struct {
	cache *Cache
}

// NewStatsCache creates a new StatsCache.
func NewStatsCache(cache *Cache) *StatsCache {
	return &StatsCache{
		cache: cache,
	}
}

// Get gets a cached user. Returns ErrCacheMiss when the key is absent;
// callers treat any error as a miss and fall through to the repository.
func (s *StatsCache) Get(ctx context.Context, userID string) (*user.User, error) {
	var u user.User
	if err := s.cache.Get(ctx, UserKey(userID), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Set caches a user with the given TTL.
func (s *StatsCache) Set(ctx context.Context, u *user.User, ttl time.Duration) error {
	if u == nil {
		return nil
	}
	return s.cache.Set(ctx, UserKey(u.ID), u, ttl)
}

// Invalidate drops the cached entry for a user. Called after every
// session completion and reconciliation so stale counters don't survive
// longer than one read.
func (s *StatsCache) Invalidate(ctx context.Context, userID string) error {
	return s.cache.Delete(ctx, UserKey(userID))
}

// InvalidateAll clears the whole user cache. Used after bulk
// reconciliation runs.
func (s *StatsCache) InvalidateAll(ctx context.Context) error {
	return s.cache.DeleteByPattern(ctx, PrefixUser+"*")
}
