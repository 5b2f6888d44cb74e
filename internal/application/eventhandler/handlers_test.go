package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/user"
)

type fakeCache struct {
	invalidated []string
	err         error
}

func (c *fakeCache) Get(context.Context, string) (*user.User, error) {
	return nil, shared.ErrNotFound
}

func (c *fakeCache) Set(context.Context, *user.User, time.Duration) error {
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, userID string) error {
	if c.err != nil {
		return c.err
	}
	c.invalidated = append(c.invalidated, userID)
	return nil
}

func TestOnSessionCompletedHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates the user's cache entry", func(t *testing.T) {
		cache := &fakeCache{}
		h := NewOnSessionCompletedHandler(cache, nil)

		event := shared.NewSessionCompletedEvent("s-1", "u-1", "t-1", "focused", 50, 5, time.Now())
		require.NoError(t, h.Handle(ctx, event))

		assert.Equal(t, []string{"u-1"}, cache.invalidated)
	})

	t.Run("cache failure is swallowed", func(t *testing.T) {
		cache := &fakeCache{err: errors.New("redis down")}
		h := NewOnSessionCompletedHandler(cache, nil)

		event := shared.NewSessionCompletedEvent("s-1", "u-1", "t-1", "focused", 50, 5, time.Now())
		assert.NoError(t, h.Handle(ctx, event))
	})

	t.Run("foreign event is ignored", func(t *testing.T) {
		cache := &fakeCache{}
		h := NewOnSessionCompletedHandler(cache, nil)

		event := shared.NewStreakUpdatedEvent("u-1", 3, 9)
		require.NoError(t, h.Handle(ctx, event))
		assert.Empty(t, cache.invalidated)
	})
}

func TestOnStatisticsReconciledHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates cache after correction", func(t *testing.T) {
		cache := &fakeCache{}
		h := NewOnStatisticsReconciledHandler(cache, nil)

		event := shared.NewStatisticsReconciledEvent("u-1", 0.5, 1)
		require.NoError(t, h.Handle(ctx, event))

		assert.Equal(t, []string{"u-1"}, cache.invalidated)
	})

	t.Run("works without a cache", func(t *testing.T) {
		h := NewOnStatisticsReconciledHandler(nil, nil)
		event := shared.NewStatisticsReconciledEvent("u-1", 2.0, 3)
		assert.NoError(t, h.Handle(ctx, event))
	})
}
