package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/study-tracker/internal/domain/progress"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/topic"
)

func seedTopic(t *testing.T, repo *fakeTopicRepo) *topic.Topic {
	t.Helper()
	tp, err := topic.NewTopic(topic.NewTopicParams{
		ID:       testTopicID,
		Title:    "Go Concurrency",
		Category: topic.CategoryProgramming,
		Milestones: []topic.Milestone{
			{ID: "m-1", Title: "Goroutines", Order: 1},
			{ID: "m-2", Title: "Channels", Order: 2},
		},
	}, testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), tp))
	return tp
}

func TestGetTopicProgressHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("unstarted topic reports zero progress", func(t *testing.T) {
		topicRepo := newFakeTopicRepo()
		seedTopic(t, topicRepo)

		h := NewGetTopicProgressHandler(topicRepo, newFakeProgressRepo())
		dto, err := h.Handle(ctx, GetTopicProgressQuery{UserID: testUserID, TopicID: testTopicID})
		require.NoError(t, err)

		assert.Equal(t, string(progress.StatusNotStarted), dto.Status)
		assert.Zero(t, dto.Progress)
		require.Len(t, dto.Milestones, 2)
		assert.False(t, dto.Milestones[0].Completed)
	})

	t.Run("merges progress with the milestone catalog", func(t *testing.T) {
		topicRepo := newFakeTopicRepo()
		progressRepo := newFakeProgressRepo()
		seedTopic(t, topicRepo)

		p, err := progress.NewUserProgress("p-1", testUserID, testTopicID, testNow.Add(-24*time.Hour))
		require.NoError(t, err)
		p.RecordStudyTime(45, testNow.Add(-time.Hour))
		p.CompleteMilestone("m-1", testNow.Add(-time.Hour))
		require.NoError(t, progressRepo.Upsert(ctx, p))

		h := NewGetTopicProgressHandler(topicRepo, progressRepo)
		dto, err := h.Handle(ctx, GetTopicProgressQuery{UserID: testUserID, TopicID: testTopicID})
		require.NoError(t, err)

		assert.Equal(t, string(progress.StatusInProgress), dto.Status)
		assert.Equal(t, 45, dto.TimeSpentMinutes)

		require.Len(t, dto.Milestones, 2)
		assert.True(t, dto.Milestones[0].Completed)
		require.NotNil(t, dto.Milestones[0].CompletedAt)
		assert.False(t, dto.Milestones[1].Completed)
	})

	t.Run("unknown topic", func(t *testing.T) {
		h := NewGetTopicProgressHandler(newFakeTopicRepo(), newFakeProgressRepo())
		_, err := h.Handle(ctx, GetTopicProgressQuery{UserID: testUserID, TopicID: "missing"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
