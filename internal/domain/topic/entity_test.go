package topic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/study-tracker/internal/domain/shared"
)

var topicNow = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestNewTopic(t *testing.T) {
	t.Run("valid topic", func(t *testing.T) {
		topic, err := NewTopic(NewTopicParams{
			ID:             "55555555-5555-5555-5555-555555555555",
			Title:          "  Go Concurrency  ",
			Category:       CategoryProgramming,
			Difficulty:     DifficultyIntermediate,
			EstimatedHours: 20,
		}, topicNow)
		require.NoError(t, err)
		assert.Equal(t, "Go Concurrency", topic.Title)
		assert.Equal(t, 0, topic.Stats.SessionCount)
	})

	t.Run("rejects invalid category", func(t *testing.T) {
		_, err := NewTopic(NewTopicParams{
			ID:       "id",
			Title:    "X",
			Category: Category("astrology"),
		}, topicNow)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("difficulty defaults to beginner", func(t *testing.T) {
		topic, err := NewTopic(NewTopicParams{
			ID:       "id",
			Title:    "X",
			Category: CategoryOther,
		}, topicNow)
		require.NoError(t, err)
		assert.Equal(t, DifficultyBeginner, topic.Difficulty)
	})
}

func TestStatsApplyCompletion(t *testing.T) {
	t.Run("running average over ratings", func(t *testing.T) {
		var s Stats
		require.NoError(t, s.ApplyCompletion(5))
		require.NoError(t, s.ApplyCompletion(3))

		assert.Equal(t, 2, s.CompletionCount)
		assert.Equal(t, 2, s.RatingCount)
		assert.InDelta(t, 4.0, s.AverageRating, 1e-9)
	})

	t.Run("zero rating counts completion but not average", func(t *testing.T) {
		var s Stats
		require.NoError(t, s.ApplyCompletion(4))
		require.NoError(t, s.ApplyCompletion(0))

		assert.Equal(t, 2, s.CompletionCount)
		assert.Equal(t, 1, s.RatingCount)
		assert.InDelta(t, 4.0, s.AverageRating, 1e-9)
	})

	t.Run("rejects out-of-range rating", func(t *testing.T) {
		var s Stats
		err := s.ApplyCompletion(6)
		assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
		assert.Equal(t, 0, s.CompletionCount)
	})
}

func TestStatsApplyStudyTime(t *testing.T) {
	var s Stats
	s.ApplyStudyTime(25)
	s.ApplyStudyTime(50)
	s.ApplyStudyTime(-5)

	assert.Equal(t, 75, s.TotalStudyMinutes)
	assert.Equal(t, 3, s.SessionCount)
}

func TestMilestoneByID(t *testing.T) {
	topic := &Topic{Milestones: []Milestone{{ID: "m1", Title: "Basics"}}}

	m, ok := topic.MilestoneByID("m1")
	require.True(t, ok)
	assert.Equal(t, "Basics", m.Title)

	_, ok = topic.MilestoneByID("m2")
	assert.False(t, ok)
}
