package progress

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/study-tracker/internal/domain/shared"
)

var progressNow = time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

func newTestProgress(t *testing.T) *UserProgress {
	t.Helper()
	p, err := NewUserProgress("p-1", "u-1", "t-1", progressNow)
	require.NoError(t, err)
	return p
}

func TestRecordStudyTime(t *testing.T) {
	t.Run("first study starts the topic", func(t *testing.T) {
		p := newTestProgress(t)
		p.RecordStudyTime(25, progressNow)

		assert.Equal(t, StatusInProgress, p.Status)
		assert.Equal(t, 25, p.TimeSpentMinutes)
		require.NotNil(t, p.StartedAt)
		require.NotNil(t, p.LastStudiedAt)
	})

	t.Run("accumulates and keeps started at", func(t *testing.T) {
		p := newTestProgress(t)
		p.RecordStudyTime(25, progressNow)
		first := *p.StartedAt

		p.RecordStudyTime(30, progressNow.Add(time.Hour))
		assert.Equal(t, 55, p.TimeSpentMinutes)
		assert.Equal(t, first, *p.StartedAt)
	})

	t.Run("study resumes a topic on hold", func(t *testing.T) {
		p := newTestProgress(t)
		p.RecordStudyTime(25, progressNow)
		require.NoError(t, p.Hold(progressNow))

		p.RecordStudyTime(10, progressNow.Add(time.Hour))
		assert.Equal(t, StatusInProgress, p.Status)
	})
}

func TestSetProgress(t *testing.T) {
	t.Run("clamps out-of-range values", func(t *testing.T) {
		p := newTestProgress(t)
		p.SetProgress(150, progressNow)
		assert.Equal(t, shared.Percent(100), p.Progress)

		p2 := newTestProgress(t)
		p2.SetProgress(-10, progressNow)
		assert.Equal(t, shared.Percent(0), p2.Progress)
	})

	t.Run("reaching 100 completes the topic once", func(t *testing.T) {
		p := newTestProgress(t)
		completed := p.SetProgress(100, progressNow)
		assert.True(t, completed)
		assert.Equal(t, StatusCompleted, p.Status)
		require.NotNil(t, p.CompletedAt)

		completed = p.SetProgress(100, progressNow.Add(time.Hour))
		assert.False(t, completed)
	})

	t.Run("partial progress moves to in_progress", func(t *testing.T) {
		p := newTestProgress(t)
		p.SetProgress(40, progressNow)
		assert.Equal(t, StatusInProgress, p.Status)
	})
}

func TestComplete(t *testing.T) {
	t.Run("with rating", func(t *testing.T) {
		p := newTestProgress(t)
		require.NoError(t, p.Complete(4, progressNow))

		assert.Equal(t, StatusCompleted, p.Status)
		assert.Equal(t, shared.Percent(100), p.Progress)
		assert.Equal(t, 4, p.Rating)
	})

	t.Run("zero rating means unrated", func(t *testing.T) {
		p := newTestProgress(t)
		require.NoError(t, p.Complete(0, progressNow))
		assert.Equal(t, 0, p.Rating)
	})

	t.Run("rejects out-of-range rating", func(t *testing.T) {
		p := newTestProgress(t)
		err := p.Complete(9, progressNow)
		assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
		assert.NotEqual(t, StatusCompleted, p.Status)
	})

	t.Run("idempotent completion keeps first timestamp", func(t *testing.T) {
		p := newTestProgress(t)
		require.NoError(t, p.Complete(3, progressNow))
		first := *p.CompletedAt

		require.NoError(t, p.Complete(5, progressNow.Add(time.Hour)))
		assert.Equal(t, first, *p.CompletedAt)
		assert.Equal(t, 5, p.Rating)
	})
}

func TestMilestonesAndResources(t *testing.T) {
	p := newTestProgress(t)

	p.CompleteMilestone("m1", progressNow)
	p.CompleteMilestone("m1", progressNow.Add(time.Hour))
	p.CompleteResource("r1", progressNow)

	assert.Len(t, p.CompletedMilestones, 1)
	assert.Equal(t, progressNow, p.CompletedMilestones["m1"])
	assert.Len(t, p.CompletedResources, 1)

	done, total := p.MilestoneCompletion(4)
	assert.Equal(t, 1, done)
	assert.Equal(t, 4, total)
}

func TestToggleBookmark(t *testing.T) {
	p := newTestProgress(t)
	assert.True(t, p.ToggleBookmark(progressNow))
	assert.False(t, p.ToggleBookmark(progressNow))
}

func TestSetNotes(t *testing.T) {
	p := newTestProgress(t)
	require.NoError(t, p.SetNotes("  focus on chapter 4  ", progressNow))
	assert.Equal(t, "focus on chapter 4", p.Notes)

	err := p.SetNotes(strings.Repeat("x", MaxNotesLength+1), progressNow)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestHold(t *testing.T) {
	p := newTestProgress(t)
	require.NoError(t, p.Hold(progressNow))
	assert.Equal(t, StatusOnHold, p.Status)

	require.NoError(t, p.Complete(0, progressNow))
	assert.ErrorIs(t, p.Hold(progressNow), shared.ErrInvalidState)
}
