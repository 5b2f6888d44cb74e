package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/topic"
	"github.com/studyhub/study-tracker/pkg/clock"
)

func TestCreateTopicHandler(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC))

	t.Run("creates a topic and assigns milestone and resource ids", func(t *testing.T) {
		topicRepo := newFakeTopicRepo()
		handler := NewCreateTopicHandler(topicRepo, clk)

		result, err := handler.Handle(ctx, CreateTopicCommand{
			Title:          "Distributed Systems",
			Description:    "Consensus, replication, failure models",
			Category:       "programming",
			EstimatedHours: 40,
			Milestones: []topic.Milestone{
				{Title: "Read the Raft paper", Order: 1},
			},
			Resources: []topic.Resource{
				{Title: "Designing Data-Intensive Applications", Kind: "book"},
			},
			CreatedBy: testUserID,
		})
		require.NoError(t, err)

		tp := result.Topic
		assert.NotEmpty(t, tp.ID)
		assert.Equal(t, topic.CategoryProgramming, tp.Category)
		// Difficulty falls back to beginner when omitted.
		assert.Equal(t, topic.DifficultyBeginner, tp.Difficulty)
		require.Len(t, tp.Milestones, 1)
		assert.NotEmpty(t, tp.Milestones[0].ID)
		require.Len(t, tp.Resources, 1)
		assert.NotEmpty(t, tp.Resources[0].ID)

		stored, err := topicRepo.GetByID(ctx, tp.ID)
		require.NoError(t, err)
		assert.Equal(t, "Distributed Systems", stored.Title)
	})

	t.Run("title is required", func(t *testing.T) {
		handler := NewCreateTopicHandler(newFakeTopicRepo(), clk)

		_, err := handler.Handle(ctx, CreateTopicCommand{Category: "programming"})
		assert.ErrorContains(t, err, "title")
	})

	t.Run("rejects an unknown category", func(t *testing.T) {
		handler := NewCreateTopicHandler(newFakeTopicRepo(), clk)

		_, err := handler.Handle(ctx, CreateTopicCommand{
			Title:    "Cooking",
			Category: "culinary",
		})
		assert.ErrorIs(t, err, shared.ErrInvalidCategory)
	})
}
