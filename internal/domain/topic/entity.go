// Package topic contains the domain model for study topics: the catalog
// entries users study against, with milestones, resources and aggregate
// usage statistics. Pure domain layer, no external dependencies.
package topic

import (
	"strings"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/shared"
)

// Category classifies a topic.
type Category string

const (
	CategoryProgramming Category = "programming"
	CategoryMathematics Category = "mathematics"
	CategoryLanguages   Category = "languages"
	CategoryScience     Category = "science"
	CategoryOther       Category = "other"
)

// IsValid checks if the category is one of the allowed values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryProgramming, CategoryMathematics, CategoryLanguages, CategoryScience, CategoryOther:
		return true
	default:
		return false
	}
}

// Difficulty is a coarse topic difficulty level.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// IsValid checks if the difficulty is one of the allowed values.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	default:
		return false
	}
}

// Milestone is a named checkpoint within a topic.
type Milestone struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
}

// Resource is a learning material attached to a topic.
type Resource struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Kind  string `json:"kind,omitempty"` // book, video, article, course
}

// Stats holds aggregate usage statistics for a topic across all users.
// Maintained incrementally by the progress synchronizer and rebuilt by
// the reconciliation job.
type Stats struct {
	TotalStudyMinutes int     // summed actual duration of completed sessions
	SessionCount      int     // completed sessions against this topic
	CompletionCount   int     // users who reached 100%
	AverageRating     float64 // running average of completion ratings, 0 when unrated
	RatingCount       int     // number of ratings behind the average
}

// ApplyStudyTime accounts one completed session.
func (s *Stats) ApplyStudyTime(minutes int) {
	if minutes < 0 {
		minutes = 0
	}
	s.TotalStudyMinutes += minutes
	s.SessionCount++
}

// ApplyCompletion accounts one user finishing the topic. A zero rating
// means the user skipped rating; the average only moves for real ratings.
func (s *Stats) ApplyCompletion(rating int) error {
	if rating != 0 {
		if _, err := shared.NewRating(rating); err != nil {
			return err
		}
	}
	s.CompletionCount++
	if rating != 0 {
		total := s.AverageRating*float64(s.RatingCount) + float64(rating)
		s.RatingCount++
		s.AverageRating = total / float64(s.RatingCount)
	}
	return nil
}

// Topic is a catalog entry users study against.
type Topic struct {
	ID             string
	Title          string
	Description    string
	Category       Category
	Difficulty     Difficulty
	EstimatedHours int
	Milestones     []Milestone
	Resources      []Resource
	Stats          Stats
	CreatedBy      string // user ID of the author, empty for system topics
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTopicParams contains parameters for creating a topic.
type NewTopicParams struct {
	ID             string
	Title          string
	Description    string
	Category       Category
	Difficulty     Difficulty
	EstimatedHours int
	Milestones     []Milestone
	Resources      []Resource
	CreatedBy      string
}

// NewTopic creates a topic with validation.
func NewTopic(params NewTopicParams, now time.Time) (*Topic, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("topic", "New", shared.ErrEmptyValue, "topic id is required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, shared.NewDomainError("topic", "New", shared.ErrEmptyValue, "title is required")
	}
	if !params.Category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}
	if params.Difficulty == "" {
		params.Difficulty = DifficultyBeginner
	}
	if !params.Difficulty.IsValid() {
		return nil, shared.NewDomainError("topic", "New", shared.ErrInvalidInput, "invalid difficulty")
	}
	if params.EstimatedHours < 0 {
		return nil, shared.NewDomainError("topic", "New", shared.ErrNegativeValue, "estimated hours cannot be negative")
	}

	return &Topic{
		ID:             params.ID,
		Title:          title,
		Description:    strings.TrimSpace(params.Description),
		Category:       params.Category,
		Difficulty:     params.Difficulty,
		EstimatedHours: params.EstimatedHours,
		Milestones:     params.Milestones,
		Resources:      params.Resources,
		CreatedBy:      params.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// MilestoneByID looks up a milestone.
func (t *Topic) MilestoneByID(id string) (Milestone, bool) {
	for _, m := range t.Milestones {
		if m.ID == id {
			return m, true
		}
	}
	return Milestone{}, false
}
