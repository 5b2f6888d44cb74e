// Package progress contains the per-user-per-topic progress model: how far
// a user has advanced through a topic, which milestones and resources they
// have covered, and their bookmark and rating state. Pure domain layer.
package progress

import (
	"strings"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/shared"
)

// Status is the lifecycle of a user's engagement with one topic.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
)

// IsValid checks if the status is one of the allowed values.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusOnHold:
		return true
	default:
		return false
	}
}

// MaxNotesLength limits free-form progress notes.
const MaxNotesLength = 2000

// UserProgress tracks one user's advancement through one topic.
// Created lazily: the record appears the first time the user interacts
// with the topic (completes a session, bookmarks it, updates progress).
type UserProgress struct {
	ID      string
	UserID  string
	TopicID string

	Status           Status
	Progress         shared.Percent // 0-100
	TimeSpentMinutes int            // summed actual duration of completed sessions

	// CompletedMilestones maps milestone ID to completion time.
	CompletedMilestones map[string]time.Time

	// CompletedResources maps resource ID to completion time.
	CompletedResources map[string]time.Time

	IsBookmarked bool
	Notes        string
	Rating       int // 1-5 set at completion, 0 when unrated

	StartedAt     *time.Time
	CompletedAt   *time.Time
	LastStudiedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserProgress creates a fresh not-started record.
func NewUserProgress(id, userID, topicID string, now time.Time) (*UserProgress, error) {
	if id == "" || userID == "" || topicID == "" {
		return nil, shared.NewDomainError("progress", "New", shared.ErrEmptyValue, "id, user id and topic id are required")
	}
	return &UserProgress{
		ID:                  id,
		UserID:              userID,
		TopicID:             topicID,
		Status:              StatusNotStarted,
		Progress:            0,
		CompletedMilestones: make(map[string]time.Time),
		CompletedResources:  make(map[string]time.Time),
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// RecordStudyTime accounts a completed session against this topic.
// First study moves the record to in_progress and stamps StartedAt.
func (p *UserProgress) RecordStudyTime(minutes int, at time.Time) {
	if minutes < 0 {
		minutes = 0
	}
	p.TimeSpentMinutes += minutes
	studied := at
	p.LastStudiedAt = &studied

	if p.Status == StatusNotStarted || p.Status == StatusOnHold {
		p.Status = StatusInProgress
	}
	if p.StartedAt == nil {
		started := at
		p.StartedAt = &started
	}
	p.UpdatedAt = at
}

// SetProgress updates the completion percentage. Values are clamped to
// 0-100; reaching 100 completes the topic. Returns true when this call
// transitioned the record to completed.
func (p *UserProgress) SetProgress(percent shared.Percent, at time.Time) bool {
	p.Progress = percent.Clamp()
	p.UpdatedAt = at

	if p.Progress.IsComplete() && p.Status != StatusCompleted {
		p.Status = StatusCompleted
		completed := at
		p.CompletedAt = &completed
		return true
	}
	if !p.Progress.IsComplete() && p.Status == StatusNotStarted && p.Progress > 0 {
		p.Status = StatusInProgress
		if p.StartedAt == nil {
			started := at
			p.StartedAt = &started
		}
	}
	return false
}

// Complete marks the topic finished with an optional rating (0 = skipped).
// Idempotent: completing an already completed record only updates the
// rating.
func (p *UserProgress) Complete(rating int, at time.Time) error {
	if rating != 0 {
		if _, err := shared.NewRating(rating); err != nil {
			return err
		}
	}

	alreadyCompleted := p.Status == StatusCompleted
	p.Progress = 100
	p.Status = StatusCompleted
	p.Rating = rating
	p.UpdatedAt = at
	if !alreadyCompleted {
		completed := at
		p.CompletedAt = &completed
	}
	return nil
}

// CompleteMilestone records a milestone as done. Repeat completions keep
// the original timestamp.
func (p *UserProgress) CompleteMilestone(milestoneID string, at time.Time) {
	if p.CompletedMilestones == nil {
		p.CompletedMilestones = make(map[string]time.Time)
	}
	if _, done := p.CompletedMilestones[milestoneID]; done {
		return
	}
	p.CompletedMilestones[milestoneID] = at
	p.UpdatedAt = at
}

// CompleteResource records a resource as covered.
func (p *UserProgress) CompleteResource(resourceID string, at time.Time) {
	if p.CompletedResources == nil {
		p.CompletedResources = make(map[string]time.Time)
	}
	if _, done := p.CompletedResources[resourceID]; done {
		return
	}
	p.CompletedResources[resourceID] = at
	p.UpdatedAt = at
}

// ToggleBookmark flips the bookmark flag and returns the new state.
func (p *UserProgress) ToggleBookmark(at time.Time) bool {
	p.IsBookmarked = !p.IsBookmarked
	p.UpdatedAt = at
	return p.IsBookmarked
}

// SetNotes replaces the free-form notes.
func (p *UserProgress) SetNotes(notes string, at time.Time) error {
	notes = strings.TrimSpace(notes)
	if len(notes) > MaxNotesLength {
		return shared.ErrProgressNotesLimit
	}
	p.Notes = notes
	p.UpdatedAt = at
	return nil
}

// Hold pauses work on the topic without losing progress.
func (p *UserProgress) Hold(at time.Time) error {
	if p.Status == StatusCompleted {
		return shared.NewDomainError("progress", "Hold", shared.ErrInvalidState, "completed topics cannot be put on hold")
	}
	p.Status = StatusOnHold
	p.UpdatedAt = at
	return nil
}

// MilestoneCompletion returns done/total milestone counts against a total.
func (p *UserProgress) MilestoneCompletion(totalMilestones int) (done, total int) {
	return len(p.CompletedMilestones), totalMilestones
}
