// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// User events
	EventUserRegistered EventType = "user.registered"

	// Session lifecycle events
	EventSessionPlanned   EventType = "session.planned"
	EventSessionStarted   EventType = "session.started"
	EventSessionPaused    EventType = "session.paused"
	EventSessionResumed   EventType = "session.resumed"
	EventSessionCompleted EventType = "session.completed"
	EventSessionCancelled EventType = "session.cancelled"

	// Progress events
	EventStreakUpdated       EventType = "progress.streak_updated"
	EventStreakBroken        EventType = "progress.streak_broken"
	EventTopicCompleted      EventType = "progress.topic_completed"
	EventAchievementUnlocked EventType = "progress.achievement_unlocked"

	// System events
	EventStatisticsReconciled EventType = "system.statistics_reconciled"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a single event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	Publish(event Event) error
}

// EventBus is a publisher that also supports subscriptions.
type EventBus interface {
	EventPublisher
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
	Close() error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// User Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted when a new user registers.
type UserRegisteredEvent struct {
	BaseEvent
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":        e.Email,
		"display_name": e.DisplayName,
		"timezone":     e.Timezone,
	}
}

// NewUserRegisteredEvent creates a new UserRegisteredEvent.
func NewUserRegisteredEvent(userID, email, displayName, timezone string) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventUserRegistered, userID),
		Email:       email,
		DisplayName: displayName,
		Timezone:    timezone,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Lifecycle Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionStartedEvent is emitted when a planned session goes active.
type SessionStartedEvent struct {
	BaseEvent
	UserID      string    `json:"user_id"`
	TopicID     string    `json:"topic_id"`
	SessionType string    `json:"session_type"`
	StartTime   time.Time `json:"start_time"`
}

// Payload implements Event interface.
func (e SessionStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"topic_id":     e.TopicID,
		"session_type": e.SessionType,
		"start_time":   e.StartTime,
	}
}

// NewSessionStartedEvent creates a new SessionStartedEvent.
func NewSessionStartedEvent(sessionID, userID, topicID, sessionType string, startTime time.Time) SessionStartedEvent {
	return SessionStartedEvent{
		BaseEvent:   NewBaseEvent(EventSessionStarted, sessionID),
		UserID:      userID,
		TopicID:     topicID,
		SessionType: sessionType,
		StartTime:   startTime,
	}
}

// SessionLifecycleEvent covers the minor lifecycle transitions (planned,
// paused, resumed) that carry no payload beyond the user.
type SessionLifecycleEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

// Payload implements Event interface.
func (e SessionLifecycleEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
	}
}

// NewSessionLifecycleEvent creates a lifecycle event of the given type.
func NewSessionLifecycleEvent(eventType EventType, sessionID, userID string) SessionLifecycleEvent {
	return SessionLifecycleEvent{
		BaseEvent: NewBaseEvent(eventType, sessionID),
		UserID:    userID,
	}
}

// SessionCompletedEvent is emitted exactly once when a session completes.
// The Progress Synchronizer and achievement checks hang off this event.
type SessionCompletedEvent struct {
	BaseEvent
	UserID         string    `json:"user_id"`
	TopicID        string    `json:"topic_id"`
	SessionType    string    `json:"session_type"`
	ActualDuration int       `json:"actual_duration"` // minutes
	PausedTime     int       `json:"paused_time"`     // minutes
	EndTime        time.Time `json:"end_time"`
}

// Payload implements Event interface.
func (e SessionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"topic_id":        e.TopicID,
		"session_type":    e.SessionType,
		"actual_duration": e.ActualDuration,
		"paused_time":     e.PausedTime,
		"end_time":        e.EndTime,
	}
}

// NewSessionCompletedEvent creates a new SessionCompletedEvent.
func NewSessionCompletedEvent(sessionID, userID, topicID, sessionType string, actualDuration, pausedTime int, endTime time.Time) SessionCompletedEvent {
	return SessionCompletedEvent{
		BaseEvent:      NewBaseEvent(EventSessionCompleted, sessionID),
		UserID:         userID,
		TopicID:        topicID,
		SessionType:    sessionType,
		ActualDuration: actualDuration,
		PausedTime:     pausedTime,
		EndTime:        endTime,
	}
}

// SessionCancelledEvent is emitted when a session is cancelled.
type SessionCancelledEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Reason string `json:"reason,omitempty"`
}

// Payload implements Event interface.
func (e SessionCancelledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"reason":  e.Reason,
	}
}

// NewSessionCancelledEvent creates a new SessionCancelledEvent.
func NewSessionCancelledEvent(sessionID, userID, reason string) SessionCancelledEvent {
	return SessionCancelledEvent{
		BaseEvent: NewBaseEvent(EventSessionCancelled, sessionID),
		UserID:    userID,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakUpdatedEvent is emitted when a user's streak counters change.
type StreakUpdatedEvent struct {
	BaseEvent
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, currentStreak, longestStreak int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, userID),
		CurrentStreak: currentStreak,
		LongestStreak: longestStreak,
	}
}

// TopicCompletedEvent is emitted when a user's progress on a topic reaches
// completion.
type TopicCompletedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Rating int    `json:"rating,omitempty"` // 0 if no rating was supplied
}

// Payload implements Event interface.
func (e TopicCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"rating":  e.Rating,
	}
}

// NewTopicCompletedEvent creates a new TopicCompletedEvent.
func NewTopicCompletedEvent(topicID, userID string, rating int) TopicCompletedEvent {
	return TopicCompletedEvent{
		BaseEvent: NewBaseEvent(EventTopicCompleted, topicID),
		UserID:    userID,
		Rating:    rating,
	}
}

// AchievementUnlockedEvent is emitted when a user earns an achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	Achievement string `json:"achievement"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement": e.Achievement,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievement string) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:   NewBaseEvent(EventAchievementUnlocked, userID),
		Achievement: achievement,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// StatisticsReconciledEvent is emitted after a reconciliation pass brings
// the incrementally maintained user statistics back in line with the
// aggregator-derived values.
type StatisticsReconciledEvent struct {
	BaseEvent
	DriftHours    float64 `json:"drift_hours"`
	DriftSessions int     `json:"drift_sessions"`
}

// Payload implements Event interface.
func (e StatisticsReconciledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"drift_hours":    e.DriftHours,
		"drift_sessions": e.DriftSessions,
	}
}

// NewStatisticsReconciledEvent creates a new StatisticsReconciledEvent.
func NewStatisticsReconciledEvent(userID string, driftHours float64, driftSessions int) StatisticsReconciledEvent {
	return StatisticsReconciledEvent{
		BaseEvent:     NewBaseEvent(EventStatisticsReconciled, userID),
		DriftHours:    driftHours,
		DriftSessions: driftSessions,
	}
}
