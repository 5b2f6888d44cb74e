// Package session contains domain entities and business logic for the study
// session lifecycle: the state machine, the streak calculator, and the pure
// statistics aggregation functions.
// This is a pure domain layer with zero external dependencies.
//
// Transitions are expressed as pure functions over an immutable snapshot:
// they validate, return a new snapshot, and never touch persistence. The
// application layer persists the result with an optimistic status check, so
// a racing caller loses with a state transition error and no partial
// mutation is applied.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/shared"
)

// Type represents the kind of study session.
type Type string

const (
	TypePomodoro Type = "pomodoro"
	TypeFocused  Type = "focused"
	TypeBreak    Type = "break"
	TypeReview   Type = "review"
)

// IsValid checks if the session type is one of the allowed values.
func (t Type) IsValid() bool {
	switch t {
	case TypePomodoro, TypeFocused, TypeBreak, TypeReview:
		return true
	default:
		return false
	}
}

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// Status represents the lifecycle state of a session.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is one of the allowed values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanned, StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for completed and cancelled sessions.
// Terminal sessions are immutable historical records.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Planned duration boundaries in minutes.
const (
	MinPlannedDuration = 1
	MaxPlannedDuration = 480
)

// Field length limits.
const (
	MaxNotesLength = 1000
)

// Productivity is the user's self-assessment of a session.
type Productivity struct {
	Rating  int    `json:"rating"` // 1-5
	Comment string `json:"comment,omitempty"`
}

// Environment describes where and how the session took place.
type Environment struct {
	Location     string   `json:"location,omitempty"`
	Distractions []string `json:"distractions,omitempty"`
	Tools        []string `json:"tools,omitempty"`
}

// Break is one break interval taken during a session.
type Break struct {
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  int        `json:"duration"` // minutes, computed when both ends are known
	Type      string     `json:"type,omitempty"`
}

// FocusMetrics captures focus quality measurements for a session.
type FocusMetrics struct {
	InterruptionCount int `json:"interruption_count"`
	DeepFocusTime     int `json:"deep_focus_time"`      // minutes
	AverageFocusLevel int `json:"average_focus_level"`  // 1-10, 0 = not measured
}

// StudySession is one timed study interval tracked through the lifecycle
// state machine. After completion or cancellation it becomes an immutable
// historical record.
type StudySession struct {
	ID      string
	UserID  string
	TopicID string

	Type            Type
	PlannedDuration int // minutes, 1-480
	ActualDuration  int // minutes, >= 0, set exactly once at completion

	StartTime *time.Time // nil until started
	EndTime   *time.Time // nil until completed/cancelled

	Status      Status
	IsCompleted bool
	PausedTime  int // accumulated pause minutes

	Notes        string
	Productivity *Productivity
	Environment  Environment
	Breaks       []Break
	FocusMetrics FocusMetrics
	Tags         []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSessionParams contains parameters for planning a new session.
type NewSessionParams struct {
	ID              string
	UserID          string
	TopicID         string
	Type            Type
	PlannedDuration int
	Notes           string
	Environment     Environment
	Tags            []string
}

// NewStudySession creates a new session in the planned state with full
// validation. Nothing is persisted here.
func NewStudySession(params NewSessionParams, now time.Time) (StudySession, error) {
	if params.ID == "" {
		return StudySession{}, shared.NewDomainError("session", "New", shared.ErrEmptyValue, "session id is required")
	}
	if params.UserID == "" {
		return StudySession{}, shared.NewDomainError("session", "New", shared.ErrEmptyValue, "user id is required")
	}
	if params.TopicID == "" {
		return StudySession{}, shared.NewDomainError("session", "New", shared.ErrEmptyValue, "topic id is required")
	}
	if !params.Type.IsValid() {
		return StudySession{}, shared.ErrInvalidSessionType
	}
	if params.PlannedDuration < MinPlannedDuration || params.PlannedDuration > MaxPlannedDuration {
		return StudySession{}, shared.ErrInvalidDuration
	}
	if len(params.Notes) > MaxNotesLength {
		return StudySession{}, shared.ErrSessionNotesLimit
	}

	return StudySession{
		ID:              params.ID,
		UserID:          params.UserID,
		TopicID:         params.TopicID,
		Type:            params.Type,
		PlannedDuration: params.PlannedDuration,
		ActualDuration:  0,
		Status:          StatusPlanned,
		IsCompleted:     false,
		PausedTime:      0,
		Notes:           strings.TrimSpace(params.Notes),
		Environment:     params.Environment,
		Breaks:          nil,
		Tags:            copyStrings(params.Tags),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CompletionData carries the optional fields merged into a session at
// completion time.
type CompletionData struct {
	Notes        string
	Productivity *Productivity
	FocusMetrics *FocusMetrics
	Tags         []string
}

// Validate checks the optional completion fields before any mutation.
func (d CompletionData) Validate() error {
	if len(d.Notes) > MaxNotesLength {
		return shared.ErrSessionNotesLimit
	}
	if d.Productivity != nil {
		if d.Productivity.Rating < int(shared.MinRating) || d.Productivity.Rating > int(shared.MaxRating) {
			return shared.ErrInvalidProductivity
		}
	}
	if d.FocusMetrics != nil {
		if d.FocusMetrics.AverageFocusLevel != 0 &&
			(d.FocusMetrics.AverageFocusLevel < 1 || d.FocusMetrics.AverageFocusLevel > 10) {
			return shared.ErrInvalidFocusLevel
		}
		if d.FocusMetrics.InterruptionCount < 0 || d.FocusMetrics.DeepFocusTime < 0 {
			return shared.NewDomainError("session", "Complete", shared.ErrNegativeValue, "focus metrics cannot be negative")
		}
	}
	return nil
}

// Start transitions planned -> active and stamps the start time.
func Start(s StudySession, now time.Time) (StudySession, error) {
	if s.Status.IsTerminal() {
		return s, shared.ErrSessionTerminal
	}
	if s.Status != StatusPlanned {
		return s, shared.ErrSessionNotPlanned
	}

	next := s.clone()
	start := now
	next.StartTime = &start
	next.Status = StatusActive
	next.UpdatedAt = now
	return next, nil
}

// Pause transitions active -> paused.
func Pause(s StudySession, now time.Time) (StudySession, error) {
	if s.Status.IsTerminal() {
		return s, shared.ErrSessionTerminal
	}
	if s.Status != StatusActive {
		return s, shared.ErrSessionNotActive
	}

	next := s.clone()
	next.Status = StatusPaused
	next.UpdatedAt = now
	return next, nil
}

// Resume transitions paused -> active and accumulates the pause duration.
func Resume(s StudySession, pauseMinutes int, now time.Time) (StudySession, error) {
	if s.Status.IsTerminal() {
		return s, shared.ErrSessionTerminal
	}
	if s.Status != StatusPaused {
		return s, shared.ErrSessionNotPaused
	}
	if pauseMinutes < 0 {
		return s, shared.ErrInvalidPauseDuration
	}

	next := s.clone()
	next.Status = StatusActive
	next.PausedTime += pauseMinutes
	next.UpdatedAt = now
	return next, nil
}

// Complete transitions any non-terminal status to completed, stamps the end
// time and computes the actual duration exactly once:
//
//	actualDuration = round((endTime - startTime) / 1m) - pausedTime, clamped to >= 0
//
// A session completed straight from planned has no start time; its actual
// duration is zero. Completing an already-terminal session is rejected -
// terminal means terminal, idempotent retries are the caller's concern.
func Complete(s StudySession, data CompletionData, now time.Time) (StudySession, error) {
	if s.Status.IsTerminal() {
		return s, shared.ErrSessionTerminal
	}
	if err := data.Validate(); err != nil {
		return s, err
	}

	next := s.clone()
	end := now
	next.EndTime = &end
	next.Status = StatusCompleted
	next.IsCompleted = true
	next.ActualDuration = actualDuration(next.StartTime, end, next.PausedTime)
	next.UpdatedAt = now

	if data.Notes != "" {
		next.Notes = data.Notes
	}
	if data.Productivity != nil {
		p := *data.Productivity
		next.Productivity = &p
	}
	if data.FocusMetrics != nil {
		next.FocusMetrics = *data.FocusMetrics
	}
	if len(data.Tags) > 0 {
		next.Tags = copyStrings(data.Tags)
	}

	return next, nil
}

// Cancel transitions any non-terminal status to cancelled, stamps the end
// time and appends the reason to the notes. Like Complete, it rejects
// already-terminal sessions.
func Cancel(s StudySession, reason string, now time.Time) (StudySession, error) {
	if s.Status.IsTerminal() {
		return s, shared.ErrSessionTerminal
	}

	next := s.clone()
	end := now
	next.EndTime = &end
	next.Status = StatusCancelled
	next.IsCompleted = false
	next.UpdatedAt = now

	reason = strings.TrimSpace(reason)
	if reason != "" {
		note := "cancelled: " + reason
		if next.Notes != "" {
			next.Notes = next.Notes + "\n" + note
		} else {
			next.Notes = note
		}
		if len(next.Notes) > MaxNotesLength {
			next.Notes = next.Notes[:MaxNotesLength]
		}
	}

	return next, nil
}

// AddBreak appends a break record at any non-terminal status. The duration
// is computed when both ends of the interval are known.
func AddBreak(s StudySession, b Break, now time.Time) (StudySession, error) {
	if s.Status.IsTerminal() {
		return s, shared.ErrSessionTerminal
	}
	if b.StartTime.IsZero() {
		return s, shared.ErrBreakOutsideOfSession
	}
	if b.EndTime != nil {
		if b.EndTime.Before(b.StartTime) {
			return s, shared.ErrBreakOutsideOfSession
		}
		b.Duration = roundToMinutes(b.EndTime.Sub(b.StartTime))
	}

	next := s.clone()
	next.Breaks = append(next.Breaks, b)
	next.UpdatedAt = now
	return next, nil
}

// Duration returns the session's effective length in minutes: the recorded
// actual duration for terminal sessions, the running wall-clock length
// minus pauses otherwise.
func (s StudySession) Duration(now time.Time) int {
	if s.Status.IsTerminal() {
		return s.ActualDuration
	}
	if s.StartTime == nil {
		return 0
	}
	return actualDuration(s.StartTime, now, s.PausedTime)
}

// BreakCount returns the number of recorded breaks.
func (s StudySession) BreakCount() int {
	return len(s.Breaks)
}

// String returns a compact representation for logging.
func (s StudySession) String() string {
	return fmt.Sprintf(
		"StudySession{ID: %s, User: %s, Topic: %s, Type: %s, Status: %s, Actual: %dm}",
		s.ID, s.UserID, s.TopicID, s.Type, s.Status, s.ActualDuration,
	)
}

// clone returns a deep copy so transitions never alias the caller's slices.
func (s StudySession) clone() StudySession {
	next := s
	if s.StartTime != nil {
		start := *s.StartTime
		next.StartTime = &start
	}
	if s.EndTime != nil {
		end := *s.EndTime
		next.EndTime = &end
	}
	if s.Productivity != nil {
		p := *s.Productivity
		next.Productivity = &p
	}
	next.Breaks = make([]Break, len(s.Breaks))
	copy(next.Breaks, s.Breaks)
	next.Tags = copyStrings(s.Tags)
	next.Environment.Distractions = copyStrings(s.Environment.Distractions)
	next.Environment.Tools = copyStrings(s.Environment.Tools)
	return next
}

// actualDuration applies the completion duration rule. A malformed record
// where accumulated pauses exceed the wall-clock span clamps to zero.
func actualDuration(start *time.Time, end time.Time, pausedMinutes int) int {
	if start == nil {
		return 0
	}
	minutes := roundToMinutes(end.Sub(*start)) - pausedMinutes
	if minutes < 0 {
		return 0
	}
	return minutes
}

// roundToMinutes rounds a duration to the nearest whole minute.
func roundToMinutes(d time.Duration) int {
	return int(d.Round(time.Minute) / time.Minute)
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
