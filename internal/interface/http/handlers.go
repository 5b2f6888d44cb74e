// Package http implements the REST API for Study Tracker Hub.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/studyhub/study-tracker/internal/application/command"
	"github.com/studyhub/study-tracker/internal/application/query"
	"github.com/studyhub/study-tracker/internal/application/saga"
	"github.com/studyhub/study-tracker/internal/domain/progress"
	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/topic"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Study Tracker Hub API",
		"version":     "v1",
		"description": "REST API for Study Tracker Hub - sessions, streaks, and statistics",
		"endpoints": map[string]string{
			"health":   "/health",
			"sessions": "/api/v1/sessions",
			"stats":    "/api/v1/stats",
			"streaks":  "/api/v1/stats/streaks",
			"topics":   "/api/v1/topics",
		},
		"documentation": "https://github.com/studyhub/study-tracker",
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles the metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// errorStatus maps a domain error to an HTTP status and machine-readable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, saga.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsStateTransition(err):
		return http.StatusConflict, "invalid_state"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondError writes an error response with the mapped status, logging
// server-side failures only.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status, code := errorStatus(err)

	if status >= 500 {
		s.logger.Error("request failed",
			logger.String("operation", operation),
			logger.Err(err),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, status, code, "An unexpected error occurred")
		return
	}

	writeJSONError(w, status, code, err.Error())
}

// decodeJSON decodes a request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// userResponse is the public projection of a user. The password hash never
// leaves the domain layer.
type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Timezone    string    `json:"timezone"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Timezone:    string(u.Timezone),
		CreatedAt:   u.CreatedAt,
	}
}

// sessionResponse is the wire representation of a study session.
type sessionResponse struct {
	ID      string `json:"id"`
	TopicID string `json:"topic_id"`

	Type   string `json:"type"`
	Status string `json:"status"`

	PlannedDuration int `json:"planned_duration"`
	ActualDuration  int `json:"actual_duration"`
	PausedTime      int `json:"paused_time,omitempty"`

	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Notes        string                `json:"notes,omitempty"`
	Productivity *session.Productivity `json:"productivity,omitempty"`
	BreakCount   int                   `json:"break_count,omitempty"`
	Tags         []string              `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func toSessionResponse(sess session.StudySession) sessionResponse {
	return sessionResponse{
		ID:              sess.ID,
		TopicID:         sess.TopicID,
		Type:            string(sess.Type),
		Status:          string(sess.Status),
		PlannedDuration: sess.PlannedDuration,
		ActualDuration:  sess.ActualDuration,
		PausedTime:      sess.PausedTime,
		StartTime:       sess.StartTime,
		EndTime:         sess.EndTime,
		Notes:           sess.Notes,
		Productivity:    sess.Productivity,
		BreakCount:      len(sess.Breaks),
		Tags:            sess.Tags,
		CreatedAt:       sess.CreatedAt,
	}
}

// topicResponse is the wire representation of a topic.
type topicResponse struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Category       string            `json:"category"`
	Difficulty     string            `json:"difficulty"`
	EstimatedHours int               `json:"estimated_hours,omitempty"`
	Milestones     []topic.Milestone `json:"milestones,omitempty"`
	Resources      []topic.Resource  `json:"resources,omitempty"`
	CreatedBy      string            `json:"created_by,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

func toTopicResponse(t *topic.Topic) topicResponse {
	return topicResponse{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Category:       string(t.Category),
		Difficulty:     string(t.Difficulty),
		EstimatedHours: t.EstimatedHours,
		Milestones:     t.Milestones,
		Resources:      t.Resources,
		CreatedBy:      t.CreatedBy,
		CreatedAt:      t.CreatedAt,
	}
}

// progressResponse is the wire representation of a user's topic progress.
type progressResponse struct {
	TopicID          string     `json:"topic_id"`
	Status           string     `json:"status"`
	Progress         int        `json:"progress"`
	TimeSpentMinutes int        `json:"time_spent_minutes"`
	IsBookmarked     bool       `json:"is_bookmarked"`
	Notes            string     `json:"notes,omitempty"`
	Rating           int        `json:"rating,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func toProgressResponse(p *progress.UserProgress) progressResponse {
	return progressResponse{
		TopicID:          p.TopicID,
		Status:           string(p.Status),
		Progress:         int(p.Progress),
		TimeSpentMinutes: p.TimeSpentMinutes,
		IsBookmarked:     p.IsBookmarked,
		Notes:            p.Notes,
		Rating:           p.Rating,
		StartedAt:        p.StartedAt,
		CompletedAt:      p.CompletedAt,
	}
}

// streaksResponse is the streak state after a completion.
type streaksResponse struct {
	CurrentStreak  int        `json:"current_streak"`
	LongestStreak  int        `json:"longest_streak"`
	TotalStudyDays int        `json:"total_study_days"`
	LastStudyDate  *time.Time `json:"last_study_date,omitempty"`
}

// achievementResponse is an unlocked achievement.
type achievementResponse struct {
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// warningResponse is a non-fatal rollup failure surfaced to the client.
type warningResponse struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRegister handles POST /api/v1/auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.deps.RegistrationSaga == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Registration not configured")
		return
	}

	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
		Timezone    string `json:"timezone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.RegistrationSaga.Execute(r.Context(), saga.RegistrationInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Timezone:    req.Timezone,
	})
	if err != nil {
		s.respondError(w, r, err, "register")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":          toUserResponse(result.User),
		"registered_at": result.RegisteredAt,
	})
}

// handleLogin handles POST /api/v1/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.RegistrationSaga == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Authentication not configured")
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	u, err := s.deps.RegistrationSaga.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err, "login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": toUserResponse(u)})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION LIFECYCLE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handlePlanSession handles POST /api/v1/sessions
func (s *Server) handlePlanSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.PlanSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session planning not configured")
		return
	}

	var req struct {
		UserID          string              `json:"user_id"`
		TopicID         string              `json:"topic_id"`
		Type            string              `json:"type"`
		PlannedDuration int                 `json:"planned_duration"`
		Notes           string              `json:"notes"`
		Tags            []string            `json:"tags"`
		Environment     session.Environment `json:"environment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.PlanSessionHandler.Handle(r.Context(), command.PlanSessionCommand{
		UserID:          req.UserID,
		TopicID:         req.TopicID,
		Type:            req.Type,
		PlannedDuration: req.PlannedDuration,
		Notes:           req.Notes,
		Tags:            req.Tags,
		Environment:     req.Environment,
		CorrelationID:   getRequestID(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err, "plan_session")
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(result.Session))
}

// handleStartSession handles POST /api/v1/sessions/{id}/start
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.StartSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session lifecycle not configured")
		return
	}

	sessionID, userID, ok := s.sessionAction(w, r)
	if !ok {
		return
	}

	result, err := s.deps.StartSessionHandler.Handle(r.Context(), command.StartSessionCommand{
		SessionID:     sessionID,
		UserID:        userID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err, "start_session")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(result.Session))
}

// handlePauseSession handles POST /api/v1/sessions/{id}/pause
func (s *Server) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.PauseSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session lifecycle not configured")
		return
	}

	sessionID, userID, ok := s.sessionAction(w, r)
	if !ok {
		return
	}

	result, err := s.deps.PauseSessionHandler.Handle(r.Context(), command.PauseSessionCommand{
		SessionID:     sessionID,
		UserID:        userID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err, "pause_session")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(result.Session))
}

// handleResumeSession handles POST /api/v1/sessions/{id}/resume
func (s *Server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.ResumeSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session lifecycle not configured")
		return
	}

	sessionID, userID, ok := s.sessionAction(w, r)
	if !ok {
		return
	}

	result, err := s.deps.ResumeSessionHandler.Handle(r.Context(), command.ResumeSessionCommand{
		SessionID:     sessionID,
		UserID:        userID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err, "resume_session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":       toSessionResponse(result.Session),
		"pause_minutes": result.PauseMinutes,
	})
}

// handleCompleteSession handles POST /api/v1/sessions/{id}/complete
func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompletionSaga == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session completion not configured")
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Session ID is required")
		return
	}

	var req struct {
		UserID        string                `json:"user_id"`
		Notes         string                `json:"notes"`
		Productivity  *session.Productivity `json:"productivity"`
		FocusMetrics  *session.FocusMetrics `json:"focus_metrics"`
		Tags          []string              `json:"tags"`
		TopicProgress *int                  `json:"topic_progress"`
		TopicRating   int                   `json:"topic_rating"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.CompletionSaga.Execute(r.Context(), saga.CompletionInput{
		SessionID: sessionID,
		UserID:    req.UserID,
		Data: session.CompletionData{
			Notes:        req.Notes,
			Productivity: req.Productivity,
			FocusMetrics: req.FocusMetrics,
			Tags:         req.Tags,
		},
		TopicProgress: req.TopicProgress,
		TopicRating:   req.TopicRating,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err, "complete_session")
		return
	}

	achievements := make([]achievementResponse, 0, len(result.UnlockedAchievements))
	for _, a := range result.UnlockedAchievements {
		achievements = append(achievements, achievementResponse{
			Type:       string(a.Type),
			Title:      a.Title,
			UnlockedAt: a.UnlockedAt,
		})
	}

	warnings := make([]warningResponse, 0, len(result.Warnings))
	for _, warn := range result.Warnings {
		warnings = append(warnings, warningResponse{Step: warn.Step, Message: warn.Message})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": toSessionResponse(result.Session),
		"streaks": streaksResponse{
			CurrentStreak:  result.Streaks.CurrentStreak,
			LongestStreak:  result.Streaks.LongestStreak,
			TotalStudyDays: result.Streaks.TotalStudyDays,
			LastStudyDate:  result.Streaks.LastStudyDate,
		},
		"topic_completed":       result.TopicCompleted,
		"unlocked_achievements": achievements,
		"warnings":              warnings,
		"completed_at":          result.CompletedAt,
	})
}

// handleCancelSession handles POST /api/v1/sessions/{id}/cancel
func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.CancelSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session lifecycle not configured")
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Session ID is required")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.CancelSessionHandler.Handle(r.Context(), command.CancelSessionCommand{
		SessionID:     sessionID,
		UserID:        req.UserID,
		Reason:        req.Reason,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err, "cancel_session")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(result.Session))
}

// handleAddBreak handles POST /api/v1/sessions/{id}/breaks
func (s *Server) handleAddBreak(w http.ResponseWriter, r *http.Request) {
	if s.deps.AddBreakHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session lifecycle not configured")
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Session ID is required")
		return
	}

	var req struct {
		UserID    string     `json:"user_id"`
		StartTime time.Time  `json:"start_time"`
		EndTime   *time.Time `json:"end_time"`
		Kind      string     `json:"kind"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.AddBreakHandler.Handle(r.Context(), command.AddBreakCommand{
		SessionID: sessionID,
		UserID:    req.UserID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Kind:      req.Kind,
	})
	if err != nil {
		s.respondError(w, r, err, "add_break")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(result.Session))
}

// sessionAction extracts the session ID from the path and the user ID from
// the body for bare lifecycle transitions (start/pause/resume).
func (s *Server) sessionAction(w http.ResponseWriter, r *http.Request) (sessionID, userID string, ok bool) {
	sessionID = r.PathValue("id")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Session ID is required")
		return "", "", false
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return "", "", false
	}

	return sessionID, req.UserID, true
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION QUERY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListSessions handles GET /api/v1/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListSessionsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session listing not configured")
		return
	}

	q := query.ListSessionsQuery{
		UserID:  getQueryParam(r, "user_id", ""),
		TopicID: getQueryParam(r, "topic_id", ""),
		Status:  getQueryParam(r, "status", ""),
		Offset:  getQueryParamInt(r, "offset", 0),
		Limit:   getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.ListSessionsHandler.Handle(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, "list_sessions")
		return
	}

	meta := &ResponseMeta{
		Page:     result.Offset/maxInt(result.Limit, 1) + 1,
		PageSize: result.Limit,
		HasMore:  len(result.Sessions) == result.Limit,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// handleGetActiveSession handles GET /api/v1/sessions/active
func (s *Server) handleGetActiveSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetActiveSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Active session lookup not configured")
		return
	}

	q := query.GetActiveSessionQuery{
		UserID: getQueryParam(r, "user_id", ""),
	}

	result, err := s.deps.GetActiveSessionHandler.Handle(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, "get_active_session")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetUserStats handles GET /api/v1/stats
func (s *Server) handleGetUserStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserStatsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Statistics not configured")
		return
	}

	q := query.GetUserStatsQuery{
		UserID:              getQueryParam(r, "user_id", ""),
		IncludeAchievements: getQueryParam(r, "include_achievements", "true") != "false",
		IncludeDailyGoal:    getQueryParam(r, "include_daily_goal", "true") != "false",
	}

	if from := getQueryParam(r, "from", ""); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "from must be RFC3339")
			return
		}
		q.From = t
	}
	if to := getQueryParam(r, "to", ""); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "to must be RFC3339")
			return
		}
		q.To = t
	}

	result, err := s.deps.GetUserStatsHandler.Handle(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, "get_user_stats")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetDailyStats handles GET /api/v1/stats/daily
func (s *Server) handleGetDailyStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetDailyStatsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Statistics not configured")
		return
	}

	q := query.GetDailyStatsQuery{
		UserID:        getQueryParam(r, "user_id", ""),
		Days:          getQueryParamInt(r, "days", 0),
		FillEmptyDays: getQueryParamBool(r, "fill_empty_days"),
	}

	if from := getQueryParam(r, "from", ""); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "from must be RFC3339")
			return
		}
		q.From = t
	}
	if to := getQueryParam(r, "to", ""); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "to must be RFC3339")
			return
		}
		q.To = t
	}

	result, err := s.deps.GetDailyStatsHandler.Handle(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, "get_daily_stats")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetStudyStreaks handles GET /api/v1/stats/streaks
func (s *Server) handleGetStudyStreaks(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudyStreaksHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Streaks not configured")
		return
	}

	q := query.GetStudyStreaksQuery{
		UserID: getQueryParam(r, "user_id", ""),
	}

	result, err := s.deps.GetStudyStreaksHandler.Handle(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, "get_study_streaks")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleReconcileStats handles POST /api/v1/stats/reconcile
// Rebuilds the materialized statistics from the session history on demand;
// the scheduler runs the same command periodically.
func (s *Server) handleReconcileStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReconcileHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Reconciliation not configured")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.ReconcileHandler.Handle(r.Context(), command.ReconcileStatisticsCommand{
		UserID:        req.UserID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err, "reconcile_statistics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":        result.UserID,
		"drifted":        result.Drifted,
		"drift_hours":    result.DriftHours,
		"drift_sessions": result.DriftSessions,
		"statistics": map[string]interface{}{
			"total_study_hours":      result.Statistics.TotalStudyHours,
			"total_sessions":         result.Statistics.TotalSessions,
			"current_streak":         result.Statistics.CurrentStreak,
			"longest_streak":         result.Statistics.LongestStreak,
			"completed_topics":       result.Statistics.CompletedTopics,
			"average_session_length": result.Statistics.AverageSessionLength,
			"last_study_date":        result.Statistics.LastStudyDate,
		},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TOPIC & PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreateTopic handles POST /api/v1/topics
func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateTopicHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Topics not configured")
		return
	}

	var req struct {
		Title          string            `json:"title"`
		Description    string            `json:"description"`
		Category       string            `json:"category"`
		Difficulty     string            `json:"difficulty"`
		EstimatedHours int               `json:"estimated_hours"`
		Milestones     []topic.Milestone `json:"milestones"`
		Resources      []topic.Resource  `json:"resources"`
		CreatedBy      string            `json:"created_by"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.CreateTopicHandler.Handle(r.Context(), command.CreateTopicCommand{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Difficulty:     req.Difficulty,
		EstimatedHours: req.EstimatedHours,
		Milestones:     req.Milestones,
		Resources:      req.Resources,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		s.respondError(w, r, err, "create_topic")
		return
	}

	writeJSON(w, http.StatusCreated, toTopicResponse(result.Topic))
}

// handleGetTopicProgress handles GET /api/v1/topics/{id}/progress
func (s *Server) handleGetTopicProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetTopicProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Topic progress not configured")
		return
	}

	topicID := r.PathValue("id")
	if topicID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Topic ID is required")
		return
	}

	q := query.GetTopicProgressQuery{
		UserID:  getQueryParam(r, "user_id", ""),
		TopicID: topicID,
	}

	result, err := s.deps.GetTopicProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, "get_topic_progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleUpdateProgress handles PATCH /api/v1/topics/{id}/progress
func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Topic progress not configured")
		return
	}

	topicID := r.PathValue("id")
	if topicID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Topic ID is required")
		return
	}

	var req struct {
		UserID              string  `json:"user_id"`
		Progress            *int    `json:"progress"`
		CompleteMilestoneID string  `json:"complete_milestone_id"`
		CompleteResourceID  string  `json:"complete_resource_id"`
		ToggleBookmark      bool    `json:"toggle_bookmark"`
		Notes               *string `json:"notes"`
		Rating              int     `json:"rating"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.UpdateProgressHandler.Handle(r.Context(), command.UpdateProgressCommand{
		UserID:              req.UserID,
		TopicID:             topicID,
		Progress:            req.Progress,
		CompleteMilestoneID: req.CompleteMilestoneID,
		CompleteResourceID:  req.CompleteResourceID,
		ToggleBookmark:      req.ToggleBookmark,
		Notes:               req.Notes,
		Rating:              req.Rating,
		CorrelationID:       getRequestID(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err, "update_progress")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"progress":        toProgressResponse(result.Progress),
		"topic_completed": result.TopicCompleted,
		"is_bookmarked":   result.IsBookmarked,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PREFERENCES HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleUpdatePreferences handles PATCH /api/v1/users/preferences
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdatePreferencesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Preferences not configured")
		return
	}

	var req struct {
		UserID               string  `json:"user_id"`
		DailyGoalMinutes     *int    `json:"daily_goal_minutes"`
		PreferredSessionType *string `json:"preferred_session_type"`
		RemindersEnabled     *bool   `json:"reminders_enabled"`
		Timezone             *string `json:"timezone"`
		DisplayName          *string `json:"display_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.UpdatePreferencesHandler.Handle(r.Context(), command.UpdatePreferencesCommand{
		UserID: req.UserID,
		Preferences: command.PreferenceUpdates{
			DailyGoalMinutes:     req.DailyGoalMinutes,
			PreferredSessionType: req.PreferredSessionType,
			RemindersEnabled:     req.RemindersEnabled,
			Timezone:             req.Timezone,
			DisplayName:          req.DisplayName,
		},
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err, "update_preferences")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"preferences": map[string]interface{}{
			"daily_goal_minutes":     result.UpdatedPreferences.DailyGoalMinutes,
			"preferred_session_type": result.UpdatedPreferences.PreferredSessionType,
			"reminders_enabled":      result.UpdatedPreferences.RemindersEnabled,
		},
		"changed_fields": result.ChangedFields,
		"updated_at":     result.UpdatedAt,
	})
}

// maxInt returns the larger of two ints.
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
