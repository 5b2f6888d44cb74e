package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PREFERENCES COMMAND
// Updates a user's study preferences and profile settings.
// ══════════════════════════════════════════════════════════════════════════════

// UpdatePreferencesCommand contains the data to update preferences.
type UpdatePreferencesCommand struct {
	// UserID is the ID of the user.
	UserID string

	// Preferences contains the new preference values.
	// Only non-nil values will be updated.
	Preferences PreferenceUpdates

	// CorrelationID for tracing.
	CorrelationID string
}

// PreferenceUpdates contains optional preference updates.
// nil values mean "don't change".
type PreferenceUpdates struct {
	// DailyGoalMinutes - daily study goal in minutes (1-1440).
	DailyGoalMinutes *int

	// PreferredSessionType - default session type for new sessions.
	PreferredSessionType *string

	// RemindersEnabled - whether to send study reminders.
	RemindersEnabled *bool

	// Timezone - IANA timezone for day calculations.
	Timezone *string

	// DisplayName - update display name.
	DisplayName *string
}

// Validate validates the command.
func (c UpdatePreferencesCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("update_preferences: user_id is required")
	}

	if c.Preferences.DailyGoalMinutes != nil {
		if *c.Preferences.DailyGoalMinutes < 1 || *c.Preferences.DailyGoalMinutes > 1440 {
			return errors.New("update_preferences: daily_goal_minutes must be 1-1440")
		}
	}

	if c.Preferences.Timezone != nil {
		if !user.Timezone(*c.Preferences.Timezone).IsValid() {
			return errors.New("update_preferences: timezone must be a valid IANA zone")
		}
	}

	if c.Preferences.DisplayName != nil {
		name := *c.Preferences.DisplayName
		if len(name) < 1 || len(name) > 100 {
			return errors.New("update_preferences: display_name must be 1-100 characters")
		}
	}

	return nil
}

// UpdatePreferencesResult contains the result of updating preferences.
type UpdatePreferencesResult struct {
	// Success indicates if preferences were updated.
	Success bool

	// UserID is the ID of the user.
	UserID string

	// UpdatedPreferences contains the final preference values.
	UpdatedPreferences user.Preferences

	// ChangedFields lists which fields were changed.
	ChangedFields []string

	// UpdatedAt is when the preferences were updated.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpdatePreferencesHandler handles the UpdatePreferencesCommand.
type UpdatePreferencesHandler struct {
	userRepo user.Repository
	cache    user.Cache // optional, for invalidation
}

// NewUpdatePreferencesHandler creates a new UpdatePreferencesHandler.
func NewUpdatePreferencesHandler(userRepo user.Repository, cache user.Cache) *UpdatePreferencesHandler {
	return &UpdatePreferencesHandler{
		userRepo: userRepo,
		cache:    cache,
	}
}

// Handle executes the update preferences command.
func (h *UpdatePreferencesHandler) Handle(
	ctx context.Context,
	cmd UpdatePreferencesCommand,
) (*UpdatePreferencesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_preferences: validation failed: %w", err)
	}

	u, err := h.userRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("update_preferences: user not found: %w", err)
	}

	changedFields := make([]string, 0)
	prefs := u.Preferences

	if cmd.Preferences.DailyGoalMinutes != nil && *cmd.Preferences.DailyGoalMinutes != prefs.DailyGoalMinutes {
		prefs.DailyGoalMinutes = *cmd.Preferences.DailyGoalMinutes
		changedFields = append(changedFields, "daily_goal_minutes")
	}

	if cmd.Preferences.PreferredSessionType != nil && *cmd.Preferences.PreferredSessionType != prefs.PreferredSessionType {
		prefs.PreferredSessionType = *cmd.Preferences.PreferredSessionType
		changedFields = append(changedFields, "preferred_session_type")
	}

	if cmd.Preferences.RemindersEnabled != nil && *cmd.Preferences.RemindersEnabled != prefs.RemindersEnabled {
		prefs.RemindersEnabled = *cmd.Preferences.RemindersEnabled
		changedFields = append(changedFields, "reminders_enabled")
	}

	if cmd.Preferences.Timezone != nil && user.Timezone(*cmd.Preferences.Timezone) != u.Timezone {
		u.Timezone = user.Timezone(*cmd.Preferences.Timezone)
		changedFields = append(changedFields, "timezone")
	}

	if cmd.Preferences.DisplayName != nil && *cmd.Preferences.DisplayName != u.DisplayName {
		u.DisplayName = *cmd.Preferences.DisplayName
		changedFields = append(changedFields, "display_name")
	}

	u.Preferences = prefs

	if len(changedFields) > 0 {
		if err := h.userRepo.Update(ctx, u); err != nil {
			return nil, fmt.Errorf("update_preferences: failed to save: %w", err)
		}
		if h.cache != nil {
			_ = h.cache.Invalidate(ctx, cmd.UserID)
		}
	}

	return &UpdatePreferencesResult{
		Success:            true,
		UserID:             cmd.UserID,
		UpdatedPreferences: prefs,
		ChangedFields:      changedFields,
		UpdatedAt:          u.UpdatedAt,
	}, nil
}
