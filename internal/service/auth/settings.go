package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/haven/backend/internal/model/companion"
	"github.com/zhouzirui/haven/backend/internal/model/user"
	"github.com/zhouzirui/haven/backend/internal/store"
)

// SettingsUpdate is a partial settings change. Nil fields are left as they are.
type SettingsUpdate struct {
	CompanionID          *string `json:"companionId"`
	VoiceAnalysisEnabled *bool   `json:"voiceAnalysisEnabled"`
	DailyReminder        *bool   `json:"dailyReminder"`
	ReminderTime         *string `json:"reminderTime"`
	CrisisContactName    *string `json:"crisisContactName"`
	CrisisContactPhone   *string `json:"crisisContactPhone"`
	Theme                *string `json:"theme"`
}

// Settings returns the user's settings, creating defaults for accounts that
// predate the settings table.
func (s *Service) Settings(ctx context.Context, userID string) (user.Settings, error) {
	settings, err := s.users.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		settings = user.DefaultSettings(userID, companion.DefaultID)
		if err := s.users.SaveSettings(ctx, &settings); err != nil {
			return user.Settings{}, fmt.Errorf("create default settings: %w", err)
		}
		return settings, nil
	}
	if err != nil {
		return user.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings validates and applies a partial update.
func (s *Service) UpdateSettings(ctx context.Context, userID string, upd SettingsUpdate) (user.Settings, error) {
	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return user.Settings{}, err
	}

	if upd.CompanionID != nil {
		id := strings.TrimSpace(*upd.CompanionID)
		if _, ok := s.companions.Get(id); !ok {
			return user.Settings{}, fmt.Errorf("%w: unknown companion %q", ErrValidation, id)
		}
		settings.CompanionID = id
	}
	if upd.VoiceAnalysisEnabled != nil {
		settings.VoiceAnalysisEnabled = *upd.VoiceAnalysisEnabled
	}
	if upd.DailyReminder != nil {
		settings.DailyReminder = *upd.DailyReminder
	}
	if upd.ReminderTime != nil {
		rt := strings.TrimSpace(*upd.ReminderTime)
		if rt != "" && !reminderPattern.MatchString(rt) {
			return user.Settings{}, fmt.Errorf("%w: reminder time must be HH:MM", ErrValidation)
		}
		settings.ReminderTime = rt
	}
	if upd.CrisisContactName != nil {
		settings.CrisisContactName = strings.TrimSpace(*upd.CrisisContactName)
	}
	if upd.CrisisContactPhone != nil {
		settings.CrisisContactPhone = strings.TrimSpace(*upd.CrisisContactPhone)
	}
	if upd.Theme != nil {
		switch *upd.Theme {
		case user.ThemeLight, user.ThemeDark, user.ThemeSystem:
			settings.Theme = *upd.Theme
		default:
			return user.Settings{}, fmt.Errorf("%w: theme must be light, dark or system", ErrValidation)
		}
	}
	if settings.DailyReminder && settings.ReminderTime == "" {
		return user.Settings{}, fmt.Errorf("%w: daily reminder needs a reminder time", ErrValidation)
	}

	if err := s.users.SaveSettings(ctx, &settings); err != nil {
		return user.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return settings, nil
}
