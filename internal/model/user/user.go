package user

import "time"

// User is an account holder.
type User struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	DisplayName  string    `gorm:"type:varchar(100)" json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Theme values accepted by Settings.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// Settings holds per-user preferences edited from the settings page.
type Settings struct {
	UserID               string    `gorm:"type:varchar(36);primaryKey" json:"userId"`
	CompanionID          string    `gorm:"type:varchar(64)" json:"companionId"`
	VoiceAnalysisEnabled bool      `json:"voiceAnalysisEnabled"`
	DailyReminder        bool      `json:"dailyReminder"`
	ReminderTime         string    `gorm:"type:varchar(5)" json:"reminderTime,omitempty"`
	CrisisContactName    string    `gorm:"type:varchar(100)" json:"crisisContactName,omitempty"`
	CrisisContactPhone   string    `gorm:"type:varchar(32)" json:"crisisContactPhone,omitempty"`
	Theme                string    `gorm:"type:varchar(16)" json:"theme"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// DefaultSettings returns the settings a freshly registered user starts with.
func DefaultSettings(userID, companionID string) Settings {
	return Settings{
		UserID:               userID,
		CompanionID:          companionID,
		VoiceAnalysisEnabled: true,
		Theme:                ThemeSystem,
	}
}

// TableName overrides the gorm default.
func (Settings) TableName() string { return "user_settings" }
