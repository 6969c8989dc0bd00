package mood

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Score bounds.
const (
	MinScore  = 1
	MaxScore  = 10
	MinEnergy = 1
	MaxEnergy = 5
)

// Log is one mood check-in.
type Log struct {
	ID       string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID   string     `gorm:"type:varchar(36);index:idx_mood_user_time;not null" json:"userId"`
	Score    int        `gorm:"not null" json:"score"`
	Energy   *int       `json:"energy,omitempty"`
	Emotions StringList `gorm:"type:text" json:"emotions"`
	Note     string     `gorm:"type:text" json:"note,omitempty"`
	LoggedAt time.Time  `gorm:"index:idx_mood_user_time" json:"loggedAt"`
}

// Period identifies a summary bucket size.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// ParsePeriod validates a period name.
func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case Daily, Weekly, Monthly:
		return Period(raw), nil
	default:
		return "", fmt.Errorf("unknown period %q", raw)
	}
}

// Summary is a persisted aggregate of mood logs over one period bucket.
type Summary struct {
	ID              string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID          string    `gorm:"type:varchar(36);uniqueIndex:idx_summary_bucket;not null" json:"userId"`
	Period          Period    `gorm:"type:varchar(16);uniqueIndex:idx_summary_bucket" json:"period"`
	PeriodStart     time.Time `gorm:"uniqueIndex:idx_summary_bucket" json:"periodStart"`
	Count           int       `json:"count"`
	Average         float64   `json:"average"`
	Min             int       `json:"min"`
	Max             int       `json:"max"`
	DominantEmotion string    `gorm:"type:varchar(32)" json:"dominantEmotion,omitempty"`
	Insight         string    `gorm:"type:text" json:"insight"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Stats is the dashboard view over a range of logs.
type Stats struct {
	From          time.Time      `json:"from"`
	To            time.Time      `json:"to"`
	Count         int            `json:"count"`
	Average       float64        `json:"average"`
	Min           int            `json:"min"`
	Max           int            `json:"max"`
	StdDev        float64        `json:"stdDev"`
	TrendSlope    float64        `json:"trendSlope"`
	Trend         string         `json:"trend"`
	CurrentStreak int            `json:"currentStreak"`
	EmotionCounts map[string]int `json:"emotionCounts"`
	BestWeekday   string         `json:"bestWeekday,omitempty"`
	WorstWeekday  string         `json:"worstWeekday,omitempty"`
	AverageEnergy float64        `json:"averageEnergy,omitempty"`
}

// StringList stores a string slice as a JSON text column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("string list: unsupported source type %T", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

// TableName overrides the gorm default.
func (Log) TableName() string { return "mood_logs" }

// TableName overrides the gorm default.
func (Summary) TableName() string { return "mood_summaries" }
