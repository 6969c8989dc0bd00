package voice

import "time"

// ToneLog persists the outcome of one voice tone analysis.
type ToneLog struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(36);index;not null" json:"userId"`
	Label      string    `gorm:"type:varchar(32)" json:"label"`
	Confidence float64   `json:"confidence"`
	Valence    float64   `json:"valence"`
	Arousal    float64   `json:"arousal"`
	Dominance  float64   `json:"dominance"`
	Transcript string    `gorm:"type:text" json:"transcript,omitempty"`
	Features   string    `gorm:"type:text" json:"features"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName overrides the gorm default.
func (ToneLog) TableName() string { return "voice_tone_logs" }
