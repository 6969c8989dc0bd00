package journal

import (
	"fmt"
	"time"
)

// Kind distinguishes the journaling screens.
type Kind string

const (
	Free      Kind = "free"
	Gratitude Kind = "gratitude"
	CBT       Kind = "cbt"
	Hope      Kind = "hope"
)

// ParseKind validates a kind, defaulting to Free when empty.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case "":
		return Free, nil
	case Free, Gratitude, CBT, Hope:
		return Kind(raw), nil
	default:
		return "", fmt.Errorf("unknown journal kind %q", raw)
	}
}

// Entry is a journal page. CBT worksheets use the structured fields,
// hope-jar notes are short Content-only entries.
type Entry struct {
	ID               string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           string    `gorm:"type:varchar(36);index;not null" json:"userId"`
	Kind             Kind      `gorm:"type:varchar(16);index" json:"kind"`
	Title            string    `gorm:"type:varchar(200)" json:"title,omitempty"`
	Content          string    `gorm:"type:text" json:"content,omitempty"`
	MoodScore        *int      `json:"moodScore,omitempty"`
	Emotion          string    `gorm:"type:varchar(32)" json:"emotion,omitempty"`
	Situation        string    `gorm:"type:text" json:"situation,omitempty"`
	AutomaticThought string    `gorm:"type:text" json:"automaticThought,omitempty"`
	EvidenceFor      string    `gorm:"type:text" json:"evidenceFor,omitempty"`
	EvidenceAgainst  string    `gorm:"type:text" json:"evidenceAgainst,omitempty"`
	BalancedThought  string    `gorm:"type:text" json:"balancedThought,omitempty"`
	CreatedAt        time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// TableName overrides the gorm default.
func (Entry) TableName() string { return "journal_entries" }
