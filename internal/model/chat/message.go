package chat

import "time"

// Sender values.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);index;not null" json:"conversationId"`
	Sender         string    `gorm:"type:varchar(16);not null" json:"sender"`
	Content        string    `gorm:"type:text" json:"content"`
	Emotion        string    `gorm:"type:varchar(32)" json:"emotion,omitempty"`
	ToneLabel      string    `gorm:"type:varchar(32)" json:"toneLabel,omitempty"`
	Crisis         bool      `json:"crisis,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
}
