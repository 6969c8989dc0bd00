package chat

import "time"

// Conversation groups the messages a user exchanged with a companion.
type Conversation struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(36);index;not null" json:"userId"`
	CompanionID string    `gorm:"type:varchar(64)" json:"companionId"`
	Title       string    `gorm:"type:varchar(120)" json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
