package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/zhouzirui/haven/backend/internal/model/chat"
)

// ConversationRepository persists conversations and their messages.
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository wraps db.
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a conversation.
func (r *ConversationRepository) Create(ctx context.Context, c *chat.Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// Get returns the conversation when it belongs to userID.
func (r *ConversationRepository) Get(ctx context.Context, userID, id string) (chat.Conversation, error) {
	var c chat.Conversation
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&c).Error
	return c, translate(err)
}

// List returns the user's conversations, most recently active first.
func (r *ConversationRepository) List(ctx context.Context, userID string, limit int) ([]chat.Conversation, error) {
	var out []chat.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(clampLimit(limit, 50, 200)).
		Find(&out).Error
	return out, err
}

// Delete removes a conversation and its messages.
func (r *ConversationRepository) Delete(ctx context.Context, userID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&chat.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("conversation_id = ?", id).Delete(&chat.Message{}).Error
	})
}

// Touch bumps updated_at and sets the title when it is still empty.
func (r *ConversationRepository) Touch(ctx context.Context, id, title string) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	tx := r.db.WithContext(ctx).Model(&chat.Conversation{}).Where("id = ?", id)
	if err := tx.Updates(updates).Error; err != nil {
		return err
	}
	if title == "" {
		return nil
	}
	return r.db.WithContext(ctx).Model(&chat.Conversation{}).
		Where("id = ? AND (title = '' OR title IS NULL)", id).
		Update("title", title).Error
}

// AddMessage inserts a message.
func (r *ConversationRepository) AddMessage(ctx context.Context, m *chat.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Messages returns the last limit messages of a conversation in chronological order.
func (r *ConversationRepository) Messages(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	var out []chat.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(clampLimit(limit, 100, 500)).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
