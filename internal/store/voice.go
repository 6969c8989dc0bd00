package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/zhouzirui/haven/backend/internal/model/voice"
)

// VoiceRepository persists tone analysis results.
type VoiceRepository struct {
	db *gorm.DB
}

// NewVoiceRepository wraps db.
func NewVoiceRepository(db *gorm.DB) *VoiceRepository {
	return &VoiceRepository{db: db}
}

// Create inserts a tone log.
func (r *VoiceRepository) Create(ctx context.Context, l *voice.ToneLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// Get returns a tone log owned by userID.
func (r *VoiceRepository) Get(ctx context.Context, userID, id string) (voice.ToneLog, error) {
	var l voice.ToneLog
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&l).Error
	return l, translate(err)
}

// List returns the newest tone logs of userID.
func (r *VoiceRepository) List(ctx context.Context, userID string, limit int) ([]voice.ToneLog, error) {
	var out []voice.ToneLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(clampLimit(limit, 20, 200)).
		Find(&out).Error
	return out, err
}
