package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/zhouzirui/haven/backend/internal/model/music"
)

// MusicRepository persists listening sessions.
type MusicRepository struct {
	db *gorm.DB
}

// NewMusicRepository wraps db.
func NewMusicRepository(db *gorm.DB) *MusicRepository {
	return &MusicRepository{db: db}
}

// Create inserts a session.
func (r *MusicRepository) Create(ctx context.Context, s *music.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// Get returns a session owned by userID.
func (r *MusicRepository) Get(ctx context.Context, userID, id string) (music.Session, error) {
	var s music.Session
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&s).Error
	return s, translate(err)
}

// Finish records the outcome of a session that is still open. It reports
// false when the session was already finished or does not belong to userID.
func (r *MusicRepository) Finish(ctx context.Context, userID, id string, moodAfter int, endedAt time.Time, durationSec int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&music.Session{}).
		Where("id = ? AND user_id = ? AND ended_at IS NULL", id, userID).
		Updates(map[string]any{
			"mood_after":   moodAfter,
			"ended_at":     endedAt,
			"duration_sec": durationSec,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// List returns the user's sessions newest first.
func (r *MusicRepository) List(ctx context.Context, userID string, limit int) ([]music.Session, error) {
	var out []music.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(clampLimit(limit, 50, 500)).
		Find(&out).Error
	return out, err
}

// Finished returns every session of userID that has a mood-after rating.
func (r *MusicRepository) Finished(ctx context.Context, userID string) ([]music.Session, error) {
	var out []music.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ended_at IS NOT NULL AND mood_after IS NOT NULL", userID).
		Order("started_at ASC").
		Find(&out).Error
	return out, err
}
