package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zhouzirui/haven/backend/internal/model/mood"
)

// MoodRepository persists mood logs and summaries.
type MoodRepository struct {
	db *gorm.DB
}

// NewMoodRepository wraps db.
func NewMoodRepository(db *gorm.DB) *MoodRepository {
	return &MoodRepository{db: db}
}

// Create inserts a log.
func (r *MoodRepository) Create(ctx context.Context, l *mood.Log) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// List returns up to limit logs in [from, to) in chronological order.
// Zero bounds are open.
func (r *MoodRepository) List(ctx context.Context, userID string, from, to time.Time, limit int) ([]mood.Log, error) {
	var out []mood.Log
	err := r.rangeQuery(ctx, userID, from, to).Limit(clampLimit(limit, 1000, 5000)).Find(&out).Error
	return out, err
}

// ListRange returns every log in [from, to) in chronological order, for
// aggregation.
func (r *MoodRepository) ListRange(ctx context.Context, userID string, from, to time.Time) ([]mood.Log, error) {
	var out []mood.Log
	err := r.rangeQuery(ctx, userID, from, to).Find(&out).Error
	return out, err
}

func (r *MoodRepository) rangeQuery(ctx context.Context, userID string, from, to time.Time) *gorm.DB {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !from.IsZero() {
		q = q.Where("logged_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("logged_at < ?", to)
	}
	return q.Order("logged_at ASC")
}

// Delete removes a log owned by userID.
func (r *MoodRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&mood.Log{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertSummary writes a summary keyed by (user, period, start).
func (r *MoodRepository) UpsertSummary(ctx context.Context, s *mood.Summary) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "period"}, {Name: "period_start"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"count", "average", "min", "max", "dominant_emotion", "insight",
		}),
	}).Create(s).Error
}

// Summaries returns stored summaries for a period in chronological order.
func (r *MoodRepository) Summaries(ctx context.Context, userID string, period mood.Period, from, to time.Time) ([]mood.Summary, error) {
	q := r.db.WithContext(ctx).Where("user_id = ? AND period = ?", userID, period)
	if !from.IsZero() {
		q = q.Where("period_start >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("period_start < ?", to)
	}

	var out []mood.Summary
	err := q.Order("period_start ASC").Find(&out).Error
	return out, err
}
