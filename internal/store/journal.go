package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/zhouzirui/haven/backend/internal/model/journal"
)

// JournalRepository persists journal entries.
type JournalRepository struct {
	db *gorm.DB
}

// NewJournalRepository wraps db.
func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Create inserts an entry.
func (r *JournalRepository) Create(ctx context.Context, e *journal.Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// Get returns an entry owned by userID.
func (r *JournalRepository) Get(ctx context.Context, userID, id string) (journal.Entry, error) {
	var e journal.Entry
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&e).Error
	return e, translate(err)
}

// List returns entries newest first, optionally filtered by kind.
func (r *JournalRepository) List(ctx context.Context, userID string, kind journal.Kind, limit int) ([]journal.Entry, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}

	var out []journal.Entry
	err := q.Order("created_at DESC").Limit(clampLimit(limit, 50, 200)).Find(&out).Error
	return out, err
}

// Save writes every column of an existing entry.
func (r *JournalRepository) Save(ctx context.Context, e *journal.Entry) error {
	return r.db.WithContext(ctx).Save(e).Error
}

// Delete removes an entry owned by userID.
func (r *JournalRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&journal.Entry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByKind returns how many entries of kind the user has.
func (r *JournalRepository) CountByKind(ctx context.Context, userID string, kind journal.Kind) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&journal.Entry{}).Where("user_id = ? AND kind = ?", userID, kind).Count(&n).Error
	return n, err
}

// NthByKind returns the entry at offset n in creation order.
func (r *JournalRepository) NthByKind(ctx context.Context, userID string, kind journal.Kind, n int) (journal.Entry, error) {
	var e journal.Entry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		Order("created_at ASC").
		Offset(n).
		First(&e).Error
	return e, translate(err)
}
