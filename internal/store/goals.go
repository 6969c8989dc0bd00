package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/zhouzirui/haven/backend/internal/model/goal"
)

// GoalRepository persists goals.
type GoalRepository struct {
	db *gorm.DB
}

// NewGoalRepository wraps db.
func NewGoalRepository(db *gorm.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

// Create inserts a goal.
func (r *GoalRepository) Create(ctx context.Context, g *goal.Goal) error {
	return r.db.WithContext(ctx).Create(g).Error
}

// Get returns a goal owned by userID.
func (r *GoalRepository) Get(ctx context.Context, userID, id string) (goal.Goal, error) {
	var g goal.Goal
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&g).Error
	return g, translate(err)
}

// List returns open goals first, then completed ones, newest first within each group.
func (r *GoalRepository) List(ctx context.Context, userID string) ([]goal.Goal, error) {
	var out []goal.Goal
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("completed ASC").
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// Save writes every column of an existing goal.
func (r *GoalRepository) Save(ctx context.Context, g *goal.Goal) error {
	return r.db.WithContext(ctx).Save(g).Error
}

// Delete removes a goal owned by userID.
func (r *GoalRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&goal.Goal{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
