package store

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zhouzirui/haven/backend/internal/model/user"
)

// UserRepository persists accounts and settings.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository wraps db.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateWithSettings inserts the user and its default settings in one transaction.
func (r *UserRepository) CreateWithSettings(ctx context.Context, u *user.User, settings *user.Settings) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		return tx.Create(settings).Error
	})
}

// FindByEmail looks up an account by lower-cased email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error
	return u, translate(err)
}

// FindByID looks up an account.
func (r *UserRepository) FindByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	return u, translate(err)
}

// EmailExists reports whether an account already uses email.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&user.User{}).Where("email = ?", strings.ToLower(email)).Count(&count).Error
	return count > 0, err
}

// GetSettings returns the settings row for userID.
func (r *UserRepository) GetSettings(ctx context.Context, userID string) (user.Settings, error) {
	var s user.Settings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	return s, translate(err)
}

// SaveSettings upserts the settings row.
func (r *UserRepository) SaveSettings(ctx context.Context, s *user.Settings) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(s).Error
}
