package query

import (
	"context"
	"fmt"
	"time"

	"cidc/dao/model"

	"gorm.io/gorm"
)

// UserStore persists users.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByEmail looks a user up by exact email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Get looks a user up by id.
func (s *UserStore) Get(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Create inserts a new user.
func (s *UserStore) Create(ctx context.Context, u *model.User) error {
	if u.AccessedAt.IsZero() {
		u.AccessedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user %s: %w", u.Email, err)
	}
	return nil
}

// TouchAccessed records that the user was seen at t. Concurrent calls for
// the same user simply overwrite each other.
func (s *UserStore) TouchAccessed(ctx context.Context, id uint, t time.Time) error {
	return s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("accessed_at", t).Error
}

// Save writes all fields of u.
func (s *UserStore) Save(ctx context.Context, u *model.User) error {
	return s.db.WithContext(ctx).Save(u).Error
}
