package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/relaychat/relay-api/internal/models"
)

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	Delete(ctx context.Context, id string) error
	UpsertBatch(ctx context.Context, users []models.User) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Delete removes the account. Messages, notifications and history rows keep
// their foreign keys; cleanup of orphaned rows is a maintenance concern.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error
}

// UpsertBatch inserts seed accounts in batches, updating names and roles of
// accounts whose email already exists. Password hashes of existing accounts
// are left untouched.
func (r *userRepository) UpsertBatch(ctx context.Context, users []models.User) (int64, error) {
	if len(users) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "phone_number", "role"}),
	}).CreateInBatches(users, 100)

	return result.RowsAffected, result.Error
}
