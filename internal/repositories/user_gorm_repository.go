package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/models"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create inserts a user. Unique phone, email and firebase uid collisions yield Conflict.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	return translate(err, "", "user already exists")
}

// Update writes every column of user, zero values included. A missing id yields NotFound.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Select("*").Omit("id", "created_at").
		Updates(user)
	if res.Error != nil {
		return translate(res.Error, "", "email or phone number already in use")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(fmt.Sprintf("user with ID %s not found for update", user.ID))
	}
	return nil
}

func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "user not found", "id = ?", id)
}

func (r *GORMUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.first(ctx, "user not found", "phone_number = ?", phone)
}

func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "user not found", "email = ?", email)
}

func (r *GORMUserRepository) GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	return r.first(ctx, "user not found", "firebase_uid = ?", uid)
}

func (r *GORMUserRepository) GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	return r.first(ctx, "reset token not found", "reset_token_hash = ?", hash)
}

func (r *GORMUserRepository) first(ctx context.Context, notFound, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound(notFound)
		}
		return nil, apperr.Internal("failed to load user", err)
	}
	return &user, nil
}
