package repositories

import (
	"context"

	"selfcheckout/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error)
}
