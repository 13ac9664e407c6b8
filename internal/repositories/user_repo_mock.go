package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/models"
)

// MockUserRepository is an in-memory implementation of UserRepository that enforces the
// same unique keys as the database schema.
type MockUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]models.User),
	}
}

func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, exists := r.users[user.ID]; exists {
		return apperr.Conflict("user already exists")
	}
	if r.collides(user) {
		return apperr.Conflict("user already exists")
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	r.users[user.ID] = *user
	return nil
}

func (r *MockUserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return apperr.NotFound(fmt.Sprintf("user with ID %s not found for update", user.ID))
	}
	if r.collides(user) {
		return apperr.Conflict("email or phone number already in use")
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

// collides reports whether another user holds one of user's unique keys. Callers hold mu.
func (r *MockUserRepository) collides(user *models.User) bool {
	for id, other := range r.users {
		if id == user.ID {
			continue
		}
		if sameKey(user.PhoneNumber, other.PhoneNumber) ||
			sameKey(user.Email, other.Email) ||
			sameKey(user.FirebaseUID, other.FirebaseUID) {
			return true
		}
	}
	return false
}

func sameKey(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (r *MockUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find("user not found", func(u *models.User) bool { return u.ID == id })
}

func (r *MockUserRepository) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	return r.find("user not found", func(u *models.User) bool { return u.Phone() == phone && phone != "" })
}

func (r *MockUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find("user not found", func(u *models.User) bool { return u.EmailAddress() == email && email != "" })
}

func (r *MockUserRepository) GetByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	return r.find("user not found", func(u *models.User) bool {
		return u.FirebaseUID != nil && *u.FirebaseUID == uid
	})
}

func (r *MockUserRepository) GetByResetTokenHash(_ context.Context, hash string) (*models.User, error) {
	return r.find("reset token not found", func(u *models.User) bool {
		return hash != "" && u.ResetTokenHash == hash
	})
}

func (r *MockUserRepository) find(notFound string, match func(*models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(&u) {
			return &u, nil
		}
	}
	return nil, apperr.NotFound(notFound)
}
