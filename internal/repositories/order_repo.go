package repositories

import (
	"context"
	"time"

	"selfcheckout/internal/models"
)

// OrderFilter narrows an order listing. Zero values mean "any".
type OrderFilter struct {
	UserID string
	Status models.OrderStatus
	Offset int
	Limit  int
}

// OrderUpdate lists the order columns that may change after creation. Nil fields are left alone.
// Items and totals are immutable once the order exists.
type OrderUpdate struct {
	Status         *models.OrderStatus
	PaymentStatus  *models.PaymentStatus
	PaymentOrderID *string
	PaymentID      *string
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByPaymentOrderID(ctx context.Context, paymentOrderID string) (*models.Order, error)
	// List returns matching orders newest first, and the total matching count.
	List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	Update(ctx context.Context, id string, update OrderUpdate) error
	Stats(ctx context.Context, since time.Time) (*models.OrderStats, error)
}
