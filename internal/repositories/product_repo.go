package repositories

import (
	"context"

	"selfcheckout/internal/models"
)

// ProductFilter narrows an active-product listing.
type ProductFilter struct {
	Category string
	Search   string
	Offset   int
	Limit    int
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	// GetByBarcode returns the product regardless of its active flag.
	GetByBarcode(ctx context.Context, barcode string) (*models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	// List returns active products, newest first, and the total matching count.
	List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)
	ListAll(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	SetActive(ctx context.Context, barcode string, active bool) error
}
