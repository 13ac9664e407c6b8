package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/models"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
// main falls back to it in development when no DATABASE_URL is configured.
type MockProductRepository struct {
	products map[string]models.Product // keyed by barcode
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
	}
}

func (r *MockProductRepository) GetByBarcode(_ context.Context, barcode string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	product, ok := r.products[barcode]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("product with barcode %s not found", barcode))
	}
	return &product, nil
}

func (r *MockProductRepository) GetByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, apperr.NotFound(fmt.Sprintf("product with ID %s not found", id))
}

func (r *MockProductRepository) List(_ context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := strings.ToLower(filter.Search)
	matched := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if !p.IsActive {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		matched = append(matched, p)
	}
	sortNewestFirst(matched)
	total := int64(len(matched))
	return paginate(matched, filter.Offset, filter.Limit), total, nil
}

func (r *MockProductRepository) ListAll(_ context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		productList = append(productList, p)
	}
	sortNewestFirst(productList)
	return productList, nil
}

func (r *MockProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.products[product.Barcode]; taken {
		return apperr.Conflict(fmt.Sprintf("product with barcode %s already exists", product.Barcode))
	}
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	r.products[product.Barcode] = *product
	return nil
}

func (r *MockProductRepository) Update(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldBarcode string
	for barcode, p := range r.products {
		if p.ID == product.ID {
			oldBarcode = barcode
			break
		}
	}
	if oldBarcode == "" {
		return apperr.NotFound(fmt.Sprintf("product with ID %s not found for update", product.ID))
	}
	if product.Barcode != oldBarcode {
		if _, taken := r.products[product.Barcode]; taken {
			return apperr.Conflict(fmt.Sprintf("product with barcode %s already exists", product.Barcode))
		}
		delete(r.products, oldBarcode)
	}
	product.UpdatedAt = time.Now()
	r.products[product.Barcode] = *product
	return nil
}

func (r *MockProductRepository) SetActive(_ context.Context, barcode string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[barcode]
	if !ok {
		return apperr.NotFound(fmt.Sprintf("product with barcode %s not found", barcode))
	}
	product.IsActive = active
	product.UpdatedAt = time.Now()
	r.products[barcode] = product
	return nil
}

func sortNewestFirst(products []models.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
