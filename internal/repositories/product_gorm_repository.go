package repositories

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/models"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

func (r *GORMProductRepository) GetByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, "barcode = ?", barcode).Error
	if err != nil {
		return nil, translate(err, fmt.Sprintf("product with barcode %s not found", barcode), "")
	}
	return &product, nil
}

func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("product with ID %s not found", id), "")
	}
	return &product, nil
}

func (r *GORMProductRepository) List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal("failed to count products", err)
	}

	var products []models.Product
	err := q.Order("created_at DESC").Offset(filter.Offset).Limit(filter.Limit).Find(&products).Error
	if err != nil {
		return nil, 0, apperr.Internal("failed to list products", err)
	}
	return products, total, nil
}

func (r *GORMProductRepository) ListAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, apperr.Internal("failed to get all products", err)
	}
	return products, nil
}

// Create inserts a product. A taken barcode yields a Conflict error.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	err := r.db.WithContext(ctx).Create(product).Error
	return translate(err, "", fmt.Sprintf("product with barcode %s already exists", product.Barcode))
}

func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	// Select("*") writes zero values too
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", product.ID).
		Select("*").Omit("id", "created_at").
		Updates(product)
	if res.Error != nil {
		return translate(res.Error, "", fmt.Sprintf("product with barcode %s already exists", product.Barcode))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(fmt.Sprintf("product with ID %s not found for update", product.ID))
	}
	return nil
}

func (r *GORMProductRepository) SetActive(ctx context.Context, barcode string, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("barcode = ?", barcode).
		Update("is_active", active)
	if res.Error != nil {
		return apperr.Internal("failed to update product", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(fmt.Sprintf("product with barcode %s not found", barcode))
	}
	return nil
}
