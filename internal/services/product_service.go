package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/models"
	"selfcheckout/internal/repositories"
)

// ProductService handles business logic related to the catalog.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// CreateProductInput is the payload for adding a catalog entry.
type CreateProductInput struct {
	Barcode     string  `json:"barcode" validate:"required,min=8,max=20"`
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description string  `json:"description" validate:"max=500"`
	Price       float64 `json:"price" validate:"gte=0,lte=10000"`
	Category    string  `json:"category" validate:"max=50"`
	Stock       int     `json:"stock" validate:"gte=0"`
	ImageURL    string  `json:"imageUrl" validate:"omitempty,url"`
}

// UpdateProductInput changes only the fields that are present.
type UpdateProductInput struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0,lte=10000"`
	Category    *string  `json:"category" validate:"omitempty,max=50"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	ImageURL    *string  `json:"imageUrl" validate:"omitempty,url"`
	IsActive    *bool    `json:"isActive"`
}

// ProductListInput selects a page of active products.
type ProductListInput struct {
	Pagination
	Category string
	Search   string
}

// GetByBarcode returns the active product with the given barcode.
func (s *ProductService) GetByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, apperr.Validation("barcode is required")
	}
	product, err := s.repo.GetByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperr.NotFound(fmt.Sprintf("product with barcode %s not found", barcode))
	}
	return product, nil
}

// GetByID fetches a product whether or not it is active, so historical references resolve.
func (s *ProductService) GetByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of active products, newest first.
func (s *ProductService) List(ctx context.Context, in ProductListInput) ([]models.Product, PageInfo, error) {
	page := NewPagination(in.Page, in.Limit)
	products, total, err := s.repo.List(ctx, repositories.ProductFilter{
		Category: strings.TrimSpace(in.Category),
		Search:   strings.TrimSpace(in.Search),
		Offset:   page.Offset(),
		Limit:    page.Limit,
	})
	if err != nil {
		return nil, PageInfo{}, err
	}
	return products, page.Info(total), nil
}

// Create adds a product. A barcode that is already taken, even by an inactive product,
// yields a Conflict.
func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	in.Barcode = strings.TrimSpace(in.Barcode)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.DefaultCategory
	}

	product := &models.Product{
		Barcode:     in.Barcode,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Category:    category,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Update applies a partial update to the product with the given barcode.
func (s *ProductService) Update(ctx context.Context, barcode string, in UpdateProductInput) (*models.Product, error) {
	in.Name = trimmed(in.Name)
	in.Category = trimmed(in.Category)
	in.ImageURL = trimmed(in.ImageURL)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	product, err := s.repo.GetByBarcode(ctx, strings.TrimSpace(barcode))
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		product.Name = *in.Name
	}
	if in.Description != nil {
		product.Description = *in.Description
	}
	if in.Price != nil {
		product.Price = *in.Price
	}
	if in.Category != nil {
		product.Category = *in.Category
		if product.Category == "" {
			product.Category = models.DefaultCategory
		}
	}
	if in.Stock != nil {
		product.Stock = *in.Stock
	}
	if in.ImageURL != nil {
		product.ImageURL = *in.ImageURL
	}
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

// SoftDelete hides the product from lookups and listings. The row is kept.
func (s *ProductService) SoftDelete(ctx context.Context, barcode string) error {
	return s.repo.SetActive(ctx, strings.TrimSpace(barcode), false)
}

var exportHeaders = []string{
	"ID", "Barcode", "Name", "Description", "Price", "Category",
	"Stock", "ImageURL", "Active", "CreatedAt", "UpdatedAt",
}

// ExportExcel writes every product, inactive ones included, as an xlsx workbook to w.
func (s *ProductService) ExportExcel(ctx context.Context, w io.Writer) error {
	products, err := s.repo.ListAll(ctx)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return apperr.Internal("failed to create Excel sheet", err)
	}

	headerRow := sheet.AddRow()
	for _, h := range exportHeaders {
		headerRow.AddCell().SetValue(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.ID)
		row.AddCell().SetValue(p.Barcode)
		row.AddCell().SetValue(p.Name)
		row.AddCell().SetValue(p.Description)
		row.AddCell().SetValue(p.Price)
		row.AddCell().SetValue(p.Category)
		row.AddCell().SetValue(p.Stock)
		row.AddCell().SetValue(p.ImageURL)
		row.AddCell().SetValue(p.IsActive)
		row.AddCell().SetValue(p.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(p.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	if err := file.Write(w); err != nil {
		return apperr.Internal("failed to write Excel file", err)
	}
	return nil
}
