package handlers

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"selfcheckout/internal/middleware"
	"selfcheckout/internal/models"
	"selfcheckout/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	service *services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// RegisterRoutes registers the scan and product routes. auth must resolve the caller;
// catalog changes are limited to store staff.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)

	router.Get("/scan/:barcode", h.HandleGetByBarcode)

	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleList)
	productRoutes.Get("/export", auth, staffOnly, h.HandleExport)
	productRoutes.Get("/id/:id", auth, staffOnly, h.HandleGetByID)
	productRoutes.Get("/:barcode", h.HandleGetByBarcode)
	productRoutes.Post("/", auth, staffOnly, h.HandleCreate)
	productRoutes.Put("/:barcode", auth, staffOnly, h.HandleUpdate)
	productRoutes.Delete("/:barcode", auth, staffOnly, h.HandleDelete)
}

// HandleGetByBarcode returns the active product for a scanned barcode.
func (h *ProductHandler) HandleGetByBarcode(c *fiber.Ctx) error {
	product, err := h.service.GetByBarcode(c.UserContext(), c.Params("barcode"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", product)
}

// HandleGetByID returns a product by id, including inactive ones.
func (h *ProductHandler) HandleGetByID(c *fiber.Ctx) error {
	product, err := h.service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", product)
}

// HandleList returns a page of active products, filtered by category and search.
func (h *ProductHandler) HandleList(c *fiber.Ctx) error {
	products, page, err := h.service.List(c.UserContext(), services.ProductListInput{
		Pagination: parsePagination(c),
		Category:   c.Query("category"),
		Search:     c.Query("search"),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": page,
	})
}

// HandleCreate adds a product to the catalog.
func (h *ProductHandler) HandleCreate(c *fiber.Ctx) error {
	var in services.CreateProductInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	product, err := h.service.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "Product created successfully", product)
}

// HandleUpdate applies a partial update to the product with the given barcode.
func (h *ProductHandler) HandleUpdate(c *fiber.Ctx) error {
	var in services.UpdateProductInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	product, err := h.service.Update(c.UserContext(), c.Params("barcode"), in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Product updated successfully", product)
}

// HandleDelete deactivates the product. It stays in storage.
func (h *ProductHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.SoftDelete(c.UserContext(), c.Params("barcode")); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Product deleted successfully", nil)
}

// HandleExport streams the whole catalog as a spreadsheet.
func (h *ProductHandler) HandleExport(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.service.ExportExcel(c.UserContext(), &buf); err != nil {
		return err
	}
	filename := fmt.Sprintf("products-%s.xlsx", time.Now().Format("20060102"))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(buf.Bytes())
}
