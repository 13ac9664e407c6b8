package handlers

import (
	"github.com/gofiber/fiber/v2"

	"selfcheckout/internal/middleware"
	"selfcheckout/internal/models"
	"selfcheckout/internal/services"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

// RegisterRoutes registers the order routes. Every route requires auth.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)

	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/my-orders", h.HandleGetMyOrders)
	orderRoutes.Get("/all", staffOnly, h.HandleGetAllOrders)
	orderRoutes.Get("/stats", staffOnly, h.HandleGetStats)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Put("/:id/status", staffOnly, h.HandleUpdateOrderStatus)
	orderRoutes.Put("/:id/cancel", h.HandleCancelOrder)
}

// HandleCreateOrder prices the cart server-side and creates a pending order.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var in services.CreateOrderInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	order, err := h.service.CreateOrder(c.UserContext(), middleware.CurrentUser(c), in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "Order created successfully", order)
}

// HandleGetMyOrders lists the caller's orders, newest first.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	orders, page, err := h.service.ListMyOrders(c.UserContext(), middleware.CurrentUser(c), parsePagination(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders, "pagination": page})
}

// HandleGetAllOrders lists every order, optionally filtered by ?status=.
func (h *OrderHandler) HandleGetAllOrders(c *fiber.Ctx) error {
	status := models.OrderStatus(c.Query("status"))
	orders, page, err := h.service.ListAll(c.UserContext(), status, parsePagination(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders, "pagination": page})
}

// HandleGetStats returns order aggregates.
func (h *OrderHandler) HandleGetStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", stats)
}

// HandleGetOrderByID retrieves a single order. Customers only see their own.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", order)
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var in services.UpdateStatusInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	order, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Order status updated successfully", order)
}

// HandleCancelOrder cancels one of the caller's orders.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	order, err := h.service.CancelOrder(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Order cancelled successfully", order)
}
