package handlers

import (
	"github.com/gofiber/fiber/v2"

	"selfcheckout/internal/services"
)

// PaymentHandler handles the payment provider endpoints.
type PaymentHandler struct {
	service *services.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers the payment routes.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/payments")
	paymentRoutes.Post("/create-order", h.HandleCreateOrder)
	paymentRoutes.Post("/verify-payment", h.HandleVerifyPayment)
}

// HandleCreateOrder creates a provider order the checkout widget can pay.
func (h *PaymentHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var in services.CreatePaymentIntentInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	intent, err := h.service.CreatePaymentIntent(c.UserContext(), in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Payment order created", intent)
}

// HandleVerifyPayment checks the signature returned by the checkout widget.
func (h *PaymentHandler) HandleVerifyPayment(c *fiber.Ctx) error {
	var in services.VerifyPaymentInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	result, err := h.service.VerifyCallback(c.UserContext(), in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Payment verified successfully", result)
}
