package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/logging"
	"selfcheckout/internal/models"
	"selfcheckout/internal/repositories"
)

// Routing keys of the order lifecycle events.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderPaid          = "order.paid"
)

// EventPublisher delivers order lifecycle events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	publisher   EventPublisher // optional
	log         *logging.Logger
	now         func() time.Time
}

// NewOrderService creates a new OrderService. publisher may be nil.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, publisher EventPublisher, log *logging.Logger) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		publisher:   publisher,
		log:         log,
		now:         time.Now,
	}
}

// OrderLineInput is one cart line: a scanned barcode and how many.
type OrderLineInput struct {
	Barcode  string `json:"barcode" validate:"required,min=8,max=20"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=1000"`
}

// CreateOrderInput is the checkout payload. Prices are never taken from the client.
type CreateOrderInput struct {
	Items           []OrderLineInput        `json:"items" validate:"required,min=1,max=100,dive"`
	DeliveryAddress *models.DeliveryAddress `json:"deliveryAddress"`
	Notes           string                  `json:"notes" validate:"max=500"`
}

// UpdateStatusInput carries an admin status change. PaymentStatus is optional.
type UpdateStatusInput struct {
	Status        models.OrderStatus    `json:"status" validate:"required"`
	PaymentStatus *models.PaymentStatus `json:"paymentStatus"`
}

// CreateOrder prices every line from the current catalog and saves a pending order.
// Any unknown or inactive barcode fails the whole request.
func (s *OrderService) CreateOrder(ctx context.Context, user *models.User, in CreateOrderInput) (*models.Order, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	for _, line := range in.Items {
		barcode := strings.TrimSpace(line.Barcode)
		product, err := s.productRepo.GetByBarcode(ctx, barcode)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.NotFound(fmt.Sprintf("product with barcode %s not found", barcode))
			}
			return nil, err
		}
		if !product.IsActive {
			return nil, apperr.NotFound(fmt.Sprintf("product with barcode %s not found", barcode))
		}
		items = append(items, models.OrderItem{
			Barcode:  product.Barcode,
			Name:     product.Name,
			Price:    product.Price,
			Quantity: line.Quantity,
		})
	}

	items, total := models.ComputeTotals(items)
	order := &models.Order{
		OrderNumber:     models.NewOrderNumber(s.now()),
		UserID:          user.ID,
		UserName:        user.Name,
		UserPhone:       user.Phone(),
		Items:           items,
		Total:           total,
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentPending,
		DeliveryAddress: in.DeliveryAddress,
		Notes:           strings.TrimSpace(in.Notes),
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.log.Infof("order %s created for user %s, total %.2f", order.OrderNumber, user.ID, order.Total)
	s.publish(ctx, EventOrderCreated, order)
	return order, nil
}

// GetOrder returns an order to its owner or to store staff. Anyone else gets NotFound.
func (s *OrderService) GetOrder(ctx context.Context, user *models.User, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != user.ID && !user.IsStaff() {
		return nil, apperr.NotFound(fmt.Sprintf("order with ID %s not found", id))
	}
	return order, nil
}

// ListMyOrders returns the caller's orders, newest first.
func (s *OrderService) ListMyOrders(ctx context.Context, user *models.User, page Pagination) ([]models.Order, PageInfo, error) {
	page = NewPagination(page.Page, page.Limit)
	orders, total, err := s.orderRepo.List(ctx, repositories.OrderFilter{
		UserID: user.ID,
		Offset: page.Offset(),
		Limit:  page.Limit,
	})
	if err != nil {
		return nil, PageInfo{}, err
	}
	return orders, page.Info(total), nil
}

// ListAll returns every order, optionally filtered by status.
func (s *OrderService) ListAll(ctx context.Context, status models.OrderStatus, page Pagination) ([]models.Order, PageInfo, error) {
	if status != "" && !status.Valid() {
		return nil, PageInfo{}, apperr.Validation(fmt.Sprintf("invalid order status: %s", status))
	}
	page = NewPagination(page.Page, page.Limit)
	orders, total, err := s.orderRepo.List(ctx, repositories.OrderFilter{
		Status: status,
		Offset: page.Offset(),
		Limit:  page.Limit,
	})
	if err != nil {
		return nil, PageInfo{}, err
	}
	return orders, page.Info(total), nil
}

// UpdateStatus sets the fulfilment status and, when given, the payment status.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, in UpdateStatusInput) (*models.Order, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if !in.Status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid order status: %s", in.Status))
	}
	if in.PaymentStatus != nil && !in.PaymentStatus.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid payment status: %s", *in.PaymentStatus))
	}

	if _, err := s.orderRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	status := in.Status
	if err := s.orderRepo.Update(ctx, id, repositories.OrderUpdate{Status: &status, PaymentStatus: in.PaymentStatus}); err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Infof("order %s status set to %s (payment %s)", order.OrderNumber, order.Status, order.PaymentStatus)
	s.publish(ctx, EventOrderStatusChanged, order)
	return order, nil
}

// CancelOrder lets the owner cancel an order that is neither completed nor already
// cancelled. The payment status is left as it is.
func (s *OrderService) CancelOrder(ctx context.Context, user *models.User, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != user.ID {
		return nil, apperr.NotFound(fmt.Sprintf("order with ID %s not found", id))
	}
	if !order.Status.Cancellable() {
		return nil, apperr.Validation(fmt.Sprintf("cannot cancel an order with status %s", order.Status))
	}

	status := models.StatusCancelled
	if err := s.orderRepo.Update(ctx, id, repositories.OrderUpdate{Status: &status}); err != nil {
		return nil, err
	}
	order.Status = status

	s.log.Infof("order %s cancelled by user %s", order.OrderNumber, user.ID)
	s.publish(ctx, EventOrderCancelled, order)
	return order, nil
}

// Stats aggregates all orders. "Today" starts at local midnight.
func (s *OrderService) Stats(ctx context.Context) (*models.OrderStats, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.orderRepo.Stats(ctx, midnight)
}

// CheckPayable verifies that an order can be charged amount: it must await payment,
// not be cancelled, and amount must equal its total.
func (s *OrderService) CheckPayable(ctx context.Context, orderID string, amount float64) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentPaid {
		return nil, apperr.Validation(fmt.Sprintf("order %s is already paid", order.OrderNumber))
	}
	if order.Status == models.StatusCancelled {
		return nil, apperr.Validation(fmt.Sprintf("order %s is cancelled", order.OrderNumber))
	}
	if !decimal.NewFromFloat(order.Total).Round(2).Equal(decimal.NewFromFloat(amount).Round(2)) {
		return nil, apperr.Validation(fmt.Sprintf("amount %.2f does not match order total %.2f", amount, order.Total))
	}
	return order, nil
}

// AttachPaymentOrder records the provider order id on an order.
func (s *OrderService) AttachPaymentOrder(ctx context.Context, orderID, paymentOrderID string) error {
	return s.orderRepo.Update(ctx, orderID, repositories.OrderUpdate{PaymentOrderID: &paymentOrderID})
}

// MarkPaid flags the order linked to a verified provider payment as paid. It returns
// NotFound when no order is linked to paymentOrderID.
func (s *OrderService) MarkPaid(ctx context.Context, paymentOrderID, paymentID string) (*models.Order, error) {
	if paymentOrderID == "" {
		return nil, apperr.NotFound("order not found for payment")
	}
	order, err := s.orderRepo.GetByPaymentOrderID(ctx, paymentOrderID)
	if err != nil {
		return nil, err
	}
	paid := models.PaymentPaid
	if err := s.orderRepo.Update(ctx, order.ID, repositories.OrderUpdate{PaymentStatus: &paid, PaymentID: &paymentID}); err != nil {
		return nil, err
	}
	order.PaymentStatus = paid
	order.PaymentID = paymentID

	s.log.Infof("order %s paid with payment %s", order.OrderNumber, paymentID)
	s.publish(ctx, EventOrderPaid, order)
	return order, nil
}

// publish sends an order event. Failures are logged and never fail the caller.
func (s *OrderService) publish(ctx context.Context, routingKey string, order *models.Order) {
	if s.publisher == nil {
		return
	}
	event := map[string]any{
		"orderId":       order.ID,
		"orderNumber":   order.OrderNumber,
		"userId":        order.UserID,
		"status":        order.Status,
		"paymentStatus": order.PaymentStatus,
		"total":         order.Total,
		"occurredAt":    s.now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		s.log.Warnf("failed to publish %s for order %s: %v", routingKey, order.ID, err)
	}
}
