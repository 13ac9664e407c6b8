package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/models"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders map[string]models.Order
	last   time.Time // keeps CreatedAt strictly increasing
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// Create adds a new order. Order numbers are unique, as in the database schema.
func (r *MockOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == order.OrderNumber {
			return apperr.Conflict(fmt.Sprintf("order number %s already exists", order.OrderNumber))
		}
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
	now := time.Now()
	if !now.After(r.last) {
		now = r.last.Add(time.Microsecond)
	}
	r.last = now
	order.CreatedAt = now
	order.UpdatedAt = now
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (r *MockOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("order with ID %s not found", id))
	}
	order = cloneOrder(order)
	return &order, nil
}

func (r *MockOrderRepository) GetByPaymentOrderID(_ context.Context, paymentOrderID string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if paymentOrderID != "" && o.PaymentOrderID == paymentOrderID {
			o = cloneOrder(o)
			return &o, nil
		}
	}
	return nil, apperr.NotFound("order not found for payment")
}

func (r *MockOrderRepository) List(_ context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	orderList := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		orderList = append(orderList, cloneOrder(o))
	}
	sort.SliceStable(orderList, func(i, j int) bool {
		return orderList[i].CreatedAt.After(orderList[j].CreatedAt)
	})
	return paginate(orderList, filter.Offset, filter.Limit), int64(len(orderList)), nil
}

func (r *MockOrderRepository) Update(_ context.Context, id string, update OrderUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return apperr.NotFound(fmt.Sprintf("order with ID %s not found for update", id))
	}
	if update.Status != nil {
		order.Status = *update.Status
	}
	if update.PaymentStatus != nil {
		order.PaymentStatus = *update.PaymentStatus
	}
	if update.PaymentOrderID != nil {
		order.PaymentOrderID = *update.PaymentOrderID
	}
	if update.PaymentID != nil {
		order.PaymentID = *update.PaymentID
	}
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return nil
}

func (r *MockOrderRepository) Stats(_ context.Context, since time.Time) (*models.OrderStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &models.OrderStats{
		ByStatus:        map[models.OrderStatus]int64{},
		ByPaymentStatus: map[models.PaymentStatus]int64{},
	}
	revenue := decimal.Zero
	for _, o := range r.orders {
		stats.TotalOrders++
		stats.ByStatus[o.Status]++
		stats.ByPaymentStatus[o.PaymentStatus]++
		if o.PaymentStatus == models.PaymentPaid {
			revenue = revenue.Add(decimal.NewFromFloat(o.Total))
		}
		if !o.CreatedAt.Before(since) {
			stats.OrdersToday++
		}
	}
	stats.Revenue = revenue.Round(2).InexactFloat64()
	return stats, nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	if o.DeliveryAddress != nil {
		addr := *o.DeliveryAddress
		o.DeliveryAddress = &addr
	}
	return o
}
