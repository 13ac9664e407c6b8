package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/logging"
	"selfcheckout/internal/models"
	"selfcheckout/internal/repositories"
	"selfcheckout/internal/services"
)

type publishedEvent struct {
	key     string
	payload map[string]any
}

// recordingPublisher keeps every event it is given.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key: routingKey, payload: payload.(map[string]any)})
	return p.err
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, len(p.events))
	for i, e := range p.events {
		keys[i] = e.key
	}
	return keys
}

type orderFixture struct {
	svc       *services.OrderService
	products  *services.ProductService
	orders    *repositories.MockOrderRepository
	publisher *recordingPublisher
	customer  *models.User
	other     *models.User
	staff     *models.User
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	productRepo := repositories.NewMockProductRepository()
	f := &orderFixture{
		products:  services.NewProductService(productRepo),
		orders:    repositories.NewMockOrderRepository(),
		publisher: &recordingPublisher{},
	}
	f.svc = services.NewOrderService(f.orders, productRepo, f.publisher, logging.Discard())

	phone := "+919876543210"
	f.customer = &models.User{Name: "Asha", PhoneNumber: &phone, Role: models.RoleCustomer, IsActive: true}
	f.customer.ID = "customer-1"
	f.other = &models.User{Name: "Ravi", Role: models.RoleCustomer, IsActive: true}
	f.other.ID = "customer-2"
	f.staff = &models.User{Name: "Till", Role: models.RoleStaff, IsActive: true}
	f.staff.ID = "staff-1"

	for _, in := range []services.CreateProductInput{
		{Barcode: "1234567890123", Name: "Milk", Price: 1.50, Stock: 10},
		{Barcode: "9876543210987", Name: "Bread", Price: 0.10, Stock: 10},
	} {
		_, err := f.products.Create(context.Background(), in)
		require.NoError(t, err)
	}
	return f
}

func (f *orderFixture) place(t *testing.T, user *models.User, lines ...services.OrderLineInput) *models.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), user, services.CreateOrderInput{Items: lines})
	require.NoError(t, err)
	return order
}

func TestOrderService_CreateOrderPricesFromCatalog(t *testing.T) {
	f := newOrderFixture(t)

	order := f.place(t, f.customer,
		services.OrderLineInput{Barcode: "1234567890123", Quantity: 3},
		services.OrderLineInput{Barcode: "9876543210987", Quantity: 3},
	)

	require.Len(t, order.Items, 2)
	assert.Equal(t, "Milk", order.Items[0].Name)
	assert.Equal(t, 1.50, order.Items[0].Price)
	assert.Equal(t, 4.50, order.Items[0].Subtotal)
	assert.Equal(t, 0.30, order.Items[1].Subtotal)
	assert.Equal(t, 4.80, order.Total)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Equal(t, "Asha", order.UserName)
	assert.Equal(t, "+919876543210", order.UserPhone)
	assert.Regexp(t, `^ORD-[0-9A-Z]+-[0-9A-Z]+$`, order.OrderNumber)
	assert.Equal(t, []string{services.EventOrderCreated}, f.publisher.keys())
}

func TestOrderService_ItemPriceIsSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	order := f.place(t, f.customer, services.OrderLineInput{Barcode: "1234567890123", Quantity: 3})

	newPrice := 2.00
	_, err := f.products.Update(ctx, "1234567890123", services.UpdateProductInput{Price: &newPrice})
	require.NoError(t, err)

	stored, err := f.svc.GetOrder(ctx, f.customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.50, stored.Items[0].Price)
	assert.Equal(t, 4.50, stored.Total)

	next := f.place(t, f.customer, services.OrderLineInput{Barcode: "1234567890123", Quantity: 3})
	assert.Equal(t, 6.00, next.Total)
}

func TestOrderService_CreateOrderRejectsUnknownOrInactive(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	require.NoError(t, f.products.SoftDelete(ctx, "9876543210987"))

	_, err := f.svc.CreateOrder(ctx, f.customer, services.CreateOrderInput{Items: []services.OrderLineInput{
		{Barcode: "1234567890123", Quantity: 1},
		{Barcode: "0000000000000", Quantity: 1},
	}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.CreateOrder(ctx, f.customer, services.CreateOrderInput{Items: []services.OrderLineInput{
		{Barcode: "9876543210987", Quantity: 1},
	}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// nothing was saved
	_, page, err := f.svc.ListMyOrders(ctx, f.customer, services.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Total)
	assert.Empty(t, f.publisher.keys())
}

func TestOrderService_CreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)

	tests := []struct {
		name  string
		input services.CreateOrderInput
	}{
		{"no items", services.CreateOrderInput{}},
		{"zero quantity", services.CreateOrderInput{Items: []services.OrderLineInput{{Barcode: "1234567890123", Quantity: 0}}}},
		{"quantity too large", services.CreateOrderInput{Items: []services.OrderLineInput{{Barcode: "1234567890123", Quantity: 1001}}}},
		{"short barcode", services.CreateOrderInput{Items: []services.OrderLineInput{{Barcode: "123", Quantity: 1}}}},
		{"too many items", services.CreateOrderInput{Items: make([]services.OrderLineInput, 101)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(ctx, f.customer, tt.input)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestOrderService_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newOrderFixture(t)
	f.publisher.err = assert.AnError

	order := f.place(t, f.customer, services.OrderLineInput{Barcode: "1234567890123", Quantity: 1})
	assert.NotEmpty(t, order.ID)
}

func TestOrderService_GetOrderIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	order := f.place(t, f.customer, services.OrderLineInput{Barcode: "1234567890123", Quantity: 1})

	_, err := f.svc.GetOrder(ctx, f.other, order.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := f.svc.GetOrder(ctx, f.staff, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)
}

func TestOrderService_CancelOrder(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)

	tests := []struct {
		status  models.OrderStatus
		allowed bool
	}{
		{models.StatusPending, true},
		{models.StatusProcessing, true},
		{models.StatusRefunded, true},
		{models.StatusCompleted, false},
		{models.StatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			order := f.place(t, f.customer, services.OrderLineInput{Barcode: "1234567890123", Quantity: 1})
			paid := models.PaymentPaid
			_, err := f.svc.UpdateStatus(ctx, order.ID, services.UpdateStatusInput{Status: tt.status, PaymentStatus: &paid})
			require.NoError(t, err)

			cancelled, err := f.svc.CancelOrder(ctx, f.customer, order.ID)
			if !tt.allowed {
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.StatusCancelled, cancelled.Status)
			assert.Equal(t, models.PaymentPaid, cancelled.PaymentStatus, "payment status is untouched")
		})
	}
}

func TestOrderService_CancelOrderOwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	order := f.place(t, f.customer, services.OrderLineInput{Barcode: "1234567890123", Quantity: 1})

	_, err := f.svc.CancelOrder(ctx, f.other, order.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.CancelOrder(ctx, f.customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{services.EventOrderCreated, services.EventOrderCancelled}, f.publisher.keys())
}

func TestOrderService_UpdateStatusValidation(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	order := f.place(t, f.customer, services.OrderLineInput{Barcode: "1234567890123", Quantity: 1})

	_, err := f.svc.UpdateStatus(ctx, order.ID, services.UpdateStatusInput{Status: "shipped"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	bogus := models.PaymentStatus("maybe")
	_, err = f.svc.UpdateStatus(ctx, order.ID, services.UpdateStatusInput{Status: models.StatusProcessing, PaymentStatus: &bogus})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.UpdateStatus(ctx, "missing", services.UpdateStatusInput{Status: models.StatusProcessing})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	updated, err := f.svc.UpdateStatus(ctx, order.ID, services.UpdateStatusInput{Status: models.StatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, updated.Status)
	assert.Equal(t, models.PaymentPending, updated.PaymentStatus)
	assert.Len(t, updated.Items, 1)
}

func TestOrderService_ListsAndStats(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	f.place(t, f.customer, services.OrderLineInput{Barcode: "1234567890123", Quantity: 1})
	latest := f.place(t, f.customer, services.OrderLineInput{Barcode: "1234567890123", Quantity: 2})
	theirs := f.place(t, f.other, services.OrderLineInput{Barcode: "9876543210987", Quantity: 5})

	mine, page, err := f.svc.ListMyOrders(ctx, f.customer, services.Pagination{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, mine, 1)
	assert.Equal(t, latest.ID, mine[0].ID)

	_, err = f.svc.CancelOrder(ctx, f.other, theirs.ID)
	require.NoError(t, err)

	cancelled, page, err := f.svc.ListAll(ctx, models.StatusCancelled, services.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, theirs.ID, cancelled[0].ID)

	_, _, err = f.svc.ListAll(ctx, "lost", services.Pagination{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalOrders)
	assert.EqualValues(t, 2, stats.ByStatus[models.StatusPending])
	assert.EqualValues(t, 1, stats.ByStatus[models.StatusCancelled])
	assert.EqualValues(t, 3, stats.OrdersToday)
}
