package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/models"
	"selfcheckout/internal/repositories"
)

func TestMockProductRepository_BarcodeIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockProductRepository()

	require.NoError(t, repo.Create(ctx, &models.Product{Barcode: "12345678", Name: "Tea", Price: 3, IsActive: true}))
	err := repo.Create(ctx, &models.Product{Barcode: "12345678", Name: "Coffee", Price: 4, IsActive: true})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestMockUserRepository_Collisions(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockUserRepository()

	require.NoError(t, repo.Create(ctx, &models.User{Email: ptr("a@example.com"), IsActive: true}))
	err := repo.Create(ctx, &models.User{Email: ptr("a@example.com"), IsActive: true})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	u, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, u.Role)
}

func TestMockOrderRepository_IsolatesCopies(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockOrderRepository()

	order := newOrder("user-1", 2)
	require.NoError(t, repo.Create(ctx, order))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	got.Items[0].Quantity = 99

	again, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
}

func TestMockOrderRepository_Stats(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockOrderRepository()

	a := newOrder("user-1", 1.10)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, newOrder("user-2", 2.20)))
	paid := models.PaymentPaid
	require.NoError(t, repo.Update(ctx, a.ID, repositories.OrderUpdate{PaymentStatus: &paid}))

	stats, err := repo.Stats(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalOrders)
	assert.Equal(t, 1.10, stats.Revenue)
	assert.Zero(t, stats.OrdersToday)
}
