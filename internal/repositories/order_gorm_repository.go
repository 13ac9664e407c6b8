package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Create inserts the order and its items. A duplicate order number yields Conflict.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	err := r.db.WithContext(ctx).Create(order).Error
	return translate(err, "", fmt.Sprintf("order number %s already exists", order.OrderNumber))
}

func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, fmt.Sprintf("order with ID %s not found", id), "")
	}
	return &order, nil
}

func (r *GORMOrderRepository) GetByPaymentOrderID(ctx context.Context, paymentOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, "payment_order_id = ?", paymentOrderID).Error
	if err != nil {
		return nil, translate(err, "order not found for payment", "")
	}
	return &order, nil
}

func (r *GORMOrderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal("failed to count orders", err)
	}

	var orders []models.Order
	err := q.Preload("Items").Order("created_at DESC").Offset(filter.Offset).Limit(filter.Limit).Find(&orders).Error
	if err != nil {
		return nil, 0, apperr.Internal("failed to list orders", err)
	}
	return orders, total, nil
}

func (r *GORMOrderRepository) Update(ctx context.Context, id string, update OrderUpdate) error {
	fields := map[string]any{}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if update.PaymentStatus != nil {
		fields["payment_status"] = *update.PaymentStatus
	}
	if update.PaymentOrderID != nil {
		fields["payment_order_id"] = *update.PaymentOrderID
	}
	if update.PaymentID != nil {
		fields["payment_id"] = *update.PaymentID
	}
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return apperr.Internal("failed to update order", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(fmt.Sprintf("order with ID %s not found for update", id))
	}
	return nil
}

type groupCount struct {
	Bucket string
	Count  int64
}

func (r *GORMOrderRepository) Stats(ctx context.Context, since time.Time) (*models.OrderStats, error) {
	db := r.db.WithContext(ctx).Model(&models.Order{})
	stats := &models.OrderStats{
		ByStatus:        map[models.OrderStatus]int64{},
		ByPaymentStatus: map[models.PaymentStatus]int64{},
	}

	if err := db.Count(&stats.TotalOrders).Error; err != nil {
		return nil, apperr.Internal("failed to count orders", err)
	}

	var byStatus []groupCount
	if err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("status AS bucket, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, apperr.Internal("failed to aggregate order status", err)
	}
	for _, g := range byStatus {
		stats.ByStatus[models.OrderStatus(g.Bucket)] = g.Count
	}

	var byPayment []groupCount
	if err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("payment_status AS bucket, COUNT(*) AS count").Group("payment_status").Scan(&byPayment).Error; err != nil {
		return nil, apperr.Internal("failed to aggregate payment status", err)
	}
	for _, g := range byPayment {
		stats.ByPaymentStatus[models.PaymentStatus(g.Bucket)] = g.Count
	}

	var revenue struct{ Sum float64 }
	if err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("COALESCE(SUM(total), 0) AS sum").
		Where("payment_status = ?", models.PaymentPaid).Scan(&revenue).Error; err != nil {
		return nil, apperr.Internal("failed to sum revenue", err)
	}
	stats.Revenue = revenue.Sum

	if err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("created_at >= ?", since).Count(&stats.OrdersToday).Error; err != nil {
		return nil, apperr.Internal("failed to count today's orders", err)
	}
	return stats, nil
}
