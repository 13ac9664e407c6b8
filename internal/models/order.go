package models

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
)

// OrderStatuses lists every fulfilment state.
var OrderStatuses = []OrderStatus{StatusPending, StatusProcessing, StatusCompleted, StatusCancelled, StatusRefunded}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in this state may be cancelled by its owner.
// Completed orders cannot be reversed this way.
func (s OrderStatus) Cancellable() bool {
	return s != StatusCompleted && s != StatusCancelled
}

// PaymentStatus is independent of OrderStatus.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}

func (s PaymentStatus) Valid() bool {
	for _, v := range PaymentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// OrderItem is a denormalized snapshot of a product at order time.
type OrderItem struct {
	BaseModel
	OrderID  string  `json:"-" gorm:"type:varchar(36);index;not null"`
	Barcode  string  `json:"barcode" gorm:"type:varchar(20);not null"`
	Name     string  `json:"name" gorm:"not null"`
	Price    float64 `json:"price" gorm:"not null"`
	Quantity int     `json:"quantity" gorm:"not null"`
	Subtotal float64 `json:"subtotal" gorm:"not null"`
}

// DeliveryAddress is stored as JSON on the order row.
type DeliveryAddress struct {
	Street     string `json:"street,omitempty" validate:"omitempty,max=200"`
	City       string `json:"city,omitempty" validate:"omitempty,max=100"`
	State      string `json:"state,omitempty" validate:"omitempty,max=100"`
	PostalCode string `json:"postalCode,omitempty" validate:"omitempty,max=20"`
}

// Order is owned by the user who placed it.
type Order struct {
	BaseModel
	OrderNumber     string           `json:"orderNumber" gorm:"uniqueIndex;type:varchar(40);not null"`
	UserID          string           `json:"userId" gorm:"type:varchar(36);index;not null"`
	UserName        string           `json:"userName"`
	UserPhone       string           `json:"userPhone"`
	Items           []OrderItem      `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Total           float64          `json:"total" gorm:"not null"`
	Status          OrderStatus      `json:"status" gorm:"type:varchar(20);not null;default:pending;index"`
	PaymentStatus   PaymentStatus    `json:"paymentStatus" gorm:"type:varchar(20);not null;default:pending;index"`
	PaymentOrderID  string           `json:"paymentOrderId,omitempty" gorm:"type:varchar(64);index"`
	PaymentID       string           `json:"paymentId,omitempty" gorm:"type:varchar(64)"`
	DeliveryAddress *DeliveryAddress `json:"deliveryAddress,omitempty" gorm:"serializer:json"`
	Notes           string           `json:"notes,omitempty" gorm:"type:varchar(500)"`
}

// OrderStats aggregates the order table for the admin dashboard.
type OrderStats struct {
	TotalOrders     int64                   `json:"totalOrders"`
	ByStatus        map[OrderStatus]int64   `json:"byStatus"`
	ByPaymentStatus map[PaymentStatus]int64 `json:"byPaymentStatus"`
	// Revenue sums the totals of paid orders.
	Revenue     float64 `json:"revenue"`
	OrdersToday int64   `json:"ordersToday"`
}
