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
	"selfcheckout/internal/payment"
)

// PaymentGateway creates and looks up orders with the payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error)
	FetchOrder(ctx context.Context, id string) (*payment.Order, error)
}

// PaymentOptions holds the provider credentials.
type PaymentOptions struct {
	KeyID           string
	KeySecret       string
	DefaultCurrency string
}

// PaymentService creates payment intents and verifies checkout callbacks.
type PaymentService struct {
	gateway  PaymentGateway
	orders   *OrderService
	keyID    string
	secret   string
	currency string
	log      *logging.Logger
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService. orders may be nil, in which case
// payments are not linked to orders.
func NewPaymentService(gateway PaymentGateway, orders *OrderService, opts PaymentOptions, log *logging.Logger) *PaymentService {
	currency := strings.ToUpper(opts.DefaultCurrency)
	if currency == "" {
		currency = "INR"
	}
	return &PaymentService{
		gateway:  gateway,
		orders:   orders,
		keyID:    opts.KeyID,
		secret:   opts.KeySecret,
		currency: currency,
		log:      log,
		now:      time.Now,
	}
}

// CreatePaymentIntentInput is the create-order payload. Amount is in currency units.
type CreatePaymentIntentInput struct {
	Amount   float64           `json:"amount" validate:"gt=0"`
	Currency string            `json:"currency" validate:"omitempty,len=3,alpha"`
	Receipt  string            `json:"receipt" validate:"max=40"`
	Notes    map[string]string `json:"notes"`
	OrderID  string            `json:"orderId"`
}

// PaymentIntent echoes the provider order.
type PaymentIntent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
	KeyID    string `json:"keyId"`
}

// VerifyPaymentInput carries the checkout callback fields.
type VerifyPaymentInput struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

// VerifyResult reports a successful verification.
type VerifyResult struct {
	Verified  bool          `json:"verified"`
	OrderID   string        `json:"orderId"`
	PaymentID string        `json:"paymentId"`
	Order     *models.Order `json:"order,omitempty"`
}

// configured reports whether both credentials are set to real values.
func (s *PaymentService) configured() bool {
	return !isPlaceholder(s.keyID) && !isPlaceholder(s.secret)
}

func isPlaceholder(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "" ||
		strings.HasPrefix(v, "your_") ||
		strings.Contains(v, "placeholder") ||
		v == "changeme"
}

// ToMinorUnits converts a currency amount to the provider's integer minor units,
// rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CreatePaymentIntent registers an order with the payment provider. When OrderID names an
// existing order, the amount must match its total and the provider order id is stored on it.
// An unpaid order that already has a provider order gets that same provider order back.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, in CreatePaymentIntentInput) (*PaymentIntent, error) {
	if !s.configured() {
		return nil, apperr.Configuration("Payment provider credentials are not configured")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = s.currency
	}
	receipt := in.Receipt
	if receipt == "" {
		receipt = fmt.Sprintf("receipt_%d", s.now().UnixMilli())
	}
	notes := in.Notes

	if in.OrderID != "" && s.orders != nil {
		order, err := s.orders.CheckPayable(ctx, in.OrderID, in.Amount)
		if err != nil {
			return nil, err
		}
		if order.PaymentOrderID != "" {
			existing, err := s.gateway.FetchOrder(ctx, order.PaymentOrderID)
			if err != nil {
				return nil, providerFailure("Failed to fetch payment order", err)
			}
			s.log.Infof("reusing payment order %s for order %s", existing.ID, order.OrderNumber)
			return s.intentFrom(existing), nil
		}
		notes = copyNotes(notes)
		notes["orderNumber"] = order.OrderNumber
	}

	created, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   ToMinorUnits(in.Amount),
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, providerFailure("Failed to create payment order", err)
	}

	if in.OrderID != "" && s.orders != nil {
		if err := s.orders.AttachPaymentOrder(ctx, in.OrderID, created.ID); err != nil {
			return nil, err
		}
	}

	s.log.Infof("payment order %s created for %d %s", created.ID, created.Amount, created.Currency)
	return s.intentFrom(created), nil
}

func (s *PaymentService) intentFrom(o *payment.Order) *PaymentIntent {
	return &PaymentIntent{
		ID:       o.ID,
		Amount:   o.Amount,
		Currency: o.Currency,
		Receipt:  o.Receipt,
		Status:   o.Status,
		KeyID:    s.keyID,
	}
}

func providerFailure(message string, err error) error {
	var perr *payment.ProviderError
	if errors.As(err, &perr) && perr.Description != "" {
		return apperr.Internal(message+": "+perr.Description, err)
	}
	return apperr.Internal(message, err)
}

func copyNotes(notes map[string]string) map[string]string {
	out := make(map[string]string, len(notes)+1)
	for k, v := range notes {
		out[k] = v
	}
	return out
}

// VerifyCallback checks the callback signature. On success the linked order, if any,
// is marked paid.
func (s *PaymentService) VerifyCallback(ctx context.Context, in VerifyPaymentInput) (*VerifyResult, error) {
	if !s.configured() {
		return nil, apperr.Configuration("Payment provider credentials are not configured")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if !payment.VerifySignature(s.secret, in.OrderID, in.PaymentID, in.Signature) {
		s.log.Warnf("payment signature mismatch for provider order %s", in.OrderID)
		return nil, apperr.Validation("Payment verification failed")
	}

	result := &VerifyResult{Verified: true, OrderID: in.OrderID, PaymentID: in.PaymentID}
	if s.orders == nil {
		return result, nil
	}
	order, err := s.orders.MarkPaid(ctx, in.OrderID, in.PaymentID)
	switch {
	case err == nil:
		result.Order = order
	case errors.Is(err, apperr.ErrNotFound):
		s.log.Debugf("verified payment %s is not linked to an order", in.PaymentID)
	default:
		return nil, err
	}
	return result, nil
}
