// Package payment talks to the Razorpay orders API and verifies checkout callbacks.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// OrderRequest is the body of a create-order call. Amount is in minor units.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the provider's order object.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// ProviderError is a failed call to the provider.
type ProviderError struct {
	Op          string
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("razorpay %s: %s", e.Op, e.Description)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RazorpayGateway wraps the Razorpay SDK client.
type RazorpayGateway struct {
	client *razorpay.Client
}

// NewRazorpayGateway creates a gateway. An empty baseURL means the live API.
func NewRazorpayGateway(keyID, keySecret, baseURL string) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	if baseURL != "" {
		client.Request.BaseURL = baseURL
	}
	return &RazorpayGateway{client: client}
}

// CreateOrder registers an order with the provider. No retries are attempted.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
	}
	if req.Receipt != "" {
		data["receipt"] = req.Receipt
	}
	if len(req.Notes) > 0 {
		data["notes"] = req.Notes
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, &ProviderError{Op: "create order", Description: err.Error(), Err: err}
	}
	return orderFromBody(body)
}

// FetchOrder returns an existing provider order.
func (g *RazorpayGateway) FetchOrder(ctx context.Context, id string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := g.client.Order.Fetch(id, nil, nil)
	if err != nil {
		return nil, &ProviderError{Op: "fetch order", Description: err.Error(), Err: err}
	}
	return orderFromBody(body)
}

func orderFromBody(body map[string]interface{}) (*Order, error) {
	order := &Order{
		ID:       str(body["id"]),
		Currency: str(body["currency"]),
		Receipt:  str(body["receipt"]),
		Status:   str(body["status"]),
	}
	if amount, ok := body["amount"].(float64); ok {
		order.Amount = int64(amount)
	}
	if order.ID == "" {
		return nil, &ProviderError{Op: "decode order", Description: "response has no order id"}
	}
	return order, nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// Signature returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID)), the signature
// the checkout widget posts back after a successful payment.
func Signature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is exactly the expected callback signature.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	if signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, secret)
}
