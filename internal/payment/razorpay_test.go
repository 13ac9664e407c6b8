package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "secret", pass)

		var req OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 45000, req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "ORD-1", req.Notes["orderNumber"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Order{ID: "order_123", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"})
	}))
	defer srv.Close()

	gw := NewRazorpayGateway("rzp_test_key", "secret", srv.URL)
	order, err := gw.CreateOrder(context.Background(), OrderRequest{
		Amount: 45000, Currency: "INR", Receipt: "r1", Notes: map[string]string{"orderNumber": "ORD-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_123", order.ID)
	assert.EqualValues(t, 45000, order.Amount)
	assert.Equal(t, "created", order.Status)
	assert.Equal(t, "r1", order.Receipt)
}

func TestFetchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/orders/order_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_123","amount":450,"currency":"INR","receipt":"r1","status":"attempted"}`))
	}))
	defer srv.Close()

	gw := NewRazorpayGateway("k", "s", srv.URL)
	order, err := gw.FetchOrder(context.Background(), "order_123")
	require.NoError(t, err)
	assert.Equal(t, "order_123", order.ID)
	assert.EqualValues(t, 450, order.Amount)
	assert.Equal(t, "attempted", order.Status)
}

func TestCreateOrderProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`))
	}))
	defer srv.Close()

	gw := NewRazorpayGateway("k", "s", srv.URL)
	_, err := gw.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR"})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Description, "The amount must be atleast INR 1.00")
}

func TestCreateOrderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRazorpayGateway("k", "s", "http://127.0.0.1:1").CreateOrder(ctx, OrderRequest{Amount: 100, Currency: "INR"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifySignature(t *testing.T) {
	sig := Signature("secret", "order_abc", "pay_xyz")
	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature("secret", "order_abc", "pay_xyz", sig))

	// any single-character change fails
	for i := range sig {
		mutated := []byte(sig)
		if mutated[i] == '0' {
			mutated[i] = '1'
		} else {
			mutated[i] = '0'
		}
		assert.False(t, VerifySignature("secret", "order_abc", "pay_xyz", string(mutated)), "position %d", i)
	}

	assert.False(t, VerifySignature("other", "order_abc", "pay_xyz", sig))
	assert.False(t, VerifySignature("secret", "order_abc", "pay_other", sig))
	assert.False(t, VerifySignature("secret", "order_abc", "pay_xyz", ""))
}
