package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfcheckout/internal/database"
	"selfcheckout/internal/logging"
	"selfcheckout/internal/payment"
	"selfcheckout/internal/repositories"
	"selfcheckout/internal/server"
	"selfcheckout/internal/services"
)

const (
	testJWTSecret   = "test_jwt_secret"
	testKeyID       = "rzp_test_key"
	testKeySecret   = "rzp_test_secret"
	adminEmail      = "admin@store.test"
	adminPassword   = "admin-password"
	customerPhone   = "+919876543210"
	otherPhone      = "+919876500000"
	scannedBarcode  = "1234567890123"
	providerOrderID = "order_Test123"
)

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Data       json.RawMessage `json:"data"`
	Pagination json.RawMessage `json:"pagination"`
}

type testApp struct {
	app *fiber.App
	t   *testing.T
}

// setupApp builds the full application over an in-memory SQLite database and a fake
// payment provider.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	log := logging.Discard()

	db, err := database.Open("sqlite:file:"+uuid.NewString()+"?mode=memory&cache=shared", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	var created map[string]any
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			if created == nil || r.URL.Path != "/v1/orders/"+providerOrderID {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`))
				return
			}
			_ = json.NewEncoder(w).Encode(created)
			return
		}
		var req payment.OrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		created = map[string]any{
			"id":       providerOrderID,
			"amount":   req.Amount,
			"currency": req.Currency,
			"receipt":  req.Receipt,
			"status":   "created",
		}
		_ = json.NewEncoder(w).Encode(created)
	}))
	t.Cleanup(provider.Close)

	productRepo := repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, nil, log)
	authService := services.NewAuthService(userRepo, services.AuthOptions{
		JWTSecret:   testJWTSecret,
		FrontendURL: "http://localhost:3000",
		ExposeOTP:   true,
	}, log)
	paymentService := services.NewPaymentService(
		payment.NewRazorpayGateway(testKeyID, testKeySecret, provider.URL),
		orderService,
		services.PaymentOptions{KeyID: testKeyID, KeySecret: testKeySecret, DefaultCurrency: "INR"},
		log,
	)
	require.NoError(t, authService.EnsureAdmin(context.Background(), adminEmail, adminPassword))

	app := server.New(server.Deps{
		Products:    productService,
		Orders:      orderService,
		Auth:        authService,
		Payments:    paymentService,
		Log:         log,
		FrontendURL: "http://localhost:3000",
	})
	return &testApp{app: app, t: t}
}

func (a *testApp) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	if len(raw) > 0 && resp.Header.Get("Content-Type") == fiber.MIMEApplicationJSON {
		require.NoError(a.t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (a *testApp) adminToken() string {
	status, env := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": adminEmail, "password": adminPassword,
	})
	require.Equal(a.t, http.StatusOK, status, env.Error)
	return decodeData[services.AuthResult](a.t, env).Token
}

func (a *testApp) customerToken(phone string) string {
	status, env := a.do(http.MethodPost, "/api/auth/phone/send-otp", "", map[string]string{"phoneNumber": phone})
	require.Equal(a.t, http.StatusOK, status, env.Error)
	otp := decodeData[services.OTPResult](a.t, env).Code
	require.Len(a.t, otp, 6)

	status, env = a.do(http.MethodPost, "/api/auth/phone/verify-otp", "", map[string]string{
		"phoneNumber": phone, "otp": otp,
	})
	require.Equal(a.t, http.StatusOK, status, env.Error)
	return decodeData[services.AuthResult](a.t, env).Token
}

func (a *testApp) createProduct(token, barcode string, price float64) {
	status, env := a.do(http.MethodPost, "/api/products", token, map[string]any{
		"barcode": barcode, "name": "Item " + barcode, "price": price, "stock": 10,
	})
	require.Equal(a.t, http.StatusCreated, status, env.Error)
}

type orderView struct {
	ID             string  `json:"id"`
	OrderNumber    string  `json:"orderNumber"`
	Total          float64 `json:"total"`
	Status         string  `json:"status"`
	PaymentStatus  string  `json:"paymentStatus"`
	PaymentOrderID string  `json:"paymentOrderId"`
	PaymentID      string  `json:"paymentId"`
	Items          []struct {
		Barcode  string  `json:"barcode"`
		Price    float64 `json:"price"`
		Quantity int     `json:"quantity"`
		Subtotal float64 `json:"subtotal"`
	} `json:"items"`
}

func TestHealth(t *testing.T) {
	a := setupApp(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestScanToPaidOrder(t *testing.T) {
	a := setupApp(t)
	admin := a.adminToken()
	a.createProduct(admin, scannedBarcode, 1.50)
	customer := a.customerToken(customerPhone)

	status, env := a.do(http.MethodGet, "/api/scan/"+scannedBarcode, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.50, decodeData[map[string]any](t, env)["price"])

	status, env = a.do(http.MethodPost, "/api/orders", customer, map[string]any{
		"items": []map[string]any{{"barcode": scannedBarcode, "quantity": 3, "price": 0.01}},
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	order := decodeData[orderView](t, env)
	assert.Equal(t, 4.50, order.Total)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1.50, order.Items[0].Price)
	assert.Equal(t, 4.50, order.Items[0].Subtotal)
	assert.Equal(t, "pending", order.Status)
	assert.Regexp(t, `^ORD-[0-9A-Z]+-[0-9A-Z]+$`, order.OrderNumber)

	status, env = a.do(http.MethodPost, "/api/payments/create-order", "", map[string]any{
		"amount": 4.50, "orderId": order.ID,
	})
	require.Equal(t, http.StatusOK, status, env.Error)
	intent := decodeData[services.PaymentIntent](t, env)
	assert.Equal(t, int64(450), intent.Amount)
	assert.Equal(t, "INR", intent.Currency)
	assert.Equal(t, testKeyID, intent.KeyID)

	// retrying checkout hands back the same provider order
	status, env = a.do(http.MethodPost, "/api/payments/create-order", "", map[string]any{
		"amount": 4.50, "orderId": order.ID,
	})
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, intent.ID, decodeData[services.PaymentIntent](t, env).ID)

	status, env = a.do(http.MethodPost, "/api/payments/verify-payment", "", map[string]string{
		"razorpay_order_id":   providerOrderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "deadbeef",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Payment verification failed", env.Error)

	status, env = a.do(http.MethodPost, "/api/payments/verify-payment", "", map[string]string{
		"razorpay_order_id":   providerOrderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  payment.Signature(testKeySecret, providerOrderID, "pay_1"),
	})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = a.do(http.MethodGet, "/api/orders/"+order.ID, customer, nil)
	require.Equal(t, http.StatusOK, status)
	paid := decodeData[orderView](t, env)
	assert.Equal(t, "paid", paid.PaymentStatus)
	assert.Equal(t, "pay_1", paid.PaymentID)
	assert.Equal(t, providerOrderID, paid.PaymentOrderID)

	status, env = a.do(http.MethodPost, "/api/payments/create-order", "", map[string]any{
		"amount": 4.50, "orderId": order.ID,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "already paid")
}

func TestOrderForUnknownBarcode(t *testing.T) {
	a := setupApp(t)
	customer := a.customerToken(customerPhone)

	status, env := a.do(http.MethodPost, "/api/orders", customer, map[string]any{
		"items": []map[string]any{{"barcode": "0000000000000", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)

	status, _ = a.do(http.MethodPost, "/api/orders", customer, map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSoftDeleteHidesProduct(t *testing.T) {
	a := setupApp(t)
	admin := a.adminToken()
	a.createProduct(admin, scannedBarcode, 1.50)

	status, env := a.do(http.MethodGet, "/api/products/"+scannedBarcode, "", nil)
	require.Equal(t, http.StatusOK, status)
	id := decodeData[map[string]any](t, env)["id"].(string)

	status, _ = a.do(http.MethodDelete, "/api/products/"+scannedBarcode, admin, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = a.do(http.MethodGet, "/api/scan/"+scannedBarcode, "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = a.do(http.MethodGet, "/api/products/id/"+id, admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, decodeData[map[string]any](t, env)["isActive"])

	status, env = a.do(http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decodeData[[]map[string]any](t, env))

	status, _ = a.do(http.MethodPost, "/api/products", admin, map[string]any{
		"barcode": scannedBarcode, "name": "Again", "price": 1,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCatalogRequiresStaff(t *testing.T) {
	a := setupApp(t)
	customer := a.customerToken(customerPhone)
	body := map[string]any{"barcode": scannedBarcode, "name": "Milk", "price": 1.5}

	status, _ := a.do(http.MethodPost, "/api/products", "", body)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := a.do(http.MethodPost, "/api/products", customer, body)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "You do not have permission to perform this action", env.Error)

	status, _ = a.do(http.MethodGet, "/api/orders/all", customer, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = a.do(http.MethodGet, "/api/orders/my-orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCancelRules(t *testing.T) {
	a := setupApp(t)
	admin := a.adminToken()
	a.createProduct(admin, scannedBarcode, 1.50)
	owner := a.customerToken(customerPhone)
	other := a.customerToken(otherPhone)

	place := func() orderView {
		status, env := a.do(http.MethodPost, "/api/orders", owner, map[string]any{
			"items": []map[string]any{{"barcode": scannedBarcode, "quantity": 1}},
		})
		require.Equal(t, http.StatusCreated, status, env.Error)
		return decodeData[orderView](t, env)
	}

	order := place()
	status, _ := a.do(http.MethodGet, "/api/orders/"+order.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = a.do(http.MethodPut, "/api/orders/"+order.ID+"/cancel", other, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env := a.do(http.MethodPut, "/api/orders/"+order.ID+"/cancel", owner, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, "cancelled", decodeData[orderView](t, env).Status)

	status, _ = a.do(http.MethodPut, "/api/orders/"+order.ID+"/cancel", owner, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	completed := place()
	status, env = a.do(http.MethodPut, "/api/orders/"+completed.ID+"/status", admin, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, status, env.Error)
	status, _ = a.do(http.MethodPut, "/api/orders/"+completed.ID+"/cancel", owner, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(http.MethodPut, "/api/orders/"+completed.ID+"/status", admin, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = a.do(http.MethodGet, "/api/orders/my-orders", owner, nil)
	require.Equal(t, http.StatusOK, status)
	mine := decodeData[[]orderView](t, env)
	require.Len(t, mine, 2)
	assert.Equal(t, completed.ID, mine[0].ID)

	status, env = a.do(http.MethodGet, "/api/orders/stats", admin, nil)
	require.Equal(t, http.StatusOK, status)
	stats := decodeData[map[string]any](t, env)
	assert.Equal(t, float64(2), stats["totalOrders"])
}

func TestProfileFlow(t *testing.T) {
	a := setupApp(t)
	token := a.customerToken(customerPhone)

	status, env := a.do(http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decodeData[map[string]any](t, env)["isNewUser"])

	status, env = a.do(http.MethodPost, "/api/auth/complete-registration", token, map[string]string{
		"name": "Asha", "email": "asha@example.com",
	})
	require.Equal(t, http.StatusOK, status, env.Error)
	profile := decodeData[map[string]any](t, env)
	assert.Equal(t, false, profile["isNewUser"])
	assert.Equal(t, "asha@example.com", profile["email"])

	status, env = a.do(http.MethodPut, "/api/auth/profile", token, map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", env.Error)

	status, env = a.do(http.MethodPost, "/api/auth/phone/verify-otp", "", map[string]string{
		"phoneNumber": customerPhone, "otp": "000000",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid or expired OTP", env.Error)
}

func TestProductExport(t *testing.T) {
	a := setupApp(t)
	admin := a.adminToken()
	a.createProduct(admin, scannedBarcode, 1.50)

	req := httptest.NewRequest(http.MethodGet, "/api/products/export", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "products-")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")))
}
