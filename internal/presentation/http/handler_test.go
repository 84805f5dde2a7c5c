package httppresentation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcheckout "github.com/minimart/checkout/internal/application/checkout"
	apporder "github.com/minimart/checkout/internal/application/order"
	"github.com/minimart/checkout/internal/domain/catalog"
	domain "github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/payment"
	"github.com/minimart/checkout/internal/infrastructure/gateway"
	"github.com/minimart/checkout/internal/infrastructure/id"
	"github.com/minimart/checkout/internal/infrastructure/memory"
	"github.com/minimart/checkout/internal/pkg/faults"
)

// fakeWalletAdapter stands in for a redirect wallet provider.
type fakeWalletAdapter struct {
	method    domain.Method
	verifyErr error
}

func (f *fakeWalletAdapter) Method() domain.Method { return f.method }

func (f *fakeWalletAdapter) Initiate(_ context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error) {
	return &payment.InitiateResult{
		ProviderTxnID: "pay-" + req.OrderID,
		PaymentURL:    "https://wallet.example/pay/" + req.OrderID,
	}, nil
}

func (f *fakeWalletAdapter) Verify(_ context.Context, req payment.VerifyRequest) (*payment.VerifyResult, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &payment.VerifyResult{Method: f.method}, nil
}

func (f *fakeWalletAdapter) CallbackRef(data map[string]string) (string, string, error) {
	orderID, txnID := data["order_id"], data["payment_id"]
	if orderID == "" || txnID == "" {
		return "", "", faults.New(faults.KindValidation, "callback missing order_id or payment_id")
	}
	return orderID, txnID, nil
}

type stack struct {
	handler  http.Handler
	sessions *memory.SessionStore
	ledger   *memory.Ledger
	wallet   *fakeWalletAdapter
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	ledger := memory.NewLedger()
	cat := memory.NewProductCatalog(ledger)
	require.NoError(t, cat.Seed(ctx, catalog.Product{ID: "P1", Name: "Canvas Tote", Price: 5000, Active: true}, 10))

	sessions := memory.NewSessionStore()
	orders := memory.NewOrderStore(ledger)
	committer := apporder.NewCommitter(orders, sessions, nil, nil)

	wallet := &fakeWalletAdapter{method: domain.MethodWalletA}
	gw := gateway.NewManager(nil, gateway.NewCODGateway(), wallet)

	svc := appcheckout.NewService(cat, gw, sessions, committer, id.NewUUIDGenerator(),
		appcheckout.Pricing{Currency: "USD", TaxBps: 800, ShippingFee: 500}, 15*time.Minute, nil)

	h := NewHandler(svc, orders, Redirects{
		SuccessURL: "/checkout/success",
		FailureURL: "/checkout/failure",
	}, nil)
	return &stack{handler: h.Router(), sessions: sessions, ledger: ledger, wallet: wallet}
}

func (s *stack) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestInitiateCODEndToEnd(t *testing.T) {
	s := newStack(t)

	// Client-side prices in the payload are ignored, not rejected.
	rec := s.do(t, http.MethodPost, "/checkout/initiate", `{
		"method": "cod",
		"guestEmail": "shopper@example.com",
		"items": [{"productId": "P1", "quantity": 2, "price": 1}],
		"total": 2
	}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(11300), body["amount"])
	assert.Equal(t, true, body["orderCreated"])
	assert.NotEmpty(t, body["orderId"])
	assert.NotEmpty(t, body["providerTransactionId"])

	onHand, _ := s.ledger.OnHand(context.Background(), "P1")
	assert.Equal(t, 8, onHand)

	// The committed order is readable.
	rec = s.do(t, http.MethodGet, "/orders/"+body["orderId"].(string), "")
	require.Equal(t, http.StatusOK, rec.Code)
	order := decodeBody(t, rec)
	assert.Equal(t, "PENDING", order["status"])
	assert.Equal(t, float64(11300), order["total"])
}

func TestInitiateValidationErrors(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/checkout/initiate", `{"method":"bitcoin","items":[{"productId":"P1","quantity":1}],"userId":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])

	rec = s.do(t, http.MethodPost, "/checkout/initiate", `{"method":"cod","items":[],"userId":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/checkout/initiate", `{"method":"cod","items":[{"productId":"P1","quantity":99}],"userId":"u1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/checkout/initiate", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEndToEnd(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/checkout/initiate", `{"method":"walletA","items":[{"productId":"P1","quantity":1}],"userId":"u1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	initBody := decodeBody(t, rec)
	orderID := initBody["orderId"].(string)
	txnID := initBody["providerTransactionId"].(string)
	require.NotEmpty(t, initBody["paymentUrl"])

	rec = s.do(t, http.MethodPost, "/checkout/verify",
		`{"method":"walletA","orderId":"`+orderID+`","transactionId":"`+txnID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, orderID, body["orderId"])
	assert.Equal(t, float64(5900), body["amount"])

	// Verifying again replays the same order.
	rec = s.do(t, http.MethodPost, "/checkout/verify",
		`{"method":"walletA","orderId":"`+orderID+`","transactionId":"`+txnID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	onHand, _ := s.ledger.OnHand(context.Background(), "P1")
	assert.Equal(t, 9, onHand)
}

func TestVerifyFailureMapsToGatewayError(t *testing.T) {
	s := newStack(t)
	s.wallet.verifyErr = faults.New(faults.KindGateway, "payment declined").WithCode(faults.CodePaymentFailed)

	rec := s.do(t, http.MethodPost, "/checkout/initiate", `{"method":"walletA","items":[{"productId":"P1","quantity":1}],"userId":"u1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decodeBody(t, rec)["orderId"].(string)

	rec = s.do(t, http.MethodPost, "/checkout/verify", `{"orderId":"`+orderID+`"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "PAYMENT_FAILED", body["code"])

	// Session is now terminally failed.
	rec = s.do(t, http.MethodPost, "/checkout/verify", `{"orderId":"`+orderID+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SESSION_FAILED", decodeBody(t, rec)["code"])
}

func TestVerifyUnknownOrder(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodPost, "/checkout/verify", `{"orderId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallbackRedirects(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/checkout/initiate", `{"method":"walletA","items":[{"productId":"P1","quantity":1}],"userId":"u1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	initBody := decodeBody(t, rec)
	orderID := initBody["orderId"].(string)
	txnID := initBody["providerTransactionId"].(string)

	q := url.Values{}
	q.Set("method", "walletA")
	q.Set("order_id", orderID)
	q.Set("payment_id", txnID)
	rec = s.do(t, http.MethodGet, "/checkout/callback?"+q.Encode(), "")

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/checkout/success", loc.Path)
	assert.Equal(t, orderID, loc.Query().Get("orderId"))
}

func TestCallbackFailureRedirectsWithoutProviderDetails(t *testing.T) {
	s := newStack(t)
	s.wallet.verifyErr = faults.New(faults.KindGateway, "signature invalid").WithCode(faults.CodePaymentFailed)

	rec := s.do(t, http.MethodPost, "/checkout/initiate", `{"method":"walletA","items":[{"productId":"P1","quantity":1}],"userId":"u1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	initBody := decodeBody(t, rec)
	orderID := initBody["orderId"].(string)
	txnID := initBody["providerTransactionId"].(string)

	q := url.Values{}
	q.Set("method", "walletA")
	q.Set("order_id", orderID)
	q.Set("payment_id", txnID)
	q.Set("secret_provider_field", "do-not-leak")
	rec = s.do(t, http.MethodGet, "/checkout/callback?"+q.Encode(), "")

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/checkout/failure"))
	assert.NotContains(t, loc, "do-not-leak")
	assert.NotContains(t, rec.Body.String(), "do-not-leak")
}

func TestCallbackUnresolvable(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodGet, "/checkout/callback?method=walletA", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/checkout/failure", rec.Header().Get("Location"))
}

func TestGetOrderNotFound(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodGet, "/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
