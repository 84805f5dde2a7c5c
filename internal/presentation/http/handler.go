package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appcheckout "github.com/minimart/checkout/internal/application/checkout"
	domorder "github.com/minimart/checkout/internal/domain/order"
	"github.com/minimart/checkout/internal/observability"
	"github.com/minimart/checkout/internal/observability/logctx"
	"github.com/minimart/checkout/internal/pkg/faults"
)

const componentHTTPHandler = "http_server"

// Redirects is where the callback endpoint sends the shopper after resolving
// a provider return. Provider payload details never leak into these URLs.
type Redirects struct {
	SuccessURL string
	FailureURL string
}

type Handler struct {
	checkout  *appcheckout.Service
	orders    domorder.Store
	redirects Redirects
	log       observability.Logger
	tel       observability.Observability
}

func NewHandler(checkoutSvc *appcheckout.Service, orders domorder.Store, redirects Redirects, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		checkout:  checkoutSvc,
		orders:    orders,
		redirects: redirects,
		log:       tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:       tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(ObservabilityMiddleware(h.log, h.tel))

	r.Post("/checkout/initiate", h.handleInitiate)
	r.Post("/checkout/verify", h.handleVerify)
	r.Get("/checkout/callback", h.handleCallback)
	r.Get("/orders/{orderID}", h.handleGetOrder)
	r.Get("/health", h.handleHealth)

	return r
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// initiateRequest deliberately tolerates unknown fields: clients routinely
// post their rendered cart including prices, and every price they send is
// discarded in favor of the live catalog.
type initiateRequest struct {
	Method     string            `json:"method"`
	Items      []cartItemRequest `json:"items"`
	UserID     string            `json:"userId"`
	GuestEmail string            `json:"guestEmail"`
}

type initiateResponse struct {
	OrderID               string `json:"orderId"`
	ProviderTransactionID string `json:"providerTransactionId"`
	PaymentURL            string `json:"paymentUrl,omitempty"`
	Amount                int64  `json:"amount"`
	Currency              string `json:"currency"`
	OrderCreated          bool   `json:"orderCreated"`
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFault(w, r, faults.Wrap(faults.KindValidation, err, "malformed request body"))
		return
	}

	items := make([]appcheckout.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, appcheckout.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	res, err := h.checkout.Initiate(r.Context(), appcheckout.InitiateInput{
		Method:     req.Method,
		Items:      items,
		UserID:     req.UserID,
		GuestEmail: req.GuestEmail,
	})
	if err != nil {
		h.writeFault(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, initiateResponse{
		OrderID:               res.OrderID,
		ProviderTransactionID: res.ProviderTxnID,
		PaymentURL:            res.PaymentURL,
		Amount:                res.Amount,
		Currency:              res.Currency,
		OrderCreated:          res.OrderCreated,
	})
}

type verifyRequest struct {
	Method        string            `json:"method"`
	OrderID       string            `json:"orderId"`
	TransactionID string            `json:"transactionId"`
	CallbackData  map[string]string `json:"callbackData"`
}

type verifyResponse struct {
	Success       bool   `json:"success"`
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	Method        string `json:"method"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFault(w, r, faults.Wrap(faults.KindValidation, err, "malformed request body"))
		return
	}

	res, err := h.checkout.Verify(r.Context(), appcheckout.VerifyInput{
		Method:        req.Method,
		OrderID:       req.OrderID,
		TransactionID: req.TransactionID,
		CallbackData:  req.CallbackData,
	})
	if err != nil {
		h.writeFault(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Success:       true,
		OrderID:       res.OrderID,
		TransactionID: res.TransactionID,
		Amount:        res.Amount,
		Method:        string(res.Method),
	})
}

// handleCallback terminates a provider redirect. The shopper's browser lands
// here with provider-specific query parameters; those are resolved to a
// session, verified, and the browser is redirected onward. Provider fields are
// never echoed back to the shopper.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	method := query.Get("method")

	data := make(map[string]string, len(query))
	for k := range query {
		if k == "method" {
			continue
		}
		data[k] = query.Get(k)
	}

	orderID, txnID, err := h.checkout.ResolveCallback(method, data)
	if err != nil {
		logctx.FromOr(r.Context(), h.log).Warn("callback_unresolvable",
			observability.F("method", method),
			observability.F("error", err.Error()),
		)
		h.redirect(w, r, h.redirects.FailureURL, "")
		return
	}

	_, err = h.checkout.Verify(r.Context(), appcheckout.VerifyInput{
		Method:        method,
		OrderID:       orderID,
		TransactionID: txnID,
		CallbackData:  data,
	})
	if err != nil {
		h.redirect(w, r, h.redirects.FailureURL, orderID)
		return
	}
	h.redirect(w, r, h.redirects.SuccessURL, orderID)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, target, orderID string) {
	if orderID != "" {
		if u, err := url.Parse(target); err == nil {
			q := u.Query()
			q.Set("orderId", orderID)
			u.RawQuery = q.Encode()
			target = u.String()
		}
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type orderItemResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type orderResponse struct {
	OrderID               string              `json:"orderId"`
	Status                string              `json:"status"`
	Method                string              `json:"method"`
	ProviderTransactionID string              `json:"providerTransactionId"`
	Subtotal              int64               `json:"subtotal"`
	Tax                   int64               `json:"tax"`
	Shipping              int64               `json:"shipping"`
	Total                 int64               `json:"total"`
	Currency              string              `json:"currency"`
	Items                 []orderItemResponse `json:"items"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	o, err := h.orders.FindByID(r.Context(), id)
	if err != nil {
		h.writeFault(w, r, faults.Wrap(faults.KindNotFound, err, "order not found"))
		return
	}

	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPriceAtCapture,
		})
	}
	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:               o.ID,
		Status:                string(o.Status),
		Method:                string(o.Method),
		ProviderTransactionID: o.ProviderTxnID,
		Subtotal:              o.Subtotal,
		Tax:                   o.Tax,
		Shipping:              o.Shipping,
		Total:                 o.Total,
		Currency:              o.Currency,
		Items:                 items,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func (h *Handler) writeFault(w http.ResponseWriter, r *http.Request, err error) {
	kind := faults.KindOf(err)

	var status int
	switch kind {
	case faults.KindValidation:
		status = http.StatusBadRequest
	case faults.KindNotFound:
		status = http.StatusNotFound
	case faults.KindUnavailable, faults.KindConflict:
		status = http.StatusConflict
	case faults.KindGateway:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	var f *faults.Fault
	if errors.As(err, &f) {
		msg = f.Message()
	}
	if status == http.StatusInternalServerError {
		logctx.FromOr(r.Context(), h.log).Error("request_failed",
			observability.F("error", err.Error()),
		)
		msg = "internal error"
	}

	writeJSON(w, status, errorResponse{
		Success: false,
		Error:   msg,
		Code:    faults.CodeOf(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
