package gateway

import (
	"context"
	"fmt"

	"github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/payment"
	"github.com/minimart/checkout/internal/pkg/faults"
)

// walletA redirect callback fields. The set is fixed: a callback missing any
// of them is a hard verification failure, not a partial success.
var walletARequiredFields = []string{"payment_id", "status", "trx_id"}

// WalletAGateway fronts the first redirect-based regional wallet. Initiation
// opens a payment and hands back the provider's redirect URL; verification
// validates the callback field set and then confirms the payment against the
// provider's own API, since redirect query strings are attacker-observable.
type WalletAGateway struct {
	cfg    Config
	client *providerClient
}

func NewWalletAGateway(cfg Config) *WalletAGateway {
	cfg = cfg.withDefaults()
	return &WalletAGateway{cfg: cfg, client: newProviderClient(cfg)}
}

func (g *WalletAGateway) Method() checkout.Method { return checkout.MethodWalletA }

type walletACreateRequest struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type walletACreateResponse struct {
	PaymentID   string `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
}

func (g *WalletAGateway) Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error) {
	var resp walletACreateResponse
	err := g.client.postJSON(ctx, g.cfg.BaseURL+"/payments", walletACreateRequest{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Currency: req.Currency,
	}, &resp)
	if err != nil {
		return nil, faults.Wrap(faults.KindGateway, err, "walletA payment creation failed")
	}
	if resp.PaymentID == "" || resp.RedirectURL == "" {
		return nil, faults.New(faults.KindGateway, "walletA returned incomplete payment")
	}
	return &payment.InitiateResult{
		ProviderTxnID: resp.PaymentID,
		PaymentURL:    resp.RedirectURL,
	}, nil
}

type walletAConfirmRequest struct {
	TrxID string `json:"trx_id"`
}

type walletAConfirmResponse struct {
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

func (g *WalletAGateway) Verify(ctx context.Context, req payment.VerifyRequest) (*payment.VerifyResult, error) {
	for _, field := range walletARequiredFields {
		if req.Callback[field] == "" {
			return nil, faults.Newf(faults.KindGateway, "walletA callback missing field %q", field).
				WithCode(faults.CodePaymentFailed)
		}
	}
	if req.Callback["payment_id"] != req.ProviderTxnID {
		return nil, faults.New(faults.KindGateway, "walletA callback payment id does not match session").
			WithCode(faults.CodePaymentFailed)
	}
	if req.Callback["status"] != "success" {
		return nil, faults.Newf(faults.KindGateway, "walletA payment not successful (status %q)", req.Callback["status"]).
			WithCode(faults.CodePaymentFailed)
	}

	// Callback fields alone are never trusted; confirm with the provider.
	var resp walletAConfirmResponse
	url := fmt.Sprintf("%s/payments/%s/confirm", g.cfg.BaseURL, req.ProviderTxnID)
	err := g.client.postJSON(ctx, url, walletAConfirmRequest{TrxID: req.Callback["trx_id"]}, &resp)
	if err != nil {
		return nil, faults.Wrap(faults.KindGateway, err, "walletA confirmation failed")
	}
	if resp.Status != "completed" {
		return nil, faults.Newf(faults.KindGateway, "walletA payment not confirmed (status %q)", resp.Status).
			WithCode(faults.CodePaymentFailed)
	}
	return &payment.VerifyResult{
		Amount:      resp.Amount,
		Method:      checkout.MethodWalletA,
		ProviderRef: req.Callback["trx_id"],
	}, nil
}

func (g *WalletAGateway) CallbackRef(data map[string]string) (string, string, error) {
	orderID, txnID := data["order_id"], data["payment_id"]
	if orderID == "" || txnID == "" {
		return "", "", faults.New(faults.KindValidation, "walletA callback missing order_id or payment_id")
	}
	return orderID, txnID, nil
}
