package gateway

import (
	"context"
	"fmt"
	"net/url"

	"github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/payment"
	"github.com/minimart/checkout/internal/pkg/faults"
)

// walletB uses its own callback vocabulary; the required set is just as fixed
// as walletA's.
var walletBRequiredFields = []string{"transactionId", "resultCode", "signature"}

// WalletBGateway fronts the second redirect-based regional wallet.
type WalletBGateway struct {
	cfg    Config
	client *providerClient
}

func NewWalletBGateway(cfg Config) *WalletBGateway {
	cfg = cfg.withDefaults()
	return &WalletBGateway{cfg: cfg, client: newProviderClient(cfg)}
}

func (g *WalletBGateway) Method() checkout.Method { return checkout.MethodWalletB }

type walletBCreateRequest struct {
	OrderRef    string `json:"orderRef"`
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency"`
}

type walletBCreateResponse struct {
	TransactionID string `json:"transactionId"`
	PaymentURL    string `json:"paymentUrl"`
}

func (g *WalletBGateway) Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error) {
	var resp walletBCreateResponse
	err := g.client.postJSON(ctx, g.cfg.BaseURL+"/v2/payments", walletBCreateRequest{
		OrderRef:    req.OrderID,
		AmountMinor: req.Amount,
		Currency:    req.Currency,
	}, &resp)
	if err != nil {
		return nil, faults.Wrap(faults.KindGateway, err, "walletB payment creation failed")
	}
	if resp.TransactionID == "" || resp.PaymentURL == "" {
		return nil, faults.New(faults.KindGateway, "walletB returned incomplete payment")
	}
	return &payment.InitiateResult{
		ProviderTxnID: resp.TransactionID,
		PaymentURL:    resp.PaymentURL,
	}, nil
}

type walletBStatusResponse struct {
	State       string `json:"state"`
	AmountMinor int64  `json:"amountMinor"`
}

func (g *WalletBGateway) Verify(ctx context.Context, req payment.VerifyRequest) (*payment.VerifyResult, error) {
	for _, field := range walletBRequiredFields {
		if req.Callback[field] == "" {
			return nil, faults.Newf(faults.KindGateway, "walletB callback missing field %q", field).
				WithCode(faults.CodePaymentFailed)
		}
	}
	if req.Callback["transactionId"] != req.ProviderTxnID {
		return nil, faults.New(faults.KindGateway, "walletB callback transaction id does not match session").
			WithCode(faults.CodePaymentFailed)
	}
	if req.Callback["resultCode"] != "00" {
		return nil, faults.Newf(faults.KindGateway, "walletB payment declined (resultCode %q)", req.Callback["resultCode"]).
			WithCode(faults.CodePaymentFailed)
	}

	var resp walletBStatusResponse
	statusURL := fmt.Sprintf("%s/v2/payments/status?txn=%s", g.cfg.BaseURL, url.QueryEscape(req.ProviderTxnID))
	if err := g.client.getJSON(ctx, statusURL, &resp); err != nil {
		return nil, faults.Wrap(faults.KindGateway, err, "walletB status fetch failed")
	}
	if resp.State != "SETTLED" {
		return nil, faults.Newf(faults.KindGateway, "walletB payment not settled (state %q)", resp.State).
			WithCode(faults.CodePaymentFailed)
	}
	return &payment.VerifyResult{
		Amount:      resp.AmountMinor,
		Method:      checkout.MethodWalletB,
		ProviderRef: req.ProviderTxnID,
	}, nil
}

func (g *WalletBGateway) CallbackRef(data map[string]string) (string, string, error) {
	orderID, txnID := data["orderId"], data["transactionId"]
	if orderID == "" || txnID == "" {
		return "", "", faults.New(faults.KindValidation, "walletB callback missing orderId or transactionId")
	}
	return orderID, txnID, nil
}
