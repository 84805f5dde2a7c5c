package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/payment"
	"github.com/minimart/checkout/internal/pkg/faults"
)

// CardGateway fronts the online card/wallet provider with immediate
// confirmation: a charge is captured in the initiate round trip and Verify
// re-fetches the authoritative charge state from the provider instead of
// trusting anything the client relayed.
type CardGateway struct {
	cfg    Config
	client *providerClient
}

func NewCardGateway(cfg Config) *CardGateway {
	cfg = cfg.withDefaults()
	return &CardGateway{cfg: cfg, client: newProviderClient(cfg)}
}

func (g *CardGateway) Method() checkout.Method { return checkout.MethodCard }

type cardChargeRequest struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type cardChargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
}

func (g *CardGateway) Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error) {
	var resp cardChargeResponse
	err := g.client.postJSON(ctx, g.cfg.BaseURL+"/charges", cardChargeRequest{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Currency: req.Currency,
	}, &resp)
	if err != nil {
		return nil, faults.Wrap(faults.KindGateway, err, "card charge failed")
	}
	if resp.TransactionID == "" || resp.Status != "captured" {
		return nil, faults.Newf(faults.KindGateway, "card charge not captured (status %q)", resp.Status)
	}
	return &payment.InitiateResult{ProviderTxnID: resp.TransactionID}, nil
}

func (g *CardGateway) Verify(ctx context.Context, req payment.VerifyRequest) (*payment.VerifyResult, error) {
	if req.ProviderTxnID == "" {
		return nil, faults.New(faults.KindValidation, "transaction id is required")
	}

	var resp cardChargeResponse
	url := fmt.Sprintf("%s/charges/%s", g.cfg.BaseURL, req.ProviderTxnID)
	if err := g.client.getJSON(ctx, url, &resp); err != nil {
		return nil, faults.Wrap(faults.KindGateway, err, "card status fetch failed")
	}
	if resp.Status != "captured" {
		return nil, faults.Newf(faults.KindGateway, "card charge %s not captured (status %q)", req.ProviderTxnID, resp.Status).
			WithCode(faults.CodePaymentFailed)
	}
	return &payment.VerifyResult{
		Amount:      resp.Amount,
		Method:      checkout.MethodCard,
		ProviderRef: resp.TransactionID,
	}, nil
}

func (g *CardGateway) CallbackRef(map[string]string) (string, string, error) {
	return "", "", errors.New("gateway: card has no redirect callback")
}
