package payment

import (
	"context"

	"github.com/minimart/checkout/internal/domain/checkout"
)

// InitiateRequest asks a provider to open a payment for an order. Amount is
// always server-computed before this point.
type InitiateRequest struct {
	OrderID  string
	Method   checkout.Method
	Amount   int64
	Currency string
	Customer checkout.CustomerIdentity
}

// InitiateResult normalizes the provider response. PaymentURL is set only for
// redirect-based methods.
type InitiateResult struct {
	ProviderTxnID string
	PaymentURL    string
}

// VerifyRequest carries the provider callback payload for confirmation.
// Callback holds the raw provider-specific fields; each adapter validates its
// own fixed required set.
type VerifyRequest struct {
	OrderID       string
	Method        checkout.Method
	ProviderTxnID string
	Callback      map[string]string
}

// VerifyResult is the provider-confirmed outcome of a successful verification.
type VerifyResult struct {
	Amount      int64
	Method      checkout.Method
	ProviderRef string
}

// Adapter normalizes one external payment provider. Implementations fail
// closed: any timeout, transport error or malformed response is an error,
// never inferred success.
type Adapter interface {
	Method() checkout.Method
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)

	// CallbackRef extracts our order id and the provider transaction id from
	// a redirect callback, using that provider's field names. Methods without
	// a redirect flow return an error.
	CallbackRef(data map[string]string) (orderID, providerTxnID string, err error)
}

// Gateway is the single initiate/verify façade the orchestrator talks to;
// the manager implements it by dispatching on method.
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	CallbackRef(method checkout.Method, data map[string]string) (orderID, providerTxnID string, err error)
}
