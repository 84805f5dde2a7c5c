package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/payment"
	"github.com/minimart/checkout/internal/pkg/faults"
)

const codReferencePrefix = "COD-"

// CODGateway is the cash-on-delivery path: no external provider exists, so
// initiate mints a local reference and verify accepts any reference this
// gateway produced. This is the only method where initiation and commit run
// back to back in the same request.
type CODGateway struct{}

func NewCODGateway() *CODGateway { return &CODGateway{} }

func (g *CODGateway) Method() checkout.Method { return checkout.MethodCOD }

func (g *CODGateway) Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error) {
	_ = ctx
	_ = req
	return &payment.InitiateResult{
		ProviderTxnID: codReferencePrefix + uuid.NewString(),
	}, nil
}

func (g *CODGateway) Verify(ctx context.Context, req payment.VerifyRequest) (*payment.VerifyResult, error) {
	_ = ctx
	if !strings.HasPrefix(req.ProviderTxnID, codReferencePrefix) {
		return nil, faults.New(faults.KindValidation, "not a cash-on-delivery reference")
	}
	// Amount 0 means "no provider-reported amount"; the orchestrator skips
	// the cross-check for this method.
	return &payment.VerifyResult{
		Method:      checkout.MethodCOD,
		ProviderRef: req.ProviderTxnID,
	}, nil
}

func (g *CODGateway) CallbackRef(map[string]string) (string, string, error) {
	return "", "", errors.New("gateway: cash on delivery has no redirect callback")
}
