package gateway

import (
	"context"
	"time"

	"github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/payment"
	"github.com/minimart/checkout/internal/observability"
	"github.com/minimart/checkout/internal/pkg/faults"
)

// Manager is the single initiate/verify façade over the method-specific
// adapters. Pure dispatch: it holds no state beyond the adapter table, and an
// unknown method is rejected before any adapter is touched.
type Manager struct {
	adapters map[checkout.Method]payment.Adapter

	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewManager(tel observability.Observability, adapters ...payment.Adapter) *Manager {
	if tel == nil {
		tel = observability.Nop()
	}
	table := make(map[checkout.Method]payment.Adapter, len(adapters))
	for _, a := range adapters {
		table[a.Method()] = a
	}
	return &Manager{
		adapters:     table,
		reqCounter:   tel.Metrics().Counter(observability.MGatewayRequests),
		durHistogram: tel.Metrics().Histogram(observability.MGatewayRequestDuration),
	}
}

func (m *Manager) Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error) {
	adapter, err := m.adapter(req.Method)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := adapter.Initiate(ctx, req)
	m.observe(req.Method, "initiate", start, err)
	return res, err
}

func (m *Manager) Verify(ctx context.Context, req payment.VerifyRequest) (*payment.VerifyResult, error) {
	adapter, err := m.adapter(req.Method)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := adapter.Verify(ctx, req)
	m.observe(req.Method, "verify", start, err)
	return res, err
}

func (m *Manager) CallbackRef(method checkout.Method, data map[string]string) (string, string, error) {
	adapter, err := m.adapter(method)
	if err != nil {
		return "", "", err
	}
	return adapter.CallbackRef(data)
}

func (m *Manager) adapter(method checkout.Method) (payment.Adapter, error) {
	adapter, ok := m.adapters[method]
	if !ok {
		return nil, faults.Newf(faults.KindValidation, "unknown payment method %q", method)
	}
	return adapter, nil
}

func (m *Manager) observe(method checkout.Method, call string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.reqCounter.Add(1,
		observability.L("method", string(method)),
		observability.L("call", call),
		observability.L("outcome", outcome),
	)
	m.durHistogram.Observe(time.Since(start).Seconds(),
		observability.L("method", string(method)),
		observability.L("call", call),
	)
}
