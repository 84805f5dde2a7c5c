package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/minimart/checkout/internal/domain/catalog"
	domain "github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/payment"
	"github.com/minimart/checkout/internal/observability"
	"github.com/minimart/checkout/internal/observability/logctx"
	"github.com/minimart/checkout/internal/pkg/faults"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	componentCheckout = "checkout_service"
	opInitiate        = "initiate"
	opVerify          = "verify"
)

// Pricing carries the server-side totals computation inputs. Tax is expressed
// in basis points of the subtotal; shipping is a flat fee. All amounts are
// minor currency units.
type Pricing struct {
	Currency    string
	TaxBps      int64
	ShippingFee int64
}

// Service is the checkout orchestrator: it drives a checkout from initiation
// through verification to commit or failure, with all state externalized to
// the session store.
type Service struct {
	catalog    catalog.Repository
	gateway    payment.Gateway
	sessions   domain.SessionStore
	committer  Committer
	ids        IDGenerator
	pricing    Pricing
	sessionTTL time.Duration

	tel          observability.Observability
	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewService(
	catalogRepo catalog.Repository,
	gw payment.Gateway,
	sessions domain.SessionStore,
	committer Committer,
	ids IDGenerator,
	pricing Pricing,
	sessionTTL time.Duration,
	tel observability.Observability,
) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		catalog:      catalogRepo,
		gateway:      gw,
		sessions:     sessions,
		committer:    committer,
		ids:          ids,
		pricing:      pricing,
		sessionTTL:   sessionTTL,
		tel:          tel,
		log:          tel.Logger().With(observability.F("component", componentCheckout)),
		reqCounter:   tel.Metrics().Counter(observability.MCheckoutRequests),
		durHistogram: tel.Metrics().Histogram(observability.MCheckoutDuration),
	}
}

// CartLine is a client-supplied cart line. It never carries a price; prices
// and availability are re-derived from the live catalog.
type CartLine struct {
	ProductID string
	Quantity  int
}

type InitiateInput struct {
	Method     string
	Items      []CartLine
	UserID     string
	GuestEmail string
}

type InitiateResult struct {
	OrderID       string
	ProviderTxnID string
	PaymentURL    string
	Amount        int64
	Currency      string
	OrderCreated  bool
}

// Initiate validates the cart against the live catalog, computes authoritative
// totals, opens the payment with the provider and persists the session. Cash
// on delivery proceeds straight to commit.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (_ *InitiateResult, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("operation", opInitiate))

	ctx, span := s.tel.Tracer().Start(ctx, "Checkout.Initiate",
		attribute.String("checkout.method", in.Method),
		attribute.Int("checkout.lines", len(in.Items)),
	)
	start := time.Now()
	defer func() {
		s.observe(opInitiate, in.Method, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, faults.CodeOf(err))
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()
	}()

	method, perr := domain.ParseMethod(in.Method)
	if perr != nil {
		return nil, faults.Wrap(faults.KindValidation, perr, "invalid payment method")
	}
	customer := domain.CustomerIdentity{UserID: in.UserID, GuestEmail: in.GuestEmail}
	if verr := customer.Validate(); verr != nil {
		return nil, faults.Wrap(faults.KindValidation, verr, "invalid customer identity")
	}
	if len(in.Items) == 0 {
		return nil, faults.New(faults.KindValidation, "cart must contain at least one item")
	}

	lines, subtotal, lerr := s.priceLines(ctx, in.Items)
	if lerr != nil {
		return nil, lerr
	}
	tax := subtotal * s.pricing.TaxBps / 10000
	shipping := s.pricing.ShippingFee

	orderID := s.ids.NewID()
	span.SetAttributes(attribute.String("checkout.order_id", orderID))
	logger = logger.With(observability.F("order_id", orderID))

	initRes, gerr := s.gateway.Initiate(ctx, payment.InitiateRequest{
		OrderID:  orderID,
		Method:   method,
		Amount:   subtotal + tax + shipping,
		Currency: s.pricing.Currency,
		Customer: customer,
	})
	if gerr != nil {
		logger.Warn("gateway_initiate_failed", observability.F("error", gerr.Error()))
		return nil, gerr
	}

	session, serr := domain.NewSession(orderID, method, customer, lines, s.pricing.Currency, subtotal, tax, shipping, s.sessionTTL)
	if serr != nil {
		return nil, faults.Wrap(faults.KindValidation, serr, "invalid checkout request")
	}
	session.ProviderTxnID = initRes.ProviderTxnID

	if cerr := s.sessions.Create(ctx, session); cerr != nil {
		return nil, faults.Wrap(faults.KindInternal, cerr, "persist payment session")
	}

	result := &InitiateResult{
		OrderID:       orderID,
		ProviderTxnID: initRes.ProviderTxnID,
		PaymentURL:    initRes.PaymentURL,
		Amount:        session.Amount,
		Currency:      session.Currency,
	}

	if method == domain.MethodCOD {
		if _, created, commitErr := s.committer.Commit(ctx, session); commitErr != nil {
			logger.Warn("cod_commit_failed", observability.F("error", commitErr.Error()))
			return nil, commitErr
		} else {
			result.OrderCreated = created
		}
	}

	logger.Info("checkout_initiated",
		observability.F("method", string(method)),
		observability.F("amount", session.Amount),
		observability.F("order_created", result.OrderCreated),
	)
	return result, nil
}

type VerifyInput struct {
	Method        string
	OrderID       string
	TransactionID string
	CallbackData  map[string]string
}

type VerifyResult struct {
	OrderID       string
	TransactionID string
	Amount        int64
	Method        domain.Method
}

// Verify confirms a payment against its provider and commits the order. It is
// safe to invoke any number of times for the same session: a committed session
// replays its order, terminal failures stay failed, and concurrent calls are
// serialized by the session store's status compare-and-swap.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (_ *VerifyResult, err error) {
	logger := logctx.FromOr(ctx, s.log).With(
		observability.F("operation", opVerify),
		observability.F("order_id", in.OrderID),
	)

	ctx, span := s.tel.Tracer().Start(ctx, "Checkout.Verify",
		attribute.String("checkout.order_id", in.OrderID),
		attribute.String("checkout.method", in.Method),
	)
	start := time.Now()
	defer func() {
		s.observe(opVerify, in.Method, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, faults.CodeOf(err))
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()
	}()

	if in.OrderID == "" {
		return nil, faults.New(faults.KindValidation, "order id is required")
	}

	session, gerr := s.sessions.Get(ctx, in.OrderID)
	if gerr != nil {
		if errors.Is(gerr, domain.ErrNotFound) {
			return nil, faults.New(faults.KindNotFound, "payment session not found")
		}
		return nil, faults.Wrap(faults.KindInternal, gerr, "load payment session")
	}
	if in.Method != "" && domain.Method(in.Method) != session.Method {
		return nil, faults.New(faults.KindValidation, "method does not match payment session")
	}
	if in.TransactionID != "" && in.TransactionID != session.ProviderTxnID {
		return nil, faults.New(faults.KindValidation, "transaction id does not match payment session")
	}

	switch session.Status {
	case domain.StatusCommitted:
		return s.replay(ctx, session)
	case domain.StatusFailed:
		return nil, faults.Newf(faults.KindConflict, "payment session already failed (%s)", session.FailureReason).
			WithCode(faults.CodeSessionFailed)
	case domain.StatusExpired:
		// A provider confirming a payment for an expired session is an
		// operational anomaly, never silently honored. A bare client retry
		// without callback data is just a rejected poll, not an anomaly.
		if len(in.CallbackData) > 0 {
			logger.Error("late_provider_confirmation",
				observability.F("provider_txn_id", session.ProviderTxnID),
				observability.F("expired_at", session.ExpiresAt),
			)
		}
		return nil, faults.New(faults.KindConflict, "payment session expired").
			WithCode(faults.CodeSessionExpired)
	}

	// A session the provider already confirmed no longer expires; the clock
	// bound applies only while we are still waiting on the provider.
	if session.Status != domain.StatusVerified && session.ExpiredAt(time.Now().UTC()) {
		s.expireSession(ctx, session)
		if len(in.CallbackData) > 0 {
			logger.Error("late_provider_confirmation",
				observability.F("provider_txn_id", session.ProviderTxnID),
				observability.F("expired_at", session.ExpiresAt),
			)
		}
		return nil, faults.New(faults.KindConflict, "payment session expired").
			WithCode(faults.CodeSessionExpired)
	}

	verifyRes, verr := s.gateway.Verify(ctx, payment.VerifyRequest{
		OrderID:       session.OrderID,
		Method:        session.Method,
		ProviderTxnID: session.ProviderTxnID,
		Callback:      in.CallbackData,
	})
	if verr != nil {
		s.failSession(ctx, session, domain.ReasonPaymentFailed)
		logger.Warn("verification_failed", observability.F("error", verr.Error()))
		return nil, verr
	}
	// Providers that report an amount must agree with what we charged.
	if verifyRes.Amount > 0 && verifyRes.Amount != session.Amount {
		s.failSession(ctx, session, domain.ReasonAmountMismatch)
		logger.Warn("verification_amount_mismatch",
			observability.F("expected", session.Amount),
			observability.F("reported", verifyRes.Amount),
		)
		return nil, faults.New(faults.KindGateway, "provider-reported amount does not match session").
			WithCode(faults.CodeAmountMismatch)
	}

	// A session stranded in VERIFIED by an earlier failed commit skips the
	// CAS and goes straight back to the (idempotent) committer.
	if session.Status != domain.StatusVerified {
		prev := session.Status
		if terr := session.Transition(domain.StatusVerified); terr != nil {
			return nil, faults.Wrap(faults.KindConflict, terr, "session cannot be verified")
		}
		if uerr := s.sessions.UpdateIf(ctx, session, prev); uerr != nil {
			// Someone else advanced the session first. If they committed,
			// replay; otherwise the caller retries.
			if errors.Is(uerr, domain.ErrConflict) {
				refreshed, rerr := s.sessions.Get(ctx, in.OrderID)
				if rerr == nil && refreshed.Status == domain.StatusCommitted {
					return s.replay(ctx, refreshed)
				}
				return nil, faults.New(faults.KindConflict, "verification already in progress").
					WithCode(faults.CodeDuplicateTxn)
			}
			return nil, faults.Wrap(faults.KindInternal, uerr, "update payment session")
		}
	}

	o, _, cerr := s.committer.Commit(ctx, session)
	if cerr != nil {
		return nil, cerr
	}

	logger.Info("checkout_verified",
		observability.F("method", string(session.Method)),
		observability.F("amount", session.Amount),
	)
	return &VerifyResult{
		OrderID:       o.ID,
		TransactionID: o.ProviderTxnID,
		Amount:        o.Total,
		Method:        o.Method,
	}, nil
}

// ResolveCallback maps a provider redirect payload onto our identifiers using
// the method's own field names.
func (s *Service) ResolveCallback(method string, data map[string]string) (orderID, providerTxnID string, err error) {
	m, perr := domain.ParseMethod(method)
	if perr != nil {
		return "", "", faults.Wrap(faults.KindValidation, perr, "invalid payment method")
	}
	return s.gateway.CallbackRef(m, data)
}

func (s *Service) priceLines(ctx context.Context, items []CartLine) ([]domain.LineItem, int64, error) {
	// Repeated lines for one product are merged before the stock check, so a
	// split cart cannot pass each fragment against the same on-hand count.
	merged := make([]CartLine, 0, len(items))
	byProduct := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, 0, faults.Newf(faults.KindValidation, "quantity for product %q must be greater than zero", item.ProductID)
		}
		if i, ok := byProduct[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		byProduct[item.ProductID] = len(merged)
		merged = append(merged, item)
	}

	lines := make([]domain.LineItem, 0, len(merged))
	var subtotal int64
	for _, item := range merged {
		product, err := s.catalog.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, 0, faults.Newf(faults.KindNotFound, "product %q not found", item.ProductID)
			}
			return nil, 0, faults.Wrap(faults.KindInternal, err, "catalog lookup")
		}
		if !product.Active {
			return nil, 0, faults.Newf(faults.KindUnavailable, "product %q is not available", item.ProductID)
		}
		if product.OnHand < item.Quantity {
			return nil, 0, faults.Newf(faults.KindUnavailable, "insufficient stock for product %q", item.ProductID)
		}
		lines = append(lines, domain.LineItem{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
		subtotal += product.Price * int64(item.Quantity)
	}
	return lines, subtotal, nil
}

func (s *Service) replay(ctx context.Context, session *domain.PaymentSession) (*VerifyResult, error) {
	o, _, err := s.committer.Commit(ctx, session)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		OrderID:       o.ID,
		TransactionID: o.ProviderTxnID,
		Amount:        o.Total,
		Method:        o.Method,
	}, nil
}

func (s *Service) failSession(ctx context.Context, session *domain.PaymentSession, reason string) {
	prev := session.Status
	if err := session.Fail(reason); err != nil {
		return
	}
	_ = s.sessions.UpdateIf(ctx, session, prev)
}

func (s *Service) expireSession(ctx context.Context, session *domain.PaymentSession) {
	prev := session.Status
	if err := session.Transition(domain.StatusExpired); err != nil {
		return
	}
	_ = s.sessions.UpdateIf(ctx, session, prev)
}

func (s *Service) observe(operation, method string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.reqCounter.Add(1,
		observability.L("operation", operation),
		observability.L("method", method),
		observability.L("outcome", outcome),
	)
	s.durHistogram.Observe(time.Since(start).Seconds(),
		observability.L("operation", operation),
	)
}
