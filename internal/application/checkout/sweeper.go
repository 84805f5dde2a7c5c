package checkout

import (
	"context"
	"sync"
	"time"

	domain "github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/observability"
)

const componentSweeper = "session_sweeper"

// Sweeper is the background reaper for overdue payment sessions: any session
// that has not reached a terminal state within its TTL is moved to EXPIRED so
// that a late provider confirmation can no longer commit it.
type Sweeper struct {
	sessions domain.SessionStore
	interval time.Duration

	log       observability.Logger
	expired   observability.Counter
	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewSweeper(sessions domain.SessionStore, interval time.Duration, tel observability.Observability) *Sweeper {
	if tel == nil {
		tel = observability.Nop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		sessions: sessions,
		interval: interval,
		log:      tel.Logger().With(observability.F("component", componentSweeper)),
		expired:  tel.Metrics().Counter(observability.MSessionsExpired),
		done:     make(chan struct{}),
	}
}

func (w *Sweeper) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		w.cancel = cancel
		go w.run(bg)
		w.log.Info("session_sweeper_started", observability.F("interval", w.interval.String()))
	})
}

func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		<-w.done
		w.log.Info("session_sweeper_stopped")
	})
}

func (w *Sweeper) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	swept, err := w.sessions.Sweep(ctx, time.Now().UTC())
	if err != nil {
		w.log.Error("session_sweep_failed", observability.F("error", err.Error()))
		return
	}
	for _, s := range swept {
		w.expired.Add(1)
		w.log.Warn("session_expired",
			observability.F("order_id", s.OrderID),
			observability.F("method", string(s.Method)),
			observability.F("provider_txn_id", s.ProviderTxnID),
		)
	}
}
