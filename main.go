package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appcheckout "github.com/minimart/checkout/internal/application/checkout"
	appnotify "github.com/minimart/checkout/internal/application/notify"
	apporder "github.com/minimart/checkout/internal/application/order"
	"github.com/minimart/checkout/internal/config"
	"github.com/minimart/checkout/internal/domain/catalog"
	domcheckout "github.com/minimart/checkout/internal/domain/checkout"
	domorder "github.com/minimart/checkout/internal/domain/order"
	"github.com/minimart/checkout/internal/infrastructure/gateway"
	"github.com/minimart/checkout/internal/infrastructure/id"
	"github.com/minimart/checkout/internal/infrastructure/memory"
	"github.com/minimart/checkout/internal/infrastructure/notify"
	"github.com/minimart/checkout/internal/infrastructure/observability/oteltrace"
	"github.com/minimart/checkout/internal/infrastructure/observability/prometrics"
	"github.com/minimart/checkout/internal/infrastructure/observability/telemetry"
	"github.com/minimart/checkout/internal/infrastructure/observability/zaplogger"
	"github.com/minimart/checkout/internal/infrastructure/outbox"
	"github.com/minimart/checkout/internal/infrastructure/postgres"
	"github.com/minimart/checkout/internal/infrastructure/redisstore"
	"github.com/minimart/checkout/internal/observability"
	httppresentation "github.com/minimart/checkout/internal/presentation/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)
	if s, ok := logger.(interface{ Sync() error }); ok {
		defer func() { _ = s.Sync() }()
	}

	tel := telemetry.New(
		oteltrace.New(cfg.ServiceName),
		logger,
		prometrics.New(cfg.ServiceName, prometheus.DefaultRegisterer),
	)
	systemLogger := logger.With(observability.F("component", "main"))

	// Persistent stores when configured, in-memory fallbacks otherwise.
	var (
		catalogRepo catalog.Repository
		sessions    domcheckout.SessionStore
		orders      domorder.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			systemLogger.Error("postgres_open_failed", observability.F("error", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := postgres.Init(context.Background(), db); err != nil {
			systemLogger.Error("postgres_init_failed", observability.F("error", err.Error()))
			os.Exit(1)
		}
		catalogRepo = postgres.NewProductCatalog(db)
		orders = postgres.NewOrderStore(db)
		sessions = postgres.NewSessionStore(db)
	} else {
		ledger := memory.NewLedger()
		cat := memory.NewProductCatalog(ledger)
		seedDemoCatalog(cat, systemLogger)
		catalogRepo = cat
		orders = memory.NewOrderStore(ledger)
		sessions = memory.NewSessionStore()
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		sessions = redisstore.NewSessionStore(rdb)
	}

	bus := outbox.NewBus(logger)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	dispatchers := []notify.Dispatcher{notify.NewLogDispatcher(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		kd := notify.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = kd.Close() }()
		dispatchers = append(dispatchers, kd)
	}
	notifyWorker := appnotify.NewWorker(bus, tel, dispatchers...)
	notifyWorker.Start()

	gatewayManager := gateway.NewManager(tel,
		gateway.NewCardGateway(gateway.Config{BaseURL: cfg.Card.BaseURL, APIKey: cfg.Card.APIKey}),
		gateway.NewWalletAGateway(gateway.Config{BaseURL: cfg.WalletA.BaseURL, APIKey: cfg.WalletA.APIKey}),
		gateway.NewWalletBGateway(gateway.Config{BaseURL: cfg.WalletB.BaseURL, APIKey: cfg.WalletB.APIKey}),
		gateway.NewCODGateway(),
	)

	committer := apporder.NewCommitter(orders, sessions, bus, tel)
	checkoutService := appcheckout.NewService(
		catalogRepo,
		gatewayManager,
		sessions,
		committer,
		id.NewUUIDGenerator(),
		appcheckout.Pricing{Currency: cfg.Currency, TaxBps: cfg.TaxBps, ShippingFee: cfg.ShippingFee},
		cfg.SessionTTL,
		tel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := appcheckout.NewSweeper(sessions, cfg.SweepInterval, tel)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	handler := httppresentation.NewHandler(checkoutService, orders, httppresentation.Redirects{
		SuccessURL: cfg.SuccessURL,
		FailureURL: cfg.FailureURL,
	}, tel)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		systemLogger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

// seedDemoCatalog loads a small catalog so the in-memory configuration is
// usable out of the box.
func seedDemoCatalog(cat *memory.ProductCatalog, log observability.Logger) {
	ctx := context.Background()
	products := []struct {
		p     catalog.Product
		stock int
	}{
		{catalog.Product{ID: "P1", Name: "Canvas Tote", Price: 5000, Active: true}, 10},
		{catalog.Product{ID: "P2", Name: "Ceramic Mug", Price: 1800, Active: true}, 25},
		{catalog.Product{ID: "P3", Name: "Desk Lamp", Price: 12500, Active: true}, 5},
		{catalog.Product{ID: "P4", Name: "Retired Poster", Price: 900, Active: false}, 0},
	}
	for _, entry := range products {
		if err := cat.Seed(ctx, entry.p, entry.stock); err != nil {
			log.Warn("seed_product_failed",
				observability.F("product_id", entry.p.ID),
				observability.F("error", err.Error()),
			)
		}
	}
}
