package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/alkuinvito/kasirin/internal/auth"
	"github.com/alkuinvito/kasirin/internal/catalog"
	"github.com/alkuinvito/kasirin/internal/checkout"
	"github.com/alkuinvito/kasirin/internal/config"
	"github.com/alkuinvito/kasirin/internal/httpx"
	kafkax "github.com/alkuinvito/kasirin/internal/kafka"
	"github.com/alkuinvito/kasirin/internal/logging"
	"github.com/alkuinvito/kasirin/internal/metrics"
	"github.com/alkuinvito/kasirin/internal/postgres"
	"github.com/alkuinvito/kasirin/internal/redisx"
	"github.com/alkuinvito/kasirin/internal/reports"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName, cfg.LogJSON)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Error("migrate", "err", err)
			os.Exit(1)
		}
	}
	gdb, err := postgres.Gorm(pool)
	if err != nil {
		log.Error("gorm", "err", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Warn("redis unavailable at startup", "addr", cfg.RedisAddr, "err", err)
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	m := metrics.New("api")
	svc := &checkout.Service{
		Store:          &checkout.Repo{DB: pool},
		Cache:          &redisx.TransactionCache{Rdb: rdb, Log: log},
		Events:         prod,
		Log:            log,
		Outcomes:       m.Checkout,
		PaymentWindow:  cfg.PaymentWindow,
		ReadGrace:      cfg.ReadGrace,
		RestockExpired: cfg.RestockExpired,
		ServiceName:    cfg.ServiceName,
	}
	store := &catalog.Store{DB: gdb}
	loc, err := time.LoadLocation(cfg.ReportTimezone)
	if err != nil {
		log.Warn("unknown report timezone, using UTC", "tz", cfg.ReportTimezone, "err", err)
		loc = time.UTC
	}

	router := httpx.NewRouter(m)
	api := &httpx.API{
		Tokens:       auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Log:          log,
		Transactions: &httpx.TransactionsHandler{Checkout: svc, Idem: &redisx.Idempotency{Rdb: rdb}, Log: log},
		Catalog:      &httpx.CatalogHandler{Store: store, Log: log},
		Admin:        &httpx.AdminHandler{Store: store, Log: log},
		Reports: &httpx.ReportsHandler{
			Reports: &reports.Service{Sales: &redisx.Sales{Rdb: rdb}, Location: loc, Log: log},
			Log:     log,
		},
	}
	api.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush queued events
	prod.WaitClosed()
	cancel()
}
