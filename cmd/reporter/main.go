package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/alkuinvito/kasirin/internal/config"
	kafkax "github.com/alkuinvito/kasirin/internal/kafka"
	"github.com/alkuinvito/kasirin/internal/logging"
	"github.com/alkuinvito/kasirin/internal/metrics"
	"github.com/alkuinvito/kasirin/internal/redisx"
	"github.com/alkuinvito/kasirin/internal/reports"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.ServiceName+"-reporter", cfg.LogJSON)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	loc, err := time.LoadLocation(cfg.ReportTimezone)
	if err != nil {
		log.Warn("unknown report timezone, using UTC", "tz", cfg.ReportTimezone, "err", err)
		loc = time.UTC
	}

	m := metrics.New("reporter")
	svc := &reports.Service{
		Sales:    &redisx.Sales{Rdb: rdb},
		Dedup:    &redisx.Dedup{Rdb: rdb, Service: "reporter"},
		Location: loc,
		Log:      log,
		Consumed: m.Events,
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		addr := os.Getenv("REPORTER_METRICS_ADDR")
		if addr == "" {
			addr = ":9102"
		}
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("metrics listener", "err", err)
		}
	}()

	// Consumer
	topics := reports.Topics()
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ReporterGroup, topics, cfg.ReporterWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("reporter consumer started", "group", cfg.ReporterGroup, "topics", topics, "workers", cfg.ReporterWorkers)
		if err := cons.Start(ctx, svc.HandleEvent); err != nil {
			log.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	<-done
}
