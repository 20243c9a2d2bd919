package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sergiocoding96/order-pipeline/internal/bootstrap"
	"github.com/sergiocoding96/order-pipeline/internal/config"
	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
	"github.com/sergiocoding96/order-pipeline/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	log := logging.NewJSONLogger("order-pipeline", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: app.Metrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()

	go app.Queue.Run(ctx)

	log.Info("worker running",
		"inbound_subject", cfg.NATSInboundSubject,
		"metrics_port", cfg.MetricsPort,
		"concurrency", cfg.QueueConcurrency)

	// Blocks until the context is cancelled, then drains the subscription.
	err = app.Bus.SubscribeInbound(ctx, func(handlerCtx context.Context, msg domain.InboundMessage) error {
		id, err := app.Ingest.Receive(handlerCtx, msg)
		if err != nil {
			return err
		}
		log.Info("item queued", "item_id", id, "channel", msg.Channel)
		return nil
	})
	if err != nil {
		log.Error("inbound subscription ended with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	log.Info("worker stopped")
}
