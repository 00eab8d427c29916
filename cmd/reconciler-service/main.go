package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/bootstrap"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/config"
	orderkafka "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/infrastructure/kafka"
	reconapp "github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/application"
	reconkafka "github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/infrastructure/kafka"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/health"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/idempotency"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/logging"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/shutdown"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/tracing"
)

const serviceName = "reconciler-service"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New().Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.NewWithLevel(cfg.LogLevel).With("service", serviceName)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Service, cfg.Tracing.Endpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	hs, err := health.Run(cfg.GRPCAddr, serviceName)
	if err != nil {
		log.Error("grpc health listen failed", "addr", cfg.GRPCAddr, "err", err)
		os.Exit(1)
	}
	defer hs.GracefulStop()

	clk := clock.NewSystem()
	app, err := bootstrap.New(ctx, log, cfg, clk)
	if err != nil {
		log.Error("bootstrap failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	// Redis backs the batch lock and consumer dedup; without it the batch
	// runs unlocked on every replica.
	var idem *idempotency.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		idem = idempotency.NewStore(rdb, cfg.Redis.DedupTTL)
	}

	writer := orderkafka.NewWriter(cfg.Kafka.Brokers)
	defer writer.Close()

	if cfg.Outbox.Enabled {
		dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.OutboxTopic)
		relay := outbox.NewRelay(log, app.Stores.Outbox, dispatch, serviceName+"-relay",
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithInterval(cfg.Outbox.Interval),
			outbox.WithLease(cfg.Outbox.Lease),
		)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	}

	var batchReconciler reconapp.OrderReconciler = app.Engine
	if cfg.Reconcile.Mode == config.ModeKafka {
		batchReconciler = reconkafka.NewPublisher(log, writer, cfg.Kafka.ReconcileTopic, clk)

		reader := reconkafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.ReconcileTopic, cfg.Kafka.ConsumerGroup)
		consumer := reconkafka.NewConsumer(log, reader, app.Engine, idem)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error("consumer stopped", "err", err)
				cancel()
			}
		}()
	}

	var triggerOpts []reconapp.TriggerOption
	if idem != nil {
		triggerOpts = append(triggerOpts, reconapp.WithLocker(idem, cfg.Reconcile.LockTTL))
	}
	trigger := app.Trigger(log, batchReconciler, triggerOpts...)
	go func() {
		if err := trigger.Run(ctx); err != nil {
			log.Error("batch trigger stopped with error", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      app.HTTPHandler(log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", app.Stores.Driver, "mode", cfg.Reconcile.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	hs.SetServing("", true)
	hs.SetServing(serviceName, true)

	<-ctx.Done()

	if err := shutdown.Graceful(10*time.Second, srv.Shutdown); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	log.Info("reconciler-service shutdown complete")
}
