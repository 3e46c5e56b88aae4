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
	_ "time/tzdata" // display zones resolve on minimal images

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/ticket-booking/internal/config"
	"github.com/iliyamo/ticket-booking/internal/handler"
	"github.com/iliyamo/ticket-booking/internal/logger"
	"github.com/iliyamo/ticket-booking/internal/payment"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/router"
	"github.com/iliyamo/ticket-booking/internal/service"
	"github.com/iliyamo/ticket-booking/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Development: cfg.Log.Development,
		OutputPath:  cfg.Log.OutputPath,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.Get()
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:       cfg.OTel.Enabled,
		ServiceName:   cfg.App.Name,
		Environment:   cfg.App.Env,
		CollectorAddr: cfg.OTel.CollectorAddr,
		SampleRatio:   cfg.OTel.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	store, err := openStore(ctx, cfg.Database, cfg.OTel.Enabled)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("store ready", zap.String("driver", cfg.Database.Driver))

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	} else if cfg.Redis.Enabled {
		log.Warn("redis unavailable; caching and rate limiting disabled", zap.String("addr", cfg.Redis.Addr))
	}

	gateway, err := payment.New(cfg.Payment)
	if err != nil {
		return err
	}

	var events service.EventPublisher = service.NopPublisher{}
	var consumer *queue.Consumer
	if cfg.RabbitMQ.Enabled {
		pub := queue.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, log)
		defer pub.Close()
		events = pub
		consumer = queue.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, store, log)
	}

	zone := cfg.DisplayLocation()
	opts := service.Options{
		Zone:         zone,
		CancelCutoff: cfg.Booking.CancelCutoff,
		Currency:     cfg.Payment.Currency,
		Events:       events,
		Log:          log,
	}
	booking := service.NewBooking(store, opts)
	catalog := service.NewCatalog(store, opts)
	payments := service.NewPayments(store, gateway, opts)

	checks := map[string]handler.Pinger{"store": store}
	if rdb != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	e := router.New(router.Handlers{
		Booking: handler.NewBookingHandler(booking),
		Catalog: handler.NewCatalogHandler(catalog, booking, zone),
		Payment: handler.NewPaymentHandler(payments, gateway.SignatureHeader()),
		Admin:   handler.NewAdminHandler(service.NewAudit(store)),
		Ready:   &handler.ReadyHandler{Checks: checks},
	}, router.Options{
		JWTSecret: cfg.JWT.Secret,
		Redis:     rdb,
		Cache:     cfg.Cache,
		RateLimit: cfg.RateLimit,
		Log:       log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env),
			zap.String("payment_provider", gateway.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if consumer != nil {
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
