package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/cache"
	"orderflow/internal/idempotency"
	"orderflow/internal/notify"
	orderhandler "orderflow/internal/order/handler"
	"orderflow/internal/order/service"
	orderstore "orderflow/internal/order/store"
	"orderflow/internal/outbound"
	"orderflow/internal/platform/config"
	"orderflow/internal/platform/httpserver"
	"orderflow/internal/platform/logger"
	"orderflow/internal/platform/metrics"
	platformredis "orderflow/internal/platform/redis"
)

// main wires high-level dependencies: stores pick their shared backend when
// one is configured and fall back to in-process implementations otherwise,
// the retry worker runs for the whole process lifetime, and shutdown is
// graceful for both the HTTP server and the worker.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable, using in-process stores", "error", err)
	}

	var cacheStore cache.Store = cache.NewInMemoryStore()
	var queueBackend *redis.Client
	if redisClient != nil {
		cacheStore = cache.NewRedisStore(redisClient.Client)
		queueBackend = redisClient.Client
		defer redisClient.Close()
	}

	var idemStore idempotency.Store = idempotency.NewInMemoryStore()
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Error("postgres unavailable, using in-memory idempotency store", "error", err)
		} else {
			defer db.Close()
			pg := idempotency.NewPostgres(db)
			if err := pg.Migrate(ctx); err != nil {
				log.Error("idempotency migration failed, using in-memory store", "error", err)
			} else {
				idemStore = pg
			}
		}
	}

	publisher := outbound.NewPublisher(cfg.Kafka, log,
		outbound.WithPublishCounters(m.EventsPublished, m.PublishFailures))
	defer publisher.Close()

	retryQueue := outbound.NewRetryQueue(queueBackend, log,
		outbound.WithAcceptedCounter(m.EventsEnqueued))

	bus := notify.NewBus(log, notify.WithErrorCounter(m.NotificationErrors))
	service.RegisterNotifications(bus)
	bus.RegisterHandler(service.NotificationOrderCreated, func(_ context.Context, n notify.Notification) error {
		created := n.(service.OrderCreatedNotification)
		log.Info("order created", "orderId", created.OrderID, "customerId", created.CustomerID)
		return nil
	})

	gateway := orderstore.NewInMemoryStore()
	orders := service.New(gateway, service.Deps{
		Cache:       cacheStore,
		Idempotency: idemStore,
		Publisher:   publisher,
		Queue:       retryQueue,
		Bus:         bus,
		Logger:      log,
		Metrics:     m,
	})

	router := chi.NewRouter()
	orderhandler.New(orders, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	worker := outbound.NewWorker(retryQueue, publisher, cfg.Worker.PollInterval, log,
		outbound.WithDrainCounter(m.RetriesDrained))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting orderflow", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := worker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
