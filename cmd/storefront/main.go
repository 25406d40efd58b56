package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jogardn/roastery-orders/internal/api"
	"github.com/jogardn/roastery-orders/internal/auth"
	"github.com/jogardn/roastery-orders/internal/cache"
	"github.com/jogardn/roastery-orders/internal/catalog"
	"github.com/jogardn/roastery-orders/internal/circuitbreaker"
	"github.com/jogardn/roastery-orders/internal/config"
	"github.com/jogardn/roastery-orders/internal/events"
	"github.com/jogardn/roastery-orders/internal/orders"
	"github.com/jogardn/roastery-orders/internal/store"
	"github.com/jogardn/roastery-orders/internal/websocket"
	"github.com/sirupsen/logrus"
)

const sessionSweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DB.DSN(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to create tables")
	}

	catalogSvc := catalog.NewService(st, logger)
	orderSvc := orders.NewService(st, catalogSvc, cfg.Location, logger)
	authSvc := auth.NewService(st, cfg.SessionTTL, logger)
	server := api.NewServer(st, orderSvc, catalogSvc, authSvc, cfg.Location, logger)

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer rdb.Close()
		catalogSvc.SetCache(cache.NewCatalogCache(rdb, cfg.CatalogCacheTTL))
		server.AddHealthCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.WithField("addr", cfg.RedisAddr).Info("Catalog cache enabled")
	} else {
		logger.Info("REDIS_ADDR not set - catalog cache disabled")
	}

	if cfg.KafkaBrokers != "" {
		breaker := circuitbreaker.New(circuitbreaker.Config{
			Name:        "kafka-producer",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			MaxRequests: 1,
		}, logger)
		producer, err := events.NewKafkaProducer(cfg.KafkaBrokers, breaker, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		orderSvc.SetPublisher(producer)
		server.AddHealthCheck("kafka", func(context.Context) error {
			if breaker.State() == circuitbreaker.StateOpen {
				return fmt.Errorf("%w: %s", circuitbreaker.ErrCircuitBreakerOpen, breaker)
			}
			return nil
		})
		logger.WithField("brokers", cfg.KafkaBrokers).Info("Order events enabled")
	} else {
		logger.Info("KAFKA_BROKERS not set - order events disabled")
	}

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)
	orderSvc.SetBroadcaster(hub)
	server.SetFeed(hub)

	go sweepSessions(ctx, st, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.HTTPPort).Info("Starting storefront")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func sweepSessions(ctx context.Context, st *store.Store, logger *logrus.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := st.DeleteExpiredSessions(ctx, now)
			if err != nil {
				logger.WithError(err).Warn("Failed to delete expired sessions")
				continue
			}
			if removed > 0 {
				logger.WithField("removed", removed).Info("Expired sessions deleted")
			}
		}
	}
}
