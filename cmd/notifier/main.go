package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jogardn/roastery-orders/internal/config"
	"github.com/jogardn/roastery-orders/internal/events"
	"github.com/jogardn/roastery-orders/internal/mail"
	"github.com/jogardn/roastery-orders/internal/reminders"
	"github.com/jogardn/roastery-orders/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const metricsInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel)

	if cfg.RabbitMQURL == "" {
		logger.Fatal("RABBITMQ_URL is required by the notifier")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DB.DSN(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer st.Close()

	publisher, err := mail.NewPublisher(cfg.RabbitMQURL, cfg.MailExchange, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	defer publisher.Close()

	g, ctx := errgroup.WithContext(ctx)

	dispatcher := reminders.NewDispatcher(st, publisher, cfg.Location, cfg.ReminderInterval, logger)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})

	if cfg.KafkaBrokers != "" {
		handler := mail.NewNotificationHandler(publisher, st, cfg.AdminNotifyEmail, logger)
		consumer, err := events.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, handler, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka consumer")
		}
		defer consumer.Close()

		dlq, err := events.NewDLQProcessor(cfg.KafkaBrokers, cfg.ConsumerGroup+"-dlq", logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create DLQ processor")
		}
		defer dlq.Close()

		g.Go(func() error {
			return consumer.Start(ctx)
		})
		g.Go(func() error {
			return dlq.Start(ctx)
		})
		g.Go(func() error {
			logMetrics(ctx, consumer, logger)
			return nil
		})
		logger.WithField("topics", events.OrderTopics).Info("Consuming order events")
	} else {
		logger.Info("KAFKA_BROKERS not set - order notifications disabled, reminders only")
	}

	logger.Info("Notifier started")
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Notifier stopped with error")
		return
	}
	logger.Info("Notifier stopped")
}

func logMetrics(ctx context.Context, consumer *events.Consumer, logger *logrus.Logger) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := consumer.Metrics()
			logger.WithFields(logrus.Fields{
				"processed": m.ProcessedCount,
				"retries":   m.RetryCount,
				"dlq":       m.DLQCount,
				"successes": m.SuccessCount,
				"failures":  m.FailureCount,
			}).Info("Consumer metrics")
		}
	}
}
