package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/jogardn/roastery-orders/internal/config"
	"github.com/jogardn/roastery-orders/internal/events"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel)

	if cfg.KafkaBrokers == "" {
		logger.Fatal("KAFKA_BROKERS is required by the DLQ monitor")
	}

	// Create consumer for DLQ monitoring
	consumer, err := sarama.NewConsumerGroup(strings.Split(cfg.KafkaBrokers, ","), "dlq-monitor-group", events.ConsumerConfig())
	if err != nil {
		logger.WithError(err).Fatal("Failed to create DLQ consumer")
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := &dlqHandler{logger: logger}

	go func() {
		for ctx.Err() == nil {
			if err := consumer.Consume(ctx, []string{events.OrderDLQTopic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				logger.WithError(err).Error("Error consuming from DLQ")
			}
		}
	}()

	logger.WithField("topic", events.OrderDLQTopic).Info("DLQ Monitor started")

	<-ctx.Done()
	logger.Info("Shutting down DLQ monitor...")
}

type dlqHandler struct {
	logger *logrus.Logger
}

func (h *dlqHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *dlqHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *dlqHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		metadata, err := events.ExtractMetadata(message)
		if err != nil {
			h.logger.WithError(err).WithField("offset", message.Offset).Error("Failed to unmarshal metadata")
		}

		h.logger.WithFields(logrus.Fields{
			"topic":          message.Topic,
			"partition":      message.Partition,
			"offset":         message.Offset,
			"key":            string(message.Key),
			"original_topic": metadata.OriginalTopic,
			"retry_count":    metadata.RetryCount,
		}).Warn("DLQ Message Detected")

		var event events.OrderEvent
		if err := json.Unmarshal(message.Value, &event); err == nil {
			h.logger.WithFields(logrus.Fields{
				"order_id":     event.OrderID,
				"order_number": event.OrderNumber,
				"customer_id":  event.CustomerID,
				"status":       event.Status,
			}).Info("DLQ Order Details")
		}

		fmt.Printf("\n=== DLQ Message ===\n")
		fmt.Printf("Time: %s\n", time.Now().Format(time.RFC3339))
		fmt.Printf("Order: %s (%s)\n", event.OrderNumber, string(message.Key))
		fmt.Printf("Event: %s\n", metadata.OriginalTopic)
		fmt.Printf("Error: %s\n", metadata.ErrorMessage)
		fmt.Printf("Retry Count: %d\n", metadata.RetryCount)
		fmt.Printf("==================\n\n")

		session.MarkMessage(message, "")
	}
	return nil
}
