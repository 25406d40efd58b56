package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:   3,
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
}

type ConsumerMetrics struct {
	ProcessedCount int64 `json:"processed_count"`
	RetryCount     int64 `json:"retry_count"`
	DLQCount       int64 `json:"dlq_count"`
	SuccessCount   int64 `json:"success_count"`
	FailureCount   int64 `json:"failure_count"`
}

type MessageMetadata struct {
	RetryCount    int       `json:"retry_count"`
	FirstFailure  time.Time `json:"first_failure"`
	LastFailure   time.Time `json:"last_failure"`
	OriginalTopic string    `json:"original_topic"`
	ErrorMessage  string    `json:"error_message"`
}

func ConsumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Version = sarama.V2_6_0_0
	return config
}

// Consumer reads order events, retries retryable handler failures with
// exponential backoff and parks exhausted messages on the DLQ topic.
type Consumer struct {
	group    sarama.ConsumerGroup
	producer sarama.SyncProducer
	handler  OrderEventHandler
	policy   RetryPolicy
	logger   *logrus.Logger
	topics   []string

	processed, retries, dlq, successes, failures atomic.Int64
}

func NewConsumer(brokers, groupID string, handler OrderEventHandler, logger *logrus.Logger) (*Consumer, error) {
	addrs := strings.Split(brokers, ",")
	group, err := sarama.NewConsumerGroup(addrs, groupID, ConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	producer, err := sarama.NewSyncProducer(addrs, ProducerConfig())
	if err != nil {
		group.Close()
		return nil, fmt.Errorf("failed to create producer for DLQ: %w", err)
	}

	c := newConsumer(handler, producer, logger)
	c.group = group
	return c, nil
}

func newConsumer(handler OrderEventHandler, producer sarama.SyncProducer, logger *logrus.Logger) *Consumer {
	return &Consumer{
		producer: producer,
		handler:  handler,
		policy:   DefaultRetryPolicy,
		logger:   logger,
		topics:   OrderTopics,
	}
}

func (c *Consumer) SetRetryPolicy(policy RetryPolicy) {
	c.policy = policy
}

func (c *Consumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Kafka consumer context cancelled")
			return nil
		default:
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return nil
				}
				c.logger.WithError(err).Error("Error consuming from Kafka")
				return err
			}
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.producer.Close(); err != nil {
		c.logger.WithError(err).Error("Failed to close producer")
	}
	if c.group == nil {
		return nil
	}
	return c.group.Close()
}

func (c *Consumer) Metrics() ConsumerMetrics {
	return ConsumerMetrics{
		ProcessedCount: c.processed.Load(),
		RetryCount:     c.retries.Load(),
		DLQCount:       c.dlq.Load(),
		SuccessCount:   c.successes.Load(),
		FailureCount:   c.failures.Load(),
	}
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.logger.Info("Kafka consumer group session setup")
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.logger.Info("Kafka consumer group session cleanup")
	return nil
}

func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			c.process(session.Context(), message)
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			c.logger.Info("Consumer group session context cancelled")
			return nil
		}
	}
}

// process handles one message end to end; failures go to the DLQ.
func (c *Consumer) process(ctx context.Context, message *sarama.ConsumerMessage) {
	c.processed.Add(1)

	if err := c.handleWithRetry(ctx, message); err != nil {
		c.logger.WithError(err).Error("Failed to process message after retries")
		c.failures.Add(1)

		if dlqErr := c.sendToDLQ(message, err); dlqErr != nil {
			c.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
		} else {
			c.dlq.Add(1)
		}
		return
	}
	c.successes.Add(1)
}

func (c *Consumer) handleWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	c.logger.WithFields(logrus.Fields{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
		"key":       string(message.Key),
	}).Info("Processing Kafka message")

	var event OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return fmt.Errorf("unmarshal order event: %w", err)
	}
	if event.Type == "" {
		event.Type = message.Topic
	}

	delay := c.policy.InitialDelay
	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"order_id": event.OrderID,
				"attempt":  attempt,
				"delay":    delay,
			}).Info("Retrying order event")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			c.retries.Add(1)

			delay *= 2
			if delay > c.policy.MaxDelay {
				delay = c.policy.MaxDelay
			}
		}

		lastErr = c.handler.HandleOrderEvent(ctx, event)
		if lastErr == nil {
			return nil
		}
		if !c.handler.IsRetryable(lastErr) {
			c.logger.WithError(lastErr).Error("Non-retryable error encountered")
			return lastErr
		}
		c.logger.WithError(lastErr).WithField("attempt", attempt+1).Warn("Retryable error processing order event")
	}

	return fmt.Errorf("exhausted retries for order %s: %w", event.OrderID, lastErr)
}

func retryCountHeader(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if string(header.Key) == "retry_count" {
			if n, err := strconv.Atoi(string(header.Value)); err == nil {
				return n
			}
		}
	}
	return 0
}

func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, processingError error) error {
	now := time.Now()
	metadata := MessageMetadata{
		RetryCount:    retryCountHeader(message) + 1,
		FirstFailure:  now,
		LastFailure:   now,
		OriginalTopic: message.Topic,
		ErrorMessage:  processingError.Error(),
	}

	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	dlqMessage := &sarama.ProducerMessage{
		Topic: OrderDLQTopic,
		Key:   sarama.ByteEncoder(message.Key),
		Value: sarama.ByteEncoder(message.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("metadata"), Value: metadataBytes},
			{Key: []byte("original_topic"), Value: []byte(message.Topic)},
			{Key: []byte("original_partition"), Value: []byte(strconv.Itoa(int(message.Partition)))},
			{Key: []byte("original_offset"), Value: []byte(strconv.FormatInt(message.Offset, 10))},
			{Key: []byte("failure_time"), Value: []byte(now.Format(time.RFC3339))},
		},
	}

	partition, offset, err := c.producer.SendMessage(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to send to DLQ: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"dlq_topic":     OrderDLQTopic,
		"dlq_partition": partition,
		"dlq_offset":    offset,
		"original_key":  string(message.Key),
		"error":         processingError.Error(),
	}).Warn("Message sent to dead letter queue")

	return nil
}
