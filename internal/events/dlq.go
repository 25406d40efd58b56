package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

var (
	ErrReplayLimit     = errors.New("exceeded maximum replay attempts")
	ErrCorruptMetadata = errors.New("corrupt DLQ metadata header")
)

// DLQProcessor sends dead-lettered order events back to their original
// topic after a cool-down, up to MaxReplays times.
type DLQProcessor struct {
	group      sarama.ConsumerGroup
	producer   sarama.SyncProducer
	logger     *logrus.Logger
	MaxReplays int
	Cooldown   time.Duration
}

func NewDLQProcessor(brokers, groupID string, logger *logrus.Logger) (*DLQProcessor, error) {
	addrs := strings.Split(brokers, ",")
	group, err := sarama.NewConsumerGroup(addrs, groupID, ConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create DLQ consumer: %w", err)
	}

	producer, err := sarama.NewSyncProducer(addrs, ProducerConfig())
	if err != nil {
		group.Close()
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	p := newDLQProcessor(producer, logger)
	p.group = group
	return p, nil
}

func newDLQProcessor(producer sarama.SyncProducer, logger *logrus.Logger) *DLQProcessor {
	return &DLQProcessor{
		producer:   producer,
		logger:     logger,
		MaxReplays: DefaultRetryPolicy.MaxRetries * 2,
		Cooldown:   30 * time.Second,
	}
}

func (p *DLQProcessor) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("DLQ processor context cancelled")
			return nil
		default:
			if err := p.group.Consume(ctx, []string{OrderDLQTopic}, p); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return nil
				}
				p.logger.WithError(err).Error("Error consuming from DLQ")
				return err
			}
		}
	}
}

// ExtractMetadata decodes the metadata header written when a message was
// dead-lettered. A message without the header yields zero metadata.
func ExtractMetadata(message *sarama.ConsumerMessage) (MessageMetadata, error) {
	var metadata MessageMetadata
	for _, header := range message.Headers {
		if string(header.Key) == "metadata" {
			if err := json.Unmarshal(header.Value, &metadata); err != nil {
				return MessageMetadata{}, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
			}
			break
		}
	}
	return metadata, nil
}

// Replay republishes a dead-lettered message. Messages whose metadata cannot
// be read are not replayed: their replay count is unknown.
func (p *DLQProcessor) Replay(message *sarama.ConsumerMessage) error {
	metadata, err := ExtractMetadata(message)
	if err != nil {
		p.logger.WithError(err).WithField("order_key", string(message.Key)).Error("Failed to unmarshal metadata")
		return err
	}

	if metadata.RetryCount >= p.MaxReplays {
		p.logger.WithFields(logrus.Fields{
			"order_key":   string(message.Key),
			"retry_count": metadata.RetryCount,
		}).Error("Message exceeded maximum replay attempts")
		return ErrReplayLimit
	}

	topic := metadata.OriginalTopic
	if topic == "" {
		topic = OrderCreatedTopic
	}

	replay := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.ByteEncoder(message.Key),
		Value: sarama.ByteEncoder(message.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("retry_count"), Value: []byte(strconv.Itoa(metadata.RetryCount))},
			{Key: []byte("replayed_from_dlq"), Value: []byte("true")},
			{Key: []byte("replay_time"), Value: []byte(time.Now().Format(time.RFC3339))},
		},
	}

	partition, offset, err := p.producer.SendMessage(replay)
	if err != nil {
		return fmt.Errorf("failed to replay message: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"replay_topic":     topic,
		"replay_partition": partition,
		"replay_offset":    offset,
		"order_key":        string(message.Key),
	}).Info("Message replayed from DLQ")
	return nil
}

func (p *DLQProcessor) Close() error {
	if err := p.producer.Close(); err != nil {
		p.logger.WithError(err).Error("Failed to close producer")
	}
	if p.group == nil {
		return nil
	}
	return p.group.Close()
}

func (p *DLQProcessor) Setup(sarama.ConsumerGroupSession) error {
	p.logger.Info("DLQ consumer session setup")
	return nil
}

func (p *DLQProcessor) Cleanup(sarama.ConsumerGroupSession) error {
	p.logger.Info("DLQ consumer session cleanup")
	return nil
}

func (p *DLQProcessor) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			metadata, _ := ExtractMetadata(message)
			p.logger.WithFields(logrus.Fields{
				"original_topic": metadata.OriginalTopic,
				"retry_count":    metadata.RetryCount,
				"last_failure":   metadata.LastFailure,
				"error_message":  metadata.ErrorMessage,
				"key":            string(message.Key),
			}).Warn("DLQ message received")

			select {
			case <-time.After(p.Cooldown):
			case <-session.Context().Done():
				return nil
			}

			if err := p.Replay(message); err != nil {
				p.logger.WithError(err).Error("Failed to replay DLQ message")
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
