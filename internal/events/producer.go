package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/jogardn/roastery-orders/internal/circuitbreaker"
	"github.com/sirupsen/logrus"
)

type KafkaProducer struct {
	producer sarama.SyncProducer
	breaker  *circuitbreaker.CircuitBreaker
	logger   *logrus.Logger
}

func ProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0
	return config
}

func NewKafkaProducer(brokers string, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), ProducerConfig())
	if err != nil {
		return nil, err
	}
	return NewKafkaProducerFrom(producer, breaker, logger), nil
}

// NewKafkaProducerFrom wraps an existing sync producer. breaker may be nil.
func NewKafkaProducerFrom(producer sarama.SyncProducer, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) *KafkaProducer {
	return &KafkaProducer{
		producer: producer,
		breaker:  breaker,
		logger:   logger,
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, event OrderEvent) error {
	if event.EventTime.IsZero() {
		event.EventTime = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: event.Type,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(data),
	}

	send := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		partition, offset, err := p.producer.SendMessage(msg)
		if err != nil {
			return err
		}
		p.logger.WithFields(logrus.Fields{
			"topic":     event.Type,
			"partition": partition,
			"offset":    offset,
			"order_id":  event.OrderID,
		}).Info("Event published to Kafka")
		return nil
	}

	if p.breaker != nil {
		err = p.breaker.Execute(send)
	} else {
		err = send()
	}
	if err != nil {
		p.logger.WithError(err).WithField("order_id", event.OrderID).Error("Failed to send message to Kafka")
	}
	return err
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
