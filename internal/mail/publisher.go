package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

const DefaultExchange = "mail.exchange"

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends jobs to a durable topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	mu       sync.Mutex
	logger   *logrus.Logger
}

var _ Sender = (*Publisher)(nil)

func NewPublisher(amqpURL, exchange string, logger *logrus.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *logrus.Logger) *Publisher {
	return &Publisher{channel: ch, exchange: exchange, logger: logger}
}

func (p *Publisher) Send(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal mail job: %w", err)
	}

	p.mu.Lock()
	err = p.channel.Publish(p.exchange, job.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish mail job: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"exchange":    p.exchange,
		"routing_key": job.RoutingKey(),
		"to":          job.To,
	}).Debug("Mail job published")
	return nil
}

func (p *Publisher) Close() error {
	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
