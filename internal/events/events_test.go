package events

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/jogardn/roastery-orders/internal/circuitbreaker"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("mail broker unavailable")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type scriptedHandler struct {
	mu        sync.Mutex
	results   []error
	calls     int
	retryable bool
}

func (h *scriptedHandler) HandleOrderEvent(ctx context.Context, event OrderEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if len(h.results) == 0 {
		return nil
	}
	err := h.results[0]
	h.results = h.results[1:]
	return err
}

func (h *scriptedHandler) IsRetryable(err error) bool {
	return h.retryable
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:            "order-1",
		OrderNumber:   "0007-240305-0042",
		CustomerID:    "cust-1",
		CustomerName:  "Corner Cafe",
		CustomerEmail: "owner@corner.cafe",
		Status:        models.StatusPending,
		Items:         []models.OrderItem{{ProductID: "p", Quantity: 2}},
		TotalAmount:   decimal.RequireFromString("85.00"),
		CreatedAt:     time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func eventMessage(t *testing.T, topic string) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(NewOrderEvent(topic, sampleOrder()))
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: topic, Key: []byte("order-1"), Value: data}
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestProducerPublishesOrderEvent(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event OrderEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.OrderNumber != "0007-240305-0042" || event.EventTime.IsZero() {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	producer := NewKafkaProducerFrom(mock, nil, quietLogger())
	require.NoError(t, producer.Publish(context.Background(), NewOrderEvent(OrderCreatedTopic, sampleOrder())))
	require.NoError(t, producer.Close())
}

func TestProducerTripsBreaker(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "kafka", MaxFailures: 1, Timeout: time.Minute}, quietLogger())
	producer := NewKafkaProducerFrom(mock, breaker, quietLogger())
	event := NewOrderEvent(OrderCreatedTopic, sampleOrder())

	assert.ErrorIs(t, producer.Publish(context.Background(), event), sarama.ErrOutOfBrokers)
	assert.ErrorIs(t, producer.Publish(context.Background(), event), circuitbreaker.ErrCircuitBreakerOpen)
	require.NoError(t, producer.Close())
}

func TestConsumerRetriesThenSucceeds(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	handler := &scriptedHandler{results: []error{errTransient, nil}, retryable: true}
	c := newConsumer(handler, mock, quietLogger())
	c.SetRetryPolicy(fastPolicy())

	c.process(context.Background(), eventMessage(t, OrderCreatedTopic))

	m := c.Metrics()
	assert.Equal(t, 2, handler.calls)
	assert.Equal(t, int64(1), m.SuccessCount)
	assert.Equal(t, int64(1), m.RetryCount)
	assert.Zero(t, m.DLQCount)
	require.NoError(t, mock.Close())
}

func TestConsumerSendsExhaustedMessageToDLQ(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndSucceed()
	handler := &scriptedHandler{results: []error{errTransient, errTransient, errTransient}, retryable: true}
	c := newConsumer(handler, mock, quietLogger())
	c.SetRetryPolicy(fastPolicy())

	c.process(context.Background(), eventMessage(t, OrderStatusChangedTopic))

	m := c.Metrics()
	assert.Equal(t, 3, handler.calls)
	assert.Equal(t, int64(1), m.FailureCount)
	assert.Equal(t, int64(1), m.DLQCount)
	require.NoError(t, mock.Close())
}

func TestConsumerDoesNotRetryPermanentErrors(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndSucceed()
	handler := &scriptedHandler{results: []error{errors.New("bad address")}, retryable: false}
	c := newConsumer(handler, mock, quietLogger())
	c.SetRetryPolicy(fastPolicy())

	c.process(context.Background(), eventMessage(t, OrderCreatedTopic))

	assert.Equal(t, 1, handler.calls)
	assert.Zero(t, c.Metrics().RetryCount)
	require.NoError(t, mock.Close())
}

func TestConsumerDeadLettersUndecodableMessage(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndSucceed()
	handler := &scriptedHandler{}
	c := newConsumer(handler, mock, quietLogger())

	c.process(context.Background(), &sarama.ConsumerMessage{Topic: OrderCreatedTopic, Value: []byte("{not json")})

	assert.Zero(t, handler.calls)
	assert.Equal(t, int64(1), c.Metrics().DLQCount)
	require.NoError(t, mock.Close())
}

func dlqMessage(t *testing.T, retryCount int) *sarama.ConsumerMessage {
	t.Helper()
	metadata, err := json.Marshal(MessageMetadata{RetryCount: retryCount, OriginalTopic: OrderStatusChangedTopic})
	require.NoError(t, err)
	msg := eventMessage(t, OrderStatusChangedTopic)
	msg.Topic = OrderDLQTopic
	msg.Headers = []*sarama.RecordHeader{{Key: []byte("metadata"), Value: metadata}}
	return msg
}

func TestDLQReplay(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndSucceed()
	p := newDLQProcessor(mock, quietLogger())

	require.NoError(t, p.Replay(dlqMessage(t, 1)))
	assert.ErrorIs(t, p.Replay(dlqMessage(t, p.MaxReplays)), ErrReplayLimit)
	require.NoError(t, mock.Close())
}

func TestDLQReplaySkipsCorruptMetadata(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	p := newDLQProcessor(mock, quietLogger())

	msg := dlqMessage(t, 1)
	msg.Headers = []*sarama.RecordHeader{{Key: []byte("metadata"), Value: []byte(`{"retry_count":`)}}

	err := p.Replay(msg)
	assert.ErrorIs(t, err, ErrCorruptMetadata)
	// no SendMessage expectation: Close fails if anything was produced
	require.NoError(t, mock.Close())
}

func TestExtractMetadata(t *testing.T) {
	metadata, err := ExtractMetadata(dlqMessage(t, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, metadata.RetryCount)
	assert.Equal(t, OrderStatusChangedTopic, metadata.OriginalTopic)

	metadata, err = ExtractMetadata(&sarama.ConsumerMessage{})
	require.NoError(t, err)
	assert.Zero(t, metadata.RetryCount)

	_, err = ExtractMetadata(&sarama.ConsumerMessage{Headers: []*sarama.RecordHeader{
		{Key: []byte("metadata"), Value: []byte("not json")},
	}})
	assert.ErrorIs(t, err, ErrCorruptMetadata)
}

func TestRetryCountHeader(t *testing.T) {
	msg := &sarama.ConsumerMessage{Headers: []*sarama.RecordHeader{
		{Key: []byte("retry_count"), Value: []byte(strconv.Itoa(4))},
	}}
	assert.Equal(t, 4, retryCountHeader(msg))
	assert.Zero(t, retryCountHeader(&sarama.ConsumerMessage{}))
}
