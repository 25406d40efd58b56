package events

import (
	"context"
	"time"

	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	OrderCreatedTopic       = "order.created"
	OrderStatusChangedTopic = "order.status_changed"
	OrderDLQTopic           = "orders.dlq"
)

var OrderTopics = []string{OrderCreatedTopic, OrderStatusChangedTopic}

type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        string             `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	CustomerID     string             `json:"customer_id"`
	CustomerName   string             `json:"customer_name"`
	CustomerEmail  string             `json:"customer_email"`
	Status         models.OrderStatus `json:"status"`
	PreviousStatus models.OrderStatus `json:"previous_status,omitempty"`
	ItemCount      int                `json:"item_count"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	CreatedAt      time.Time          `json:"created_at"`
	EventTime      time.Time          `json:"event_time"`
}

func NewOrderEvent(topic string, order *models.Order) OrderEvent {
	return OrderEvent{
		Type:          topic,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Status:        order.Status,
		ItemCount:     len(order.Items),
		TotalAmount:   order.TotalAmount,
		CreatedAt:     order.CreatedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

type OrderEventHandler interface {
	HandleOrderEvent(ctx context.Context, event OrderEvent) error
	IsRetryable(err error) bool
}
