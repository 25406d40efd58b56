// Package orders places, reorders and moves wholesale orders through their
// lifecycle.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jogardn/roastery-orders/internal/catalog"
	"github.com/jogardn/roastery-orders/internal/events"
	"github.com/jogardn/roastery-orders/internal/ordernum"
	"github.com/jogardn/roastery-orders/internal/production"
	"github.com/jogardn/roastery-orders/internal/store"
	"github.com/jogardn/roastery-orders/internal/websocket"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyOrder        = errors.New("order has no line items")
	ErrInvalidQuantity   = errors.New("quantity must be a positive whole number")
	ErrProductNotVisible = errors.New("product is not available to this customer")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrNothingToReorder  = errors.New("none of the products on this order are still available")
)

type Repository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error
	SetOrderArchived(ctx context.Context, id string, archived bool) error
}

type Catalog interface {
	ForCustomer(ctx context.Context, customerID string) ([]catalog.Entry, error)
}

type Broadcaster interface {
	Broadcast(messageType string, data interface{})
}

type LineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Service struct {
	repo      Repository
	catalog   Catalog
	publisher events.Publisher
	hub       Broadcaster
	loc       *time.Location
	logger    *logrus.Logger
}

func NewService(repo Repository, cat Catalog, loc *time.Location, logger *logrus.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, catalog: cat, loc: loc, logger: logger}
}

// SetPublisher enables Kafka order events. Without one, orders are still
// stored but nothing downstream hears about them.
func (s *Service) SetPublisher(p events.Publisher) {
	s.publisher = p
}

func (s *Service) SetBroadcaster(hub Broadcaster) {
	s.hub = hub
}

// PlaceOrder prices each line from the customer's visible catalog and stores
// the order. Duplicate product lines stay separate line items.
func (s *Service) PlaceOrder(ctx context.Context, customer *models.User, lines []LineRequest, notes string) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s quantity %d", ErrInvalidQuantity, line.ProductID, line.Quantity)
		}
	}

	entries, err := s.catalog.ForCustomer(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	visible := catalog.Index(entries)

	order := &models.Order{
		CustomerID:    customer.ID,
		CustomerName:  customer.DisplayName(),
		CustomerEmail: customer.Email,
		CustomerCode:  customer.CustomerCode,
		Status:        models.StatusPending,
		Notes:         notes,
		Items:         make([]models.OrderItem, 0, len(lines)),
	}
	for _, line := range lines {
		entry, ok := visible[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotVisible, line.ProductID)
		}
		product := entry.Product
		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.ProductID,
			Product:   &product,
			Quantity:  line.Quantity,
			UnitPrice: entry.Price,
		})
	}
	order.TotalAmount = order.ComputeTotal()

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	order.OrderNumber = ordernum.Display(order, s.loc)

	s.logger.WithFields(logrus.Fields{
		"order_id":        order.ID,
		"order_number":    order.OrderNumber,
		"customer_id":     customer.ID,
		"sequence_number": order.SequenceNumber,
		"total_amount":    order.TotalAmount.StringFixed(2),
	}).Info("Order placed")

	s.publish(ctx, events.NewOrderEvent(events.OrderCreatedTopic, order))
	s.broadcast(websocket.OrderCreated, order)
	return order, nil
}

// Reorder places a new order with the quantities of an earlier one at
// today's prices. Products the customer can no longer see are skipped.
func (s *Service) Reorder(ctx context.Context, customer *models.User, orderID string) (*models.Order, error) {
	previous, err := s.Get(ctx, customer, orderID)
	if err != nil {
		return nil, err
	}

	entries, err := s.catalog.ForCustomer(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	visible := catalog.Index(entries)

	lines := make([]LineRequest, 0, len(previous.Items))
	for _, item := range previous.Items {
		if _, ok := visible[item.ProductID]; !ok {
			s.logger.WithFields(logrus.Fields{
				"order_id":   orderID,
				"product_id": item.ProductID,
			}).Info("Skipping product no longer available for reorder")
			continue
		}
		lines = append(lines, LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if len(lines) == 0 {
		return nil, ErrNothingToReorder
	}
	return s.PlaceOrder(ctx, customer, lines, previous.Notes)
}

// Get loads an order. Customers asking for someone else's order get
// store.ErrNotFound, the same as for a missing one.
func (s *Service) Get(ctx context.Context, viewer *models.User, id string) (*models.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer != nil && viewer.Role != models.RoleAdmin && order.CustomerID != viewer.ID {
		return nil, store.ErrNotFound
	}
	order.OrderNumber = ordernum.Display(order, s.loc)
	return order, nil
}

func (s *Service) List(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	list, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].OrderNumber = ordernum.Display(&list[i], s.loc)
	}
	return list, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := order.Status
	if previous == status {
		order.OrderNumber = ordernum.Display(order, s.loc)
		return order, nil
	}

	if err := s.repo.UpdateOrderStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	order.OrderNumber = ordernum.Display(order, s.loc)

	s.logger.WithFields(logrus.Fields{
		"order_id":        id,
		"previous_status": previous,
		"status":          status,
	}).Info("Order status changed")

	event := events.NewOrderEvent(events.OrderStatusChangedTopic, order)
	event.PreviousStatus = previous
	s.publish(ctx, event)
	s.broadcast(websocket.OrderStatusChanged, order)
	return order, nil
}

func (s *Service) SetArchived(ctx context.Context, id string, archived bool) (*models.Order, error) {
	if err := s.repo.SetOrderArchived(ctx, id, archived); err != nil {
		return nil, err
	}
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	order.OrderNumber = ordernum.Display(order, s.loc)

	s.logger.WithFields(logrus.Fields{
		"order_id": id,
		"archived": archived,
	}).Info("Order archive flag changed")
	s.broadcast(websocket.OrderArchived, order)
	return order, nil
}

// ProductionSchedule loads candidate orders for the date range and hands
// them to the aggregator, which applies the remaining filters.
func (s *Service) ProductionSchedule(ctx context.Context, opts production.Options) (*production.Schedule, error) {
	filter := store.OrderFilter{
		IncludeArchived:  opts.IncludeArchived,
		ExcludeCancelled: true,
		OldestFirst:      true,
		From:             opts.StartDate,
	}
	if !opts.EndDate.IsZero() {
		// EndDate is inclusive at nanosecond resolution.
		filter.Before = opts.EndDate.Add(time.Nanosecond)
	}
	if opts.StatusFilter != production.StatusFilterAll {
		filter.Status = opts.StatusFilter
	}

	list, err := s.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load orders for production: %w", err)
	}
	return production.Aggregate(list, opts)
}

func (s *Service) publish(ctx context.Context, event events.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("order_id", event.OrderID).Warn("Order event not published")
	}
}

func (s *Service) broadcast(messageType string, order *models.Order) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(messageType, order)
}

