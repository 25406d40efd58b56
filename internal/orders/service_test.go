package orders_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jogardn/roastery-orders/internal/catalog"
	"github.com/jogardn/roastery-orders/internal/events"
	"github.com/jogardn/roastery-orders/internal/mocks"
	"github.com/jogardn/roastery-orders/internal/orders"
	"github.com/jogardn/roastery-orders/internal/production"
	"github.com/jogardn/roastery-orders/internal/store"
	"github.com/jogardn/roastery-orders/internal/websocket"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(i int) *int { return &i }

var cafe = &models.User{
	ID:           "cust-1",
	Name:         "Dana",
	CompanyName:  "Corner Cafe",
	Email:        "dana@corner.cafe",
	Role:         models.RoleCustomer,
	CustomerCode: intPtr(7),
	IsActive:     true,
}

func visibleCatalog() []catalog.Entry {
	return []catalog.Entry{
		{Product: models.Product{ID: "house", Name: "House Blend", IsActive: true, IsGlobal: true}, Price: dec("12.50")},
		{Product: models.Product{ID: "reserve", Name: "Reserve", IsActive: true}, Price: dec("35.00"), IsCustomPrice: true, IsAssigned: true},
	}
}

type fixture struct {
	repo      *mocks.MockOrderRepository
	catalog   *mocks.MockCatalog
	publisher *mocks.MockPublisher
	hub       *mocks.MockBroadcaster
	svc       *orders.Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:      new(mocks.MockOrderRepository),
		catalog:   new(mocks.MockCatalog),
		publisher: new(mocks.MockPublisher),
		hub:       new(mocks.MockBroadcaster),
	}
	f.svc = orders.NewService(f.repo, f.catalog, time.UTC, testLogger())
	f.svc.SetPublisher(f.publisher)
	f.svc.SetBroadcaster(f.hub)
	return f
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	f.catalog.On("ForCustomer", ctx, "cust-1").Return(visibleCatalog(), nil)
	f.repo.On("CreateOrder", ctx, mock.AnythingOfType("*models.Order")).Return(nil).Run(func(args mock.Arguments) {
		o := args.Get(1).(*models.Order)
		o.ID = "order-1"
		o.SequenceNumber = 42
		o.CreatedAt = created
	})
	f.publisher.On("Publish", ctx, mock.MatchedBy(func(e events.OrderEvent) bool {
		return e.Type == events.OrderCreatedTopic && e.OrderNumber == "0007-240305-0042" && e.ItemCount == 3
	})).Return(nil)
	f.hub.On("Broadcast", websocket.OrderCreated, mock.AnythingOfType("*models.Order")).Return()

	order, err := f.svc.PlaceOrder(ctx, cafe, []orders.LineRequest{
		{ProductID: "house", Quantity: 4},
		{ProductID: "reserve", Quantity: 1},
		{ProductID: "house", Quantity: 2},
	}, "back door")
	require.NoError(t, err)

	assert.Equal(t, "0007-240305-0042", order.OrderNumber)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "Corner Cafe", order.CustomerName)
	require.Len(t, order.Items, 3, "duplicate product lines stay separate")
	assert.True(t, order.Items[1].UnitPrice.Equal(dec("35")), "custom price is snapshotted")
	assert.True(t, order.TotalAmount.Equal(dec("110")))

	f.repo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
	f.hub.AssertExpectations(t)
}

func TestPlaceOrderRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		lines   []orders.LineRequest
		wantErr error
	}{
		{name: "empty", wantErr: orders.ErrEmptyOrder},
		{name: "zero quantity", lines: []orders.LineRequest{{ProductID: "house", Quantity: 0}}, wantErr: orders.ErrInvalidQuantity},
		{name: "negative quantity", lines: []orders.LineRequest{{ProductID: "house", Quantity: -3}}, wantErr: orders.ErrInvalidQuantity},
		{name: "hidden product", lines: []orders.LineRequest{{ProductID: "private", Quantity: 1}}, wantErr: orders.ErrProductNotVisible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.catalog.On("ForCustomer", mock.Anything, "cust-1").Return(visibleCatalog(), nil).Maybe()

			_, err := f.svc.PlaceOrder(context.Background(), cafe, tt.lines, "")
			assert.ErrorIs(t, err, tt.wantErr)
			f.repo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
			f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestPlaceOrderSurvivesPublishFailure(t *testing.T) {
	f := newFixture()
	f.catalog.On("ForCustomer", mock.Anything, "cust-1").Return(visibleCatalog(), nil)
	f.repo.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("circuit breaker is open"))
	f.hub.On("Broadcast", mock.Anything, mock.Anything).Return()

	order, err := f.svc.PlaceOrder(context.Background(), cafe, []orders.LineRequest{{ProductID: "house", Quantity: 1}}, "")
	require.NoError(t, err)
	assert.NotNil(t, order)
}

func TestReorderSkipsUnavailableProducts(t *testing.T) {
	f := newFixture()
	previous := &models.Order{
		ID:         "order-0",
		CustomerID: "cust-1",
		Items: []models.OrderItem{
			{ProductID: "house", Quantity: 6, UnitPrice: dec("11.00")},
			{ProductID: "retired", Quantity: 2, UnitPrice: dec("9.00")},
		},
	}
	f.repo.On("GetOrder", mock.Anything, "order-0").Return(previous, nil)
	f.catalog.On("ForCustomer", mock.Anything, "cust-1").Return(visibleCatalog(), nil)
	f.repo.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f.hub.On("Broadcast", mock.Anything, mock.Anything).Return()

	order, err := f.svc.Reorder(context.Background(), cafe, "order-0")
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 6, order.Items[0].Quantity)
	assert.True(t, order.Items[0].UnitPrice.Equal(dec("12.50")), "reorder uses current price")
}

func TestReorderWithNothingAvailable(t *testing.T) {
	f := newFixture()
	f.repo.On("GetOrder", mock.Anything, "order-0").Return(&models.Order{
		ID: "order-0", CustomerID: "cust-1",
		Items: []models.OrderItem{{ProductID: "retired", Quantity: 2}},
	}, nil)
	f.catalog.On("ForCustomer", mock.Anything, "cust-1").Return(visibleCatalog(), nil)

	_, err := f.svc.Reorder(context.Background(), cafe, "order-0")
	assert.ErrorIs(t, err, orders.ErrNothingToReorder)
}

func TestGetHidesOtherCustomersOrders(t *testing.T) {
	f := newFixture()
	f.repo.On("GetOrder", mock.Anything, "order-9").Return(&models.Order{ID: "order-9", CustomerID: "someone-else"}, nil)

	_, err := f.svc.Get(context.Background(), cafe, "order-9")
	assert.ErrorIs(t, err, store.ErrNotFound)

	admin := &models.User{ID: "admin", Role: models.RoleAdmin}
	order, err := f.svc.Get(context.Background(), admin, "order-9")
	require.NoError(t, err)
	assert.Equal(t, "ORDER9", order.OrderNumber, "unsequenced orders fall back to the short id")
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	f.repo.On("GetOrder", mock.Anything, "order-1").Return(&models.Order{
		ID: "order-1", SequenceNumber: 3, CustomerID: "cust-1", Status: models.StatusPending,
		CreatedAt: time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
	}, nil)
	f.repo.On("UpdateOrderStatus", mock.Anything, "order-1", models.StatusShipped).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.OrderEvent) bool {
		return e.Type == events.OrderStatusChangedTopic &&
			e.Status == models.StatusShipped &&
			e.PreviousStatus == models.StatusPending
	})).Return(nil)
	f.hub.On("Broadcast", websocket.OrderStatusChanged, mock.Anything).Return()

	order, err := f.svc.UpdateStatus(context.Background(), "order-1", models.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, order.Status)
	assert.Equal(t, "0000-240102-0003", order.OrderNumber)
	f.publisher.AssertExpectations(t)
}

func TestUpdateStatusValidation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.UpdateStatus(context.Background(), "order-1", models.OrderStatus("LOST"))
	assert.ErrorIs(t, err, orders.ErrInvalidStatus)

	f.repo.On("GetOrder", mock.Anything, "order-2").Return(&models.Order{ID: "order-2", Status: models.StatusConfirmed}, nil)
	_, err = f.svc.UpdateStatus(context.Background(), "order-2", models.StatusConfirmed)
	require.NoError(t, err)
	f.repo.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestProductionSchedule(t *testing.T) {
	f := newFixture()
	weight := 2.5
	beans := &models.Product{ID: "house", Name: "House Blend", ProductionWeightPerUnit: &weight}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)

	f.repo.On("ListOrders", mock.Anything, mock.MatchedBy(func(filter store.OrderFilter) bool {
		return filter.ExcludeCancelled && filter.OldestFirst && filter.Status == "" &&
			filter.From.Equal(start) && filter.Before.Equal(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	})).Return([]models.Order{
		{ID: "a", SequenceNumber: 1, Status: models.StatusPending, CreatedAt: start.Add(time.Hour),
			Items: []models.OrderItem{{ProductID: "house", Product: beans, Quantity: 4}}},
		{ID: "b", SequenceNumber: 2, Status: models.StatusConfirmed, CreatedAt: start.Add(2 * time.Hour),
			Items: []models.OrderItem{{ProductID: "house", Product: beans, Quantity: 2}}},
	}, nil)

	schedule, err := f.svc.ProductionSchedule(context.Background(), production.Options{
		StartDate:    start,
		EndDate:      end,
		StatusFilter: production.StatusFilterAll,
	})
	require.NoError(t, err)
	require.Len(t, schedule.ProductionItems, 1)
	assert.Equal(t, 6, schedule.ProductionItems[0].TotalQuantity)
	assert.InDelta(t, 15.0, schedule.ProductionItems[0].TotalProductionWeight, 1e-9)
	assert.Equal(t, "0000-240301-0001", schedule.ProductionItems[0].Orders[0].OrderNumber)
}
