package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jogardn/roastery-orders/internal/api"
	"github.com/jogardn/roastery-orders/internal/auth"
	"github.com/jogardn/roastery-orders/internal/catalog"
	"github.com/jogardn/roastery-orders/internal/mocks"
	"github.com/jogardn/roastery-orders/internal/orders"
	"github.com/jogardn/roastery-orders/internal/store"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	adminToken    = "admin-token"
	customerToken = "customer-token"
)

type harness struct {
	store      *mocks.MockStore
	orderRepo  *mocks.MockOrderRepository
	catalog    *mocks.MockCatalog
	catalogDB  *mocks.MockCatalogRepository
	router     *mux.Router
}

func code(i int) *int { return &i }

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := &harness{
		store:     new(mocks.MockStore),
		orderRepo: new(mocks.MockOrderRepository),
		catalog:   new(mocks.MockCatalog),
		catalogDB: new(mocks.MockCatalogRepository),
	}

	authStore := new(mocks.MockAuthStore)
	future := time.Now().Add(time.Hour)
	authStore.On("GetSession", mock.Anything, adminToken).Return(&models.Session{UserID: "admin", ExpiresAt: future}, nil)
	authStore.On("GetSession", mock.Anything, customerToken).Return(&models.Session{UserID: "cust-1", ExpiresAt: future}, nil)
	authStore.On("GetSession", mock.Anything, mock.Anything).Return(nil, store.ErrNotFound)
	authStore.On("GetUser", mock.Anything, "admin").Return(&models.User{ID: "admin", Role: models.RoleAdmin, IsActive: true}, nil)
	authStore.On("GetUser", mock.Anything, "cust-1").Return(&models.User{
		ID: "cust-1", Name: "Dana", CompanyName: "Corner Cafe", Email: "dana@corner.cafe",
		Role: models.RoleCustomer, CustomerCode: code(7), IsActive: true,
	}, nil)
	authStore.On("DeleteSession", mock.Anything, mock.Anything).Return(nil)

	orderSvc := orders.NewService(h.orderRepo, h.catalog, time.UTC, logger)
	catalogSvc := catalog.NewService(h.catalogDB, logger)
	authSvc := auth.NewService(authStore, time.Hour, logger)

	h.router = api.NewServer(h.store, orderSvc, catalogSvc, authSvc, time.UTC, logger).Router()
	return h
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)
	h.store.On("Ping", mock.Anything).Return(nil).Once()
	assert.Equal(t, http.StatusOK, h.do("GET", "/health", "", nil).Code)

	h.store.On("Ping", mock.Anything).Return(errors.New("connection refused")).Once()
	assert.Equal(t, http.StatusServiceUnavailable, h.do("GET", "/health", "", nil).Code)
}

func TestPreflight(t *testing.T) {
	h := newHarness(t)
	rec := h.do("OPTIONS", "/api/admin/production", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAccessControl(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUnauthorized, h.do("GET", "/api/orders", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do("GET", "/api/orders", "stale", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do("GET", "/api/admin/production", customerToken, nil).Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t)
	rec := h.do("POST", "/api/auth/login", "", map[string]string{"email": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, false, body["success"])
}

func TestPlaceOrder(t *testing.T) {
	h := newHarness(t)
	h.catalog.On("ForCustomer", mock.Anything, "cust-1").Return([]catalog.Entry{
		{Product: models.Product{ID: "house", Name: "House Blend", IsActive: true, IsGlobal: true}, Price: decimal.RequireFromString("12.50")},
	}, nil)
	h.orderRepo.On("CreateOrder", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		o := args.Get(1).(*models.Order)
		o.ID = "order-1"
		o.SequenceNumber = 42
		o.CreatedAt = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	})

	rec := h.do("POST", "/api/orders", customerToken, map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": "house", "quantity": 3}},
		"notes": "leave at the back",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.OrderResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "0007-240305-0042", resp.Order.OrderNumber)
	assert.True(t, resp.Order.TotalAmount.Equal(decimal.RequireFromString("37.5")))
}

func TestPlaceOrderValidation(t *testing.T) {
	h := newHarness(t)
	h.catalog.On("ForCustomer", mock.Anything, "cust-1").Return([]catalog.Entry{}, nil)

	tests := []struct {
		name  string
		body  interface{}
		token string
		want  int
	}{
		{name: "zero quantity", token: customerToken, body: map[string]interface{}{"items": []map[string]interface{}{{"product_id": "house", "quantity": 0}}}, want: http.StatusBadRequest},
		{name: "no items", token: customerToken, body: map[string]interface{}{"items": []interface{}{}}, want: http.StatusBadRequest},
		{name: "hidden product", token: customerToken, body: map[string]interface{}{"items": []map[string]interface{}{{"product_id": "secret", "quantity": 1}}}, want: http.StatusBadRequest},
		{name: "unknown field", token: customerToken, body: map[string]interface{}{"lines": 1}, want: http.StatusBadRequest},
		{name: "admin cannot order", token: adminToken, body: map[string]interface{}{"items": []interface{}{}}, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.do("POST", "/api/orders", tt.token, tt.body).Code)
		})
	}
	h.orderRepo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCustomerCannotSeeOtherOrders(t *testing.T) {
	h := newHarness(t)
	h.orderRepo.On("GetOrder", mock.Anything, "order-x").Return(&models.Order{ID: "order-x", CustomerID: "someone-else"}, nil)
	h.orderRepo.On("GetOrder", mock.Anything, "missing").Return(nil, store.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, h.do("GET", "/api/orders/order-x", customerToken, nil).Code)
	assert.Equal(t, http.StatusOK, h.do("GET", "/api/admin/orders/order-x", adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do("GET", "/api/admin/orders/missing", adminToken, nil).Code)
}

func TestCustomerOrderHistoryIsScoped(t *testing.T) {
	h := newHarness(t)
	h.orderRepo.On("ListOrders", mock.Anything, mock.MatchedBy(func(f store.OrderFilter) bool {
		return f.CustomerID == "cust-1" && !f.IncludeArchived
	})).Return([]models.Order{}, nil)

	rec := h.do("GET", "/api/orders?customer_id=someone-else", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	h.orderRepo.AssertExpectations(t)

	assert.Equal(t, http.StatusBadRequest, h.do("GET", "/api/orders?status=LOST", customerToken, nil).Code)
}

func TestProductionEndpoint(t *testing.T) {
	h := newHarness(t)
	weight := 2.0
	beans := &models.Product{ID: "house", Name: "House Blend", Category: models.CategoryWholeBeans, ProductionWeightPerUnit: &weight}
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	next := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	// last microsecond Postgres can store for the 5th
	lastMicro := next.Add(-time.Microsecond)

	h.orderRepo.On("ListOrders", mock.Anything, mock.MatchedBy(func(f store.OrderFilter) bool {
		return f.From.Equal(start) && f.Before.Equal(next) && f.IncludeArchived && f.Status == string(models.StatusConfirmed)
	})).Return([]models.Order{{
		ID: "a", SequenceNumber: 5, Status: models.StatusConfirmed, CreatedAt: lastMicro,
		Items: []models.OrderItem{{ProductID: "house", Product: beans, Quantity: 3}},
	}}, nil)

	rec := h.do("GET", "/api/admin/production?start=2024-03-04&end=2024-03-05&status=CONFIRMED&includeArchived=true", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var schedule struct {
		TotalOrders     int `json:"total_orders"`
		ProductionItems []struct {
			ProductID             string  `json:"product_id"`
			TotalQuantity         int     `json:"total_quantity"`
			TotalProductionWeight float64 `json:"total_production_weight"`
			ProductionUnit        string  `json:"production_unit"`
		} `json:"production_items"`
	}
	decode(t, rec, &schedule)
	assert.Equal(t, 1, schedule.TotalOrders)
	require.Len(t, schedule.ProductionItems, 1)
	assert.Equal(t, 3, schedule.ProductionItems[0].TotalQuantity)
	assert.InDelta(t, 6.0, schedule.ProductionItems[0].TotalProductionWeight, 1e-9)
	assert.Equal(t, "lbs", schedule.ProductionItems[0].ProductionUnit)
}

func TestProductionEndpointRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	for _, query := range []string{
		"start=03/04/2024",
		"start=2024-03-05&end=2024-03-04",
		"status=LOST",
		"includeArchived=maybe",
	} {
		t.Run(query, func(t *testing.T) {
			rec := h.do("GET", "/api/admin/production?"+query, adminToken, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	h.orderRepo.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything)
}

func TestCreateProduct(t *testing.T) {
	h := newHarness(t)
	h.store.On("CreateProduct", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.Name == "House Blend" && p.IsActive && p.Unit == "5lb bag"
	})).Return(nil)

	rec := h.do("POST", "/api/admin/products", adminToken, map[string]interface{}{
		"name": "House Blend", "category": "WHOLE_BEANS", "unit": "5lb bag", "price": "62.00", "is_global": true,
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for name, body := range map[string]map[string]interface{}{
		"missing name":     {"category": "WHOLE_BEANS", "price": "1"},
		"unknown category": {"name": "x", "category": "TEA", "price": "1"},
		"negative price":   {"name": "x", "category": "ESPRESSO", "price": "-1"},
		"negative weight":  {"name": "x", "category": "ESPRESSO", "price": "1", "production_weight_per_unit": -2},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, h.do("POST", "/api/admin/products", adminToken, body).Code)
		})
	}
}

func TestDeleteProduct(t *testing.T) {
	h := newHarness(t)
	h.store.On("DeleteProduct", mock.Anything, "prod-1").Return(nil)
	h.store.On("DeleteProduct", mock.Anything, "missing").Return(store.ErrNotFound)

	assert.Equal(t, http.StatusOK, h.do("DELETE", "/api/admin/products/prod-1", adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do("DELETE", "/api/admin/products/missing", adminToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do("DELETE", "/api/admin/products/prod-1", customerToken, nil).Code)
	h.store.AssertNumberOfCalls(t, "DeleteProduct", 2)
}

func TestUpdateOrderStatus(t *testing.T) {
	h := newHarness(t)
	h.orderRepo.On("GetOrder", mock.Anything, "order-1").Return(&models.Order{ID: "order-1", Status: models.StatusPending}, nil)
	h.orderRepo.On("UpdateOrderStatus", mock.Anything, "order-1", models.StatusShipped).Return(nil)

	rec := h.do("PATCH", "/api/admin/orders/order-1/status", adminToken, map[string]string{"status": "SHIPPED"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do("PATCH", "/api/admin/orders/order-1/status", adminToken, map[string]string{"status": "shipped-ish"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "invalid order status"))
}

func TestCreateReminderValidation(t *testing.T) {
	h := newHarness(t)
	h.store.On("CreateReminder", mock.Anything, mock.Anything).Return(nil)

	ok := h.do("POST", "/api/admin/reminders", adminToken, map[string]interface{}{"title": "Order day", "weekday": 1, "hour": 9})
	assert.Equal(t, http.StatusCreated, ok.Code)

	bad := h.do("POST", "/api/admin/reminders", adminToken, map[string]interface{}{"title": "Order day", "weekday": 9, "hour": 9})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}
