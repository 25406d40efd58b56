// Package api is the storefront's JSON HTTP surface.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jogardn/roastery-orders/internal/auth"
	"github.com/jogardn/roastery-orders/internal/catalog"
	"github.com/jogardn/roastery-orders/internal/orders"
	"github.com/jogardn/roastery-orders/internal/production"
	"github.com/jogardn/roastery-orders/internal/reminders"
	"github.com/jogardn/roastery-orders/internal/store"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/sirupsen/logrus"
)

// Store is the persistence the handlers use directly. Orders and catalog
// resolution go through their services instead.
type Store interface {
	Ping(ctx context.Context) error

	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, includeInactive bool) ([]models.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListCustomers(ctx context.Context, activeOnly bool) ([]models.User, error)
	ListAssignments(ctx context.Context, customerID string) ([]models.CustomerProductAssignment, error)

	GetBranding(ctx context.Context) (*models.Branding, error)
	UpdateBranding(ctx context.Context, b *models.Branding) error

	CreateReminder(ctx context.Context, r *models.Reminder) error
	UpdateReminder(ctx context.Context, r *models.Reminder) error
	DeleteReminder(ctx context.Context, id string) error
	ListReminders(ctx context.Context, activeOnly bool) ([]models.Reminder, error)
}

// HealthCheck reports on one optional dependency for /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	store   Store
	orders  *orders.Service
	catalog *catalog.Service
	auth    *auth.Service
	feed    http.Handler
	checks  []HealthCheck
	loc     *time.Location
	now     func() time.Time
	logger  *logrus.Logger
}

func NewServer(st Store, orderSvc *orders.Service, catalogSvc *catalog.Service, authSvc *auth.Service, loc *time.Location, logger *logrus.Logger) *Server {
	if loc == nil {
		loc = time.Local
	}
	return &Server{
		store:   st,
		orders:  orderSvc,
		catalog: catalogSvc,
		auth:    authSvc,
		loc:     loc,
		now:     time.Now,
		logger:  logger,
	}
}

// SetFeed mounts the admin live feed at /api/admin/ws.
func (s *Server) SetFeed(feed http.Handler) {
	s.feed = feed
}

func (s *Server) AddHealthCheck(name string, check func(ctx context.Context) error) {
	s.checks = append(s.checks, HealthCheck{Name: name, Check: check})
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware())
	router.Use(loggingMiddleware(s.logger))

	// Preflight requests land here as a method mismatch; corsMiddleware
	// answers them before the 405.
	router.MethodNotAllowedHandler = corsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}))
	router.HandleFunc("/health", s.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.Login).Methods("POST")
	api.HandleFunc("/branding", s.GetBranding).Methods("GET")

	authed := api.NewRoute().Subrouter()
	authed.Use(s.auth.RequireAuth)
	authed.HandleFunc("/auth/logout", s.Logout).Methods("POST")
	authed.HandleFunc("/me", s.Me).Methods("GET")
	authed.HandleFunc("/catalog", s.Catalog).Methods("GET")
	authed.HandleFunc("/orders", s.ListMyOrders).Methods("GET")
	authed.HandleFunc("/orders", s.PlaceOrder).Methods("POST")
	authed.HandleFunc("/orders/{id}", s.GetOrder).Methods("GET")
	authed.HandleFunc("/orders/{id}/reorder", s.Reorder).Methods("POST")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.auth.RequireAuth, auth.RequireRole(models.RoleAdmin))
	admin.HandleFunc("/products", s.ListProducts).Methods("GET")
	admin.HandleFunc("/products", s.CreateProduct).Methods("POST")
	admin.HandleFunc("/products/{id}", s.GetProduct).Methods("GET")
	admin.HandleFunc("/products/{id}", s.UpdateProduct).Methods("PUT")
	admin.HandleFunc("/products/{id}", s.DeleteProduct).Methods("DELETE")
	admin.HandleFunc("/customers", s.ListCustomers).Methods("GET")
	admin.HandleFunc("/customers", s.CreateCustomer).Methods("POST")
	admin.HandleFunc("/customers/{id}", s.GetCustomer).Methods("GET")
	admin.HandleFunc("/customers/{id}", s.UpdateCustomer).Methods("PUT")
	admin.HandleFunc("/customers/{id}/assignments", s.ListAssignments).Methods("GET")
	admin.HandleFunc("/customers/{id}/assignments", s.ReplaceAssignments).Methods("PUT")
	admin.HandleFunc("/orders", s.ListAllOrders).Methods("GET")
	admin.HandleFunc("/orders/{id}", s.GetOrder).Methods("GET")
	admin.HandleFunc("/orders/{id}/status", s.UpdateOrderStatus).Methods("PATCH")
	admin.HandleFunc("/orders/{id}/archive", s.ArchiveOrder).Methods("PATCH")
	admin.HandleFunc("/production", s.Production).Methods("GET")
	admin.HandleFunc("/branding", s.UpdateBranding).Methods("PUT")
	admin.HandleFunc("/reminders", s.ListReminders).Methods("GET")
	admin.HandleFunc("/reminders", s.CreateReminder).Methods("POST")
	admin.HandleFunc("/reminders/{id}", s.UpdateReminder).Methods("PUT")
	admin.HandleFunc("/reminders/{id}", s.DeleteReminder).Methods("DELETE")
	if s.feed != nil {
		admin.Handle("/ws", s.feed)
	}

	return router
}

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"service": "storefront",
			"error":   "database connection failed",
		})
		return
	}

	deps := make(map[string]string, len(s.checks))
	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			deps[check.Name] = "degraded: " + err.Error()
			continue
		}
		deps[check.Name] = "healthy"
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"service":      "storefront",
		"dependencies": deps,
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

var errBadRequest = errors.New("bad request")

// respondWithServiceError maps domain errors to status codes. Anything
// unrecognised is logged and reported as a 500 without details.
func (s *Server) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errBadRequest),
		errors.Is(err, orders.ErrEmptyOrder),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrProductNotVisible),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, catalog.ErrInvalidAssignment),
		errors.Is(err, reminders.ErrInvalidReminder),
		errors.Is(err, auth.ErrWeakPassword):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrNothingToReorder):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, production.ErrInvalidWeight), errors.Is(err, production.ErrInvalidLineItem):
		s.logger.WithError(err).Error("Production data is inconsistent")
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Request failed")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func currentUser(r *http.Request) *models.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps the admin websocket upgrade working through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}

func corsMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
