package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jogardn/roastery-orders/internal/auth"
	"github.com/jogardn/roastery-orders/internal/catalog"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Catalog lists what the caller can order. Admins see every active product
// at list price.
func (s *Server) Catalog(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var entries []catalog.Entry
	var err error

	if user.Role == models.RoleAdmin {
		var products []models.Product
		products, err = s.store.ListProducts(r.Context(), false)
		if err == nil {
			for i := range products {
				products[i].IsGlobal = true
			}
			entries = catalog.Resolve(products, nil)
		}
	} else {
		entries, err = s.catalog.ForCustomer(r.Context(), user.ID)
	}
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"products":   entries,
		"count":      len(entries),
		"categories": models.Categories,
	})
}

type productRequest struct {
	Name                    string          `json:"name"`
	Description             string          `json:"description"`
	Category                models.Category `json:"category"`
	Unit                    string          `json:"unit"`
	Price                   decimal.Decimal `json:"price"`
	ProductionWeightPerUnit *float64        `json:"production_weight_per_unit"`
	ProductionUnit          *string         `json:"production_unit"`
	IsGlobal                bool            `json:"is_global"`
	IsActive                *bool           `json:"is_active"`
}

func (req productRequest) apply(p *models.Product) error {
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		return badRequest("product name is required")
	case !req.Category.Valid():
		return badRequest("unknown category %q", req.Category)
	case req.Price.IsNegative():
		return badRequest("price must not be negative")
	}
	if w := req.ProductionWeightPerUnit; w != nil && (math.IsNaN(*w) || math.IsInf(*w, 0) || *w < 0) {
		return badRequest("production weight per unit must be a non-negative number")
	}

	p.Name = req.Name
	p.Description = req.Description
	p.Category = req.Category
	p.Unit = req.Unit
	if p.Unit == "" {
		p.Unit = "unit"
	}
	p.Price = req.Price
	p.ProductionWeightPerUnit = req.ProductionWeightPerUnit
	p.ProductionUnit = req.ProductionUnit
	p.IsGlobal = req.IsGlobal
	p.IsActive = req.IsActive == nil || *req.IsActive
	return nil
}

func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	products, err := s.store.ListProducts(r.Context(), includeInactive)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"products": products,
		"count":    len(products),
	})
}

func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.store.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (s *Server) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	var product models.Product
	if err := req.apply(&product); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if err := s.store.CreateProduct(r.Context(), &product); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.catalog.ProductsChanged(r.Context())

	s.logger.WithFields(logrus.Fields{
		"product_id": product.ID,
		"name":       product.Name,
	}).Info("Product created")
	respondWithJSON(w, http.StatusCreated, &product)
}

func (s *Server) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	product := models.Product{ID: mux.Vars(r)["id"]}
	if err := req.apply(&product); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if err := s.store.UpdateProduct(r.Context(), &product); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.catalog.ProductsChanged(r.Context())
	respondWithJSON(w, http.StatusOK, &product)
}

// DeleteProduct deactivates; order history keeps pointing at the row.
func (s *Server) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteProduct(r.Context(), id); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.catalog.ProductsChanged(r.Context())
	s.logger.WithField("product_id", id).Info("Product deactivated")
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type customerRequest struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	CompanyName  string `json:"company_name"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	CustomerCode *int   `json:"customer_code"`
	IsActive     *bool  `json:"is_active"`
}

func (req customerRequest) apply(u *models.User, creating bool) error {
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		return badRequest("a valid email is required")
	case strings.TrimSpace(req.Name) == "":
		return badRequest("name is required")
	case creating && req.Password == "":
		return badRequest("password is required")
	case req.CustomerCode != nil && (*req.CustomerCode < 0 || *req.CustomerCode > 9999):
		return badRequest("customer code must be between 0 and 9999")
	}

	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
	}
	u.Email = req.Email
	u.Name = strings.TrimSpace(req.Name)
	u.CompanyName = strings.TrimSpace(req.CompanyName)
	u.Phone = req.Phone
	u.CustomerCode = req.CustomerCode
	u.IsActive = req.IsActive == nil || *req.IsActive
	return nil
}

func (s *Server) ListCustomers(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	customers, err := s.store.ListCustomers(r.Context(), activeOnly)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"customers": customers,
		"count":     len(customers),
	})
}

func (s *Server) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := s.customer(r)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, customer)
}

func (s *Server) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	customer := models.User{Role: models.RoleCustomer}
	if err := req.apply(&customer, true); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if err := s.store.CreateUser(r.Context(), &customer); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"customer_id": customer.ID,
		"email":       customer.Email,
	}).Info("Customer created")
	respondWithJSON(w, http.StatusCreated, &customer)
}

func (s *Server) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	existing, err := s.customer(r)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if req.CustomerCode == nil {
		req.CustomerCode = existing.CustomerCode
	}
	existing.PasswordHash = ""
	if err := req.apply(existing, false); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if err := s.store.UpdateUser(r.Context(), existing); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, existing)
}

type assignmentRequest struct {
	ProductID   string           `json:"product_id"`
	CustomPrice *decimal.Decimal `json:"custom_price"`
}

func (s *Server) ListAssignments(w http.ResponseWriter, r *http.Request) {
	customer, err := s.customer(r)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	assignments, err := s.store.ListAssignments(r.Context(), customer.ID)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"assignments": assignments,
		"count":       len(assignments),
	})
}

// ReplaceAssignments takes the customer's complete assignment list.
func (s *Server) ReplaceAssignments(w http.ResponseWriter, r *http.Request) {
	customer, err := s.customer(r)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	var req []assignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	assignments := make([]models.CustomerProductAssignment, len(req))
	for i, a := range req {
		assignments[i] = models.CustomerProductAssignment{ProductID: a.ProductID, CustomPrice: a.CustomPrice}
	}
	if err := s.catalog.ReplaceAssignments(r.Context(), customer.ID, assignments); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"assignments": assignments,
		"count":       len(assignments),
	})
}

// customer loads the {id} path user and insists it is a customer account.
func (s *Server) customer(r *http.Request) (*models.User, error) {
	user, err := s.store.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleCustomer {
		return nil, badRequest("user %s is not a customer", user.ID)
	}
	return user, nil
}
