// Package client talks to the storefront API on behalf of coffeectl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jogardn/roastery-orders/internal/production"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// APIError is a non-2xx response from the storefront.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

func New(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to storefront: %w", err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("Storefront responded")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return &APIError{StatusCode: resp.StatusCode, Message: failure.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode storefront response: %w", err)
	}
	return nil
}

// Login exchanges credentials for a session token and keeps it for later
// calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

type ProductInput struct {
	Name                    string          `json:"name"`
	Description             string          `json:"description,omitempty"`
	Category                models.Category `json:"category"`
	Unit                    string          `json:"unit,omitempty"`
	Price                   decimal.Decimal `json:"price"`
	ProductionWeightPerUnit *float64        `json:"production_weight_per_unit,omitempty"`
	ProductionUnit          *string         `json:"production_unit,omitempty"`
	IsGlobal                bool            `json:"is_global"`
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	var product models.Product
	if err := c.do(ctx, http.MethodPost, "/api/admin/products", in, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var resp struct {
		Products []models.Product `json:"products"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/products?include_inactive=true", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

type CustomerInput struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	CompanyName  string `json:"company_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Password     string `json:"password"`
	CustomerCode *int   `json:"customer_code,omitempty"`
}

func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/api/admin/customers", in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

type Assignment struct {
	ProductID   string           `json:"product_id"`
	CustomPrice *decimal.Decimal `json:"custom_price,omitempty"`
}

func (c *Client) ReplaceAssignments(ctx context.Context, customerID string, assignments []Assignment) error {
	return c.do(ctx, http.MethodPut, "/api/admin/customers/"+url.PathEscape(customerID)+"/assignments", assignments, nil)
}

type ProductionQuery struct {
	Start           string
	End             string
	Status          string
	IncludeArchived bool
}

func (c *Client) Production(ctx context.Context, q ProductionQuery) (*production.Schedule, error) {
	values := url.Values{}
	if q.Start != "" {
		values.Set("start", q.Start)
	}
	if q.End != "" {
		values.Set("end", q.End)
	}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.IncludeArchived {
		values.Set("includeArchived", "true")
	}

	path := "/api/admin/production"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	var schedule production.Schedule
	if err := c.do(ctx, http.MethodGet, path, nil, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}
