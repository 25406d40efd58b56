package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/shopspring/decimal"
)

const productColumns = `p.id, p.name, p.description, p.category, p.unit, p.price,
	p.production_weight_per_unit, p.production_unit, p.is_global, p.is_active,
	p.created_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner, p *models.Product) error {
	var weight sql.NullFloat64
	var unit sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Unit, &p.Price,
		&weight, &unit, &p.IsGlobal, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	p.ProductionWeightPerUnit = floatPtr(weight)
	p.ProductionUnit = stringPtr(unit)
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now

	query := `
		INSERT INTO products (id, name, description, category, unit, price,
			production_weight_per_unit, production_unit, is_global, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.Description, p.Category, p.Unit, p.Price,
		nullFloat(p.ProductionWeightPerUnit), nullString(p.ProductionUnit), p.IsGlobal, p.IsActive,
		p.CreatedAt, p.UpdatedAt)
	return translate(err)
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now()
	query := `
		UPDATE products SET name = $2, description = $3, category = $4, unit = $5, price = $6,
			production_weight_per_unit = $7, production_unit = $8, is_global = $9, is_active = $10,
			updated_at = $11
		WHERE id = $1
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query, p.ID, p.Name, p.Description, p.Category, p.Unit, p.Price,
		nullFloat(p.ProductionWeightPerUnit), nullString(p.ProductionUnit), p.IsGlobal, p.IsActive,
		p.UpdatedAt).Scan(&p.CreatedAt)
	return translate(err)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p := &models.Product{}
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`
	if err := scanProduct(s.db.QueryRowContext(ctx, query, id), p); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, includeInactive bool) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p`
	if !includeInactive {
		query += ` WHERE p.is_active`
	}
	query += ` ORDER BY p.category, p.name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// DeleteProduct soft-deletes a product, hiding it a product from catalogs. Rows stay so historical
// order items keep their product reference.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now())
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) ListAssignments(ctx context.Context, customerID string) ([]models.CustomerProductAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, product_id, custom_price, created_at
		FROM customer_product_assignments
		WHERE customer_id = $1
		ORDER BY created_at
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []models.CustomerProductAssignment{}
	for rows.Next() {
		var a models.CustomerProductAssignment
		var custom decimal.NullDecimal
		if err := rows.Scan(&a.CustomerID, &a.ProductID, &custom, &a.CreatedAt); err != nil {
			return nil, err
		}
		if custom.Valid {
			price := custom.Decimal
			a.CustomPrice = &price
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ReplaceAssignments deletes every assignment of the customer and inserts
// the given set in one transaction.
func (s *Store) ReplaceAssignments(ctx context.Context, customerID string, assignments []models.CustomerProductAssignment) error {
	return translate(s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM customer_product_assignments WHERE customer_id = $1`, customerID); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}

		now := time.Now()
		for i := range assignments {
			a := &assignments[i]
			a.CustomerID = customerID
			a.CreatedAt = now

			var custom decimal.NullDecimal
			if a.CustomPrice != nil {
				custom = decimal.NullDecimal{Decimal: *a.CustomPrice, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO customer_product_assignments (customer_id, product_id, custom_price, created_at)
				VALUES ($1, $2, $3, $4)
			`, customerID, a.ProductID, custom, a.CreatedAt); err != nil {
				return fmt.Errorf("insert assignment for product %s: %w", a.ProductID, err)
			}
		}
		return nil
	}))
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
