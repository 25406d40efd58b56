package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/lib/pq"
)

type OrderFilter struct {
	CustomerID string
	// Status is a single status; empty or "all" matches every status.
	Status           string
	IncludeArchived  bool
	ArchivedOnly     bool
	ExcludeCancelled bool
	From             time.Time
	// Before is exclusive, so whole days end at the next midnight whatever
	// the stored precision.
	Before           time.Time
	OldestFirst      bool
	Limit            int
}

const orderColumns = `o.id, o.sequence_number, o.customer_id, u.name, u.company_name, u.email,
	u.customer_code, o.status, o.is_archived, o.notes, o.total_amount, o.created_at, o.updated_at`

func scanOrder(row rowScanner, o *models.Order) error {
	var name, company string
	var code sql.NullInt64
	err := row.Scan(&o.ID, &o.SequenceNumber, &o.CustomerID, &name, &company, &o.CustomerEmail,
		&code, &o.Status, &o.IsArchived, &o.Notes, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return err
	}
	o.CustomerName = name
	if company != "" {
		o.CustomerName = company
	}
	o.CustomerCode = intPtr(code)
	return nil
}

// CreateOrder inserts the order and its line items in one transaction. The
// sequence number comes from order_sequence_seq, so concurrent writers never
// share one.
func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO orders (id, customer_id, status, is_archived, notes, total_amount, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING sequence_number
		`, o.ID, o.CustomerID, o.Status, o.IsArchived, o.Notes, o.TotalAmount, o.CreatedAt, o.UpdatedAt,
		).Scan(&o.SequenceNumber)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range o.Items {
			item := &o.Items[i]
			if item.ID == "" {
				item.ID = uuid.New().String()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, product_id, position, quantity, unit_price)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, item.ID, o.ID, item.ProductID, i, item.Quantity, item.UnitPrice); err != nil {
				return fmt.Errorf("insert order item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return translate(err)
	}

	s.logger.WithField("order_id", o.ID).WithField("sequence_number", o.SequenceNumber).Debug("Order persisted")
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o := &models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders o JOIN users u ON u.id = o.customer_id WHERE o.id = $1`
	if err := scanOrder(s.db.QueryRowContext(ctx, query, id), o); err != nil {
		return nil, translate(err)
	}

	orders := []models.Order{*o}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (s *Store) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	var where []string
	var args []interface{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.CustomerID != "" {
		add("o.customer_id = $%d", filter.CustomerID)
	}
	if filter.Status != "" && filter.Status != "all" {
		add("o.status = $%d", filter.Status)
	}
	if filter.ExcludeCancelled {
		add("o.status <> $%d", models.StatusCancelled)
	}
	switch {
	case filter.ArchivedOnly:
		where = append(where, "o.is_archived")
	case !filter.IncludeArchived:
		where = append(where, "NOT o.is_archived")
	}
	if !filter.From.IsZero() {
		add("o.created_at >= $%d", filter.From)
	}
	if !filter.Before.IsZero() {
		add("o.created_at < $%d", filter.Before)
	}

	query := `SELECT ` + orderColumns + ` FROM orders o JOIN users u ON u.id = o.customer_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if filter.OldestFirst {
		query += ` ORDER BY o.created_at, o.sequence_number`
	} else {
		query += ` ORDER BY o.created_at DESC, o.sequence_number DESC`
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads line items with their products for all orders in one query.
func (s *Store) attachItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*models.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		orders[i].Items = []models.OrderItem{}
		byID[orders[i].ID] = &orders[i]
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.quantity, oi.unit_price, `+productColumns+`
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1::uuid[])
		ORDER BY oi.order_id, oi.position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		var orderID string
		p := &models.Product{}
		var weight sql.NullFloat64
		var unit sql.NullString
		if err := rows.Scan(&item.ID, &orderID, &item.Quantity, &item.UnitPrice,
			&p.ID, &p.Name, &p.Description, &p.Category, &p.Unit, &p.Price,
			&weight, &unit, &p.IsGlobal, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return err
		}
		p.ProductionWeightPerUnit = floatPtr(weight)
		p.ProductionUnit = stringPtr(unit)
		item.ProductID = p.ID
		item.Product = p
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now())
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) SetOrderArchived(ctx context.Context, id string, archived bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET is_archived = $2, updated_at = $3 WHERE id = $1`, id, archived, time.Now())
	if err != nil {
		return err
	}
	return expectOne(res)
}
