package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jogardn/roastery-orders/pkg/models"
)

const userColumns = `u.id, u.email, u.name, u.company_name, u.phone, u.role, u.customer_code,
	u.is_active, u.password_hash, u.created_at, u.updated_at`

func scanUser(row rowScanner, u *models.User) error {
	var code sql.NullInt64
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CompanyName, &u.Phone, &u.Role, &code,
		&u.IsActive, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return err
	}
	u.CustomerCode = intPtr(code)
	return nil
}

// CreateUser inserts a user. Customers without an explicit code draw the
// next value of customer_code_seq.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now

	return translate(s.withTx(ctx, func(tx *sql.Tx) error {
		if u.Role == models.RoleCustomer && u.CustomerCode == nil {
			var next int
			if err := tx.QueryRowContext(ctx, `SELECT nextval('customer_code_seq')`).Scan(&next); err != nil {
				return err
			}
			u.CustomerCode = &next
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, name, company_name, phone, role, customer_code,
				is_active, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, u.ID, u.Email, u.Name, u.CompanyName, u.Phone, u.Role, nullInt(u.CustomerCode),
			u.IsActive, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
		return err
	}))
}

// UpdateUser writes profile fields. The password hash is only replaced when
// non-empty.
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.UpdatedAt = time.Now()
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET email = $2, name = $3, company_name = $4, phone = $5, customer_code = $6,
			is_active = $7, password_hash = COALESCE(NULLIF($8, ''), password_hash), updated_at = $9
		WHERE id = $1
		RETURNING role, created_at
	`, u.ID, u.Email, u.Name, u.CompanyName, u.Phone, nullInt(u.CustomerCode),
		u.IsActive, u.PasswordHash, u.UpdatedAt).Scan(&u.Role, &u.CreatedAt)
	return translate(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	if err := scanUser(s.db.QueryRowContext(ctx, query, id), u); err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.email = $1`
	if err := scanUser(s.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))), u); err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (s *Store) ListCustomers(ctx context.Context, activeOnly bool) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.role = $1`
	if activeOnly {
		query += ` AND u.is_active`
	}
	query += ` ORDER BY u.customer_code NULLS LAST, u.name`

	rows, err := s.db.QueryContext(ctx, query, models.RoleCustomer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
