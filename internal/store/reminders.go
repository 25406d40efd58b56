package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jogardn/roastery-orders/pkg/models"
)

const reminderColumns = `id, customer_id, title, message, weekday, hour, is_active, last_sent_at, created_at, updated_at`

func scanReminder(row rowScanner, r *models.Reminder) error {
	var customer sql.NullString
	var lastSent sql.NullTime
	err := row.Scan(&r.ID, &customer, &r.Title, &r.Message, &r.Weekday, &r.Hour, &r.IsActive,
		&lastSent, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return err
	}
	r.CustomerID = stringPtr(customer)
	r.LastSentAt = timePtr(lastSent)
	return nil
}

func (s *Store) CreateReminder(ctx context.Context, r *models.Reminder) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9)
	`, r.ID, nullString(r.CustomerID), r.Title, r.Message, r.Weekday, r.Hour, r.IsActive, r.CreatedAt, r.UpdatedAt)
	return translate(err)
}

func (s *Store) UpdateReminder(ctx context.Context, r *models.Reminder) error {
	r.UpdatedAt = time.Now()
	var lastSent sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		UPDATE reminders SET customer_id = $2, title = $3, message = $4, weekday = $5, hour = $6,
			is_active = $7, updated_at = $8
		WHERE id = $1
		RETURNING created_at, last_sent_at
	`, r.ID, nullString(r.CustomerID), r.Title, r.Message, r.Weekday, r.Hour, r.IsActive, r.UpdatedAt,
	).Scan(&r.CreatedAt, &lastSent)
	if err != nil {
		return translate(err)
	}
	r.LastSentAt = timePtr(lastSent)
	return nil
}

func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) ListReminders(ctx context.Context, activeOnly bool) ([]models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY weekday, hour, title`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reminders := []models.Reminder{}
	for rows.Next() {
		var r models.Reminder
		if err := scanReminder(rows, &r); err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func (s *Store) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET last_sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return expectOne(res)
}
