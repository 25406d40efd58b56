package store

import (
	"context"
	"errors"
	"time"

	"github.com/jogardn/roastery-orders/pkg/models"
)

// GetBranding returns the single settings row, or zero-valued branding when
// none was saved yet.
func (s *Store) GetBranding(ctx context.Context) (*models.Branding, error) {
	b := &models.Branding{}
	err := s.db.QueryRowContext(ctx, `
		SELECT company_name, logo_url, primary_color, accent_color, support_email, notification_email, updated_at
		FROM settings WHERE id = 1
	`).Scan(&b.CompanyName, &b.LogoURL, &b.PrimaryColor, &b.AccentColor, &b.SupportEmail,
		&b.NotificationEmail, &b.UpdatedAt)
	if err != nil {
		if err = translate(err); errors.Is(err, ErrNotFound) {
			return &models.Branding{}, nil
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) UpdateBranding(ctx context.Context, b *models.Branding) error {
	b.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, company_name, logo_url, primary_color, accent_color, support_email,
			notification_email, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			logo_url = EXCLUDED.logo_url,
			primary_color = EXCLUDED.primary_color,
			accent_color = EXCLUDED.accent_color,
			support_email = EXCLUDED.support_email,
			notification_email = EXCLUDED.notification_email,
			updated_at = EXCLUDED.updated_at
	`, b.CompanyName, b.LogoURL, b.PrimaryColor, b.AccentColor, b.SupportEmail, b.NotificationEmail, b.UpdatedAt)
	return err
}
