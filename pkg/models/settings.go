package models

import "time"

type Branding struct {
	CompanyName       string    `json:"company_name"`
	LogoURL           string    `json:"logo_url,omitempty"`
	PrimaryColor      string    `json:"primary_color,omitempty"`
	AccentColor       string    `json:"accent_color,omitempty"`
	SupportEmail      string    `json:"support_email,omitempty"`
	NotificationEmail string    `json:"notification_email,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Reminder struct {
	ID         string     `json:"id"`
	CustomerID *string    `json:"customer_id,omitempty"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Weekday    int        `json:"weekday"`
	Hour       int        `json:"hour"`
	IsActive   bool       `json:"is_active"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
