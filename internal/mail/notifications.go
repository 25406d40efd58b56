package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jogardn/roastery-orders/internal/events"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/sirupsen/logrus"
)

var ErrUnknownEvent = errors.New("unknown order event type")

type BrandingSource interface {
	GetBranding(ctx context.Context) (*models.Branding, error)
}

// NotificationHandler consumes order events and emails the customer and,
// for new orders, the roastery.
type NotificationHandler struct {
	sender     Sender
	branding   BrandingSource
	adminEmail string
	logger     *logrus.Logger
}

var _ events.OrderEventHandler = (*NotificationHandler)(nil)

func NewNotificationHandler(sender Sender, branding BrandingSource, adminEmail string, logger *logrus.Logger) *NotificationHandler {
	return &NotificationHandler{sender: sender, branding: branding, adminEmail: adminEmail, logger: logger}
}

func (h *NotificationHandler) HandleOrderEvent(ctx context.Context, event events.OrderEvent) error {
	company, admin := h.recipients(ctx)

	var jobs []Job
	switch event.Type {
	case events.OrderCreatedTopic:
		if event.CustomerEmail != "" {
			jobs = append(jobs, confirmationJob(company, event))
		}
		if admin != "" {
			jobs = append(jobs, adminAlertJob(event, admin))
		}
	case events.OrderStatusChangedTopic:
		if event.CustomerEmail != "" {
			jobs = append(jobs, statusJob(company, event))
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event.Type)
	}

	for _, job := range jobs {
		if err := h.sender.Send(ctx, job); err != nil {
			return err
		}
	}

	h.logger.WithFields(logrus.Fields{
		"order_id": event.OrderID,
		"type":     event.Type,
		"jobs":     len(jobs),
	}).Info("Order notifications queued")
	return nil
}

// IsRetryable treats broker trouble as transient and malformed input as
// permanent.
func (h *NotificationHandler) IsRetryable(err error) bool {
	return !errors.Is(err, ErrInvalidJob) && !errors.Is(err, ErrUnknownEvent)
}

func (h *NotificationHandler) recipients(ctx context.Context) (company, admin string) {
	company, admin = "Your roaster", h.adminEmail
	if h.branding == nil {
		return company, admin
	}
	b, err := h.branding.GetBranding(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to load branding for notifications")
		return company, admin
	}
	if b.CompanyName != "" {
		company = b.CompanyName
	}
	if admin == "" {
		admin = b.NotificationEmail
	}
	return company, admin
}

func confirmationJob(company string, e events.OrderEvent) Job {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", e.CustomerName)
	fmt.Fprintf(&body, "Thanks for your order %s. We received %d line item(s) totalling $%s.\n", e.OrderNumber, e.ItemCount, e.TotalAmount.StringFixed(2))
	fmt.Fprintf(&body, "We will let you know when it ships.\n\n%s\n", company)
	return Job{
		To:      e.CustomerEmail,
		Subject: fmt.Sprintf("Order %s received", e.OrderNumber),
		Body:    body.String(),
		Kind:    KindOrderConfirmation,
	}
}

func statusJob(company string, e events.OrderEvent) Job {
	status := strings.ToLower(string(e.Status))
	return Job{
		To:      e.CustomerEmail,
		Subject: fmt.Sprintf("Order %s is %s", e.OrderNumber, status),
		Body:    fmt.Sprintf("Hi %s,\n\nYour order %s is now %s.\n\n%s\n", e.CustomerName, e.OrderNumber, status, company),
		Kind:    KindOrderStatus,
	}
}

func adminAlertJob(e events.OrderEvent, to string) Job {
	return Job{
		To:      to,
		Subject: fmt.Sprintf("New order %s from %s", e.OrderNumber, e.CustomerName),
		Body: fmt.Sprintf("Order %s\nCustomer: %s <%s>\nLine items: %d\nTotal: $%s\n",
			e.OrderNumber, e.CustomerName, e.CustomerEmail, e.ItemCount, e.TotalAmount.StringFixed(2)),
		Kind: KindAdminAlert,
	}
}
