// Package mail turns order activity into email jobs and publishes them to
// RabbitMQ, where a delivery worker picks them up.
package mail

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindOrderConfirmation Kind = "order_confirmation"
	KindOrderStatus       Kind = "order_status"
	KindAdminAlert        Kind = "admin_alert"
	KindReminder          Kind = "reminder"
)

var ErrInvalidJob = errors.New("invalid mail job")

type Job struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    Kind   `json:"kind"`
}

func (j Job) Validate() error {
	switch {
	case j.To == "":
		return fmt.Errorf("%w: missing recipient", ErrInvalidJob)
	case j.Subject == "":
		return fmt.Errorf("%w: missing subject", ErrInvalidJob)
	case j.Kind == "":
		return fmt.Errorf("%w: missing kind", ErrInvalidJob)
	}
	return nil
}

func (j Job) RoutingKey() string {
	return "mail." + string(j.Kind)
}

type Sender interface {
	Send(ctx context.Context, job Job) error
}
