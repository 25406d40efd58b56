// Package reminders sends the weekly "time to place your order" emails.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jogardn/roastery-orders/internal/mail"
	"github.com/jogardn/roastery-orders/internal/store"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

var ErrInvalidReminder = errors.New("invalid reminder")

// Validate checks the schedule fields. Weekday follows time.Weekday
// (0 is Sunday).
func Validate(r *models.Reminder) error {
	if r.Weekday < 0 || r.Weekday > 6 || r.Hour < 0 || r.Hour > 23 {
		return fmt.Errorf("%w: weekday must be 0-6 and hour 0-23", ErrInvalidReminder)
	}
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidReminder)
	}
	return nil
}

// Due returns the active reminders scheduled for now's weekday whose hour
// has passed and that have not gone out yet on now's calendar date, all
// evaluated in loc.
func Due(reminders []models.Reminder, now time.Time, loc *time.Location) []models.Reminder {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	y, m, d := local.Date()

	var due []models.Reminder
	for _, r := range reminders {
		if !r.IsActive || time.Weekday(r.Weekday) != local.Weekday() || local.Hour() < r.Hour {
			continue
		}
		if r.LastSentAt != nil {
			sy, sm, sd := r.LastSentAt.In(loc).Date()
			if sy == y && sm == m && sd == d {
				continue
			}
		}
		due = append(due, r)
	}
	return due
}

type Store interface {
	ListReminders(ctx context.Context, activeOnly bool) ([]models.Reminder, error)
	ListCustomers(ctx context.Context, activeOnly bool) ([]models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

type Dispatcher struct {
	store       Store
	sender      mail.Sender
	loc         *time.Location
	interval    time.Duration
	concurrency int
	now         func() time.Time
	logger      *logrus.Logger
}

func NewDispatcher(st Store, sender mail.Sender, loc *time.Location, interval time.Duration, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		store:       st,
		sender:      sender,
		loc:         loc,
		interval:    interval,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		logger:      logger,
	}
}

// Run checks for due reminders immediately and then on every tick until
// ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.WithError(err).Error("Reminder dispatch failed")
		}
		select {
		case <-ctx.Done():
			d.logger.Info("Reminder dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce sends every due reminder and returns how many emails went out. A
// reminder is only marked sent when all of its emails were accepted.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	all, err := d.store.ListReminders(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("list reminders: %w", err)
	}
	now := d.now()
	due := Due(all, now, d.loc)
	if len(due) == 0 {
		return 0, nil
	}

	var broadcast []models.User
	sent := 0
	var errs []error
	for _, r := range due {
		targets, err := d.targets(ctx, r, &broadcast)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		n, err := d.send(ctx, r, targets)
		sent += n
		if err != nil {
			errs = append(errs, fmt.Errorf("reminder %s: %w", r.ID, err))
			continue
		}
		if err := d.store.MarkReminderSent(ctx, r.ID, now); err != nil {
			errs = append(errs, fmt.Errorf("mark reminder %s sent: %w", r.ID, err))
			continue
		}
		d.logger.WithFields(logrus.Fields{
			"reminder_id": r.ID,
			"recipients":  n,
		}).Info("Order reminder sent")
	}
	return sent, errors.Join(errs...)
}

// targets resolves recipients. Reminders without a customer go to every
// active customer; that list is loaded once per run.
func (d *Dispatcher) targets(ctx context.Context, r models.Reminder, broadcast *[]models.User) ([]models.User, error) {
	if r.CustomerID == nil {
		if *broadcast == nil {
			customers, err := d.store.ListCustomers(ctx, true)
			if err != nil {
				return nil, fmt.Errorf("list customers: %w", err)
			}
			*broadcast = customers
		}
		return *broadcast, nil
	}

	user, err := d.store.GetUser(ctx, *r.CustomerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load reminder customer: %w", err)
	}
	if !user.IsActive {
		return nil, nil
	}
	return []models.User{*user}, nil
}

func (d *Dispatcher) send(ctx context.Context, r models.Reminder, targets []models.User) (int, error) {
	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, user := range targets {
		if user.Email == "" {
			continue
		}
		job := mail.Job{
			To:      user.Email,
			Subject: r.Title,
			Body:    fmt.Sprintf("Hi %s,\n\n%s\n", user.DisplayName(), r.Message),
			Kind:    mail.KindReminder,
		}
		g.Go(func() error {
			if err := d.sender.Send(gctx, job); err != nil {
				return err
			}
			sent.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(sent.Load()), err
}
