// Package Billing marks stale unpaid invoices as overdue and raises one
// notification per overdue transition.
package Billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"FalconFreight/Access"
	"FalconFreight/Metrics"
	"FalconFreight/Models"
	"FalconFreight/Stores"

	"gorm.io/datatypes"
)

const DefaultOverdueDays = 30

// SweepResult reports one pass.
type SweepResult struct {
	Cutoff               string `json:"cutoff"`
	Scanned              int    `json:"scanned"`
	MarkedOverdue        int    `json:"marked_overdue"`
	NotificationsCreated int    `json:"notifications_created"`
	Failed               int    `json:"failed"`
}

type Sweeper struct {
	trips       Stores.TripStore
	overdueDays int
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Sweeper)

func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithOverdueDays changes the age after which an invoice is overdue.
func WithOverdueDays(days int) Option {
	return func(s *Sweeper) {
		if days > 0 {
			s.overdueDays = days
		}
	}
}

func NewSweeper(trips Stores.TripStore, opts ...Option) *Sweeper {
	s := &Sweeper{
		trips:       trips,
		overdueDays: DefaultOverdueDays,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cutoff is the newest reference date that is not yet overdue. Anything
// strictly older than it has been waiting more than overdueDays.
func (s *Sweeper) Cutoff() string {
	return s.now().AddDate(0, 0, -s.overdueDays).Format(Models.DateLayout)
}

// Run executes one sweep on behalf of who. Failures on single trips are
// counted and do not stop the pass; failing to list trips aborts it.
func (s *Sweeper) Run(ctx context.Context, who Access.Identity) (SweepResult, error) {
	if err := Access.Check(who, Access.RunBillingSweep); err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Cutoff: s.Cutoff()}
	trips, err := s.trips.ListOverdueCandidates(ctx, result.Cutoff)
	if err != nil {
		Metrics.SweepRuns.WithLabelValues("aborted").Inc()
		s.logger.Error("billing sweep aborted", "error", err)
		return result, fmt.Errorf("billing sweep: %w", err)
	}

	for _, candidate := range trips {
		if err := ctx.Err(); err != nil {
			Metrics.SweepRuns.WithLabelValues("cancelled").Inc()
			return result, err
		}
		result.Scanned++

		marked, notified, err := s.sweepTrip(ctx, candidate, result.Cutoff)
		if err != nil {
			result.Failed++
			Metrics.SweepFailures.Inc()
			s.logger.Warn("billing sweep failed on trip", "trip_id", candidate.ID, "error", err)
			continue
		}
		if marked {
			result.MarkedOverdue++
		}
		if notified {
			result.NotificationsCreated++
		}
	}

	Metrics.SweepRuns.WithLabelValues("ok").Inc()
	Metrics.SweepOverdue.Add(float64(result.MarkedOverdue))
	Metrics.SweepNotifications.Add(float64(result.NotificationsCreated))
	s.logger.Info("billing sweep finished",
		"cutoff", result.Cutoff,
		"scanned", result.Scanned,
		"marked_overdue", result.MarkedOverdue,
		"notifications", result.NotificationsCreated,
		"failed", result.Failed,
	)
	return result, nil
}

// sweepTrip re-checks the trip inside the store transaction, so a payment
// recorded after listing is respected.
func (s *Sweeper) sweepTrip(ctx context.Context, candidate Models.Trip, cutoff string) (marked, notified bool, err error) {
	clientName := ""
	if candidate.Client != nil {
		clientName = candidate.Client.Name
	}

	_, err = s.trips.MutateTrip(ctx, candidate.ID, func(t *Models.Trip, side *Stores.TripSideEffects) error {
		if t.InvoiceStatus == Models.InvoiceCollected || !(t.ReferenceDate() < cutoff) {
			return Stores.ErrNoChange
		}
		if t.InvoiceStatus == Models.InvoiceOverdue && t.OverdueNotified {
			return Stores.ErrNoChange
		}
		if t.InvoiceStatus != Models.InvoiceOverdue {
			t.InvoiceStatus = Models.InvoiceOverdue
			marked = true
		}
		if !t.OverdueNotified {
			side.Notifications = append(side.Notifications, overdueNotification(t, clientName, s.overdueDays))
			t.OverdueNotified = true
			notified = true
		}
		return nil
	})
	if err != nil {
		return false, false, err
	}
	return marked, notified, nil
}

func overdueNotification(t *Models.Trip, clientName string, days int) Models.Notification {
	tripID := t.ID
	message := fmt.Sprintf("Invoice for trip #%d is more than %d days overdue", t.ID, days)
	if clientName != "" {
		message = fmt.Sprintf("Invoice for trip #%d (%s) is more than %d days overdue", t.ID, clientName, days)
	}
	payload := datatypes.JSONMap{
		"trip_id":        t.ID,
		"reference_date": t.ReferenceDate(),
		"invoice_number": t.InvoiceNumber,
	}
	if t.ClientID != nil {
		payload["client_id"] = *t.ClientID
		payload["client"] = clientName
	}
	return Models.Notification{
		Kind:    Models.NotificationInvoiceOverdue,
		Message: message,
		TripID:  &tripID,
		Payload: payload,
	}
}
