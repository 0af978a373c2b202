// Package Trips implements the trip state machine
// pending -> in_progress -> completed, with Release as the only way back.
package Trips

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"FalconFreight/Access"
	"FalconFreight/Metrics"
	"FalconFreight/Models"
	"FalconFreight/Stores"

	"github.com/shopspring/decimal"
)

// References is the subset of reference lookups trips need.
type References interface {
	TruckExists(ctx context.Context, id uint) (bool, error)
	TrailerExists(ctx context.Context, id uint) (bool, error)
	ClientExists(ctx context.Context, id uint) (bool, error)
	Access.UserLookup
}

type Service struct {
	trips  Stores.TripStore
	refs   References
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(trips Stores.TripStore, refs References, opts ...Option) *Service {
	s := &Service{
		trips:  trips,
		refs:   refs,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	Origin         string
	Destination    string
	Date           string
	TruckID        uint
	TrailerID      *uint
	ClientID       *uint
	CargoType      string
	UnitPrice      *decimal.Decimal
	PricePerWeight *decimal.Decimal
}

// EditInput carries the descriptive fields a pending trip may change. Nil
// fields are left alone.
type EditInput struct {
	Origin         *string
	Destination    *string
	Date           *string
	TruckID        *uint
	TrailerID      *uint
	ClearTrailer   bool
	ClientID       *uint
	ClearClient    bool
	CargoType      *string
	UnitPrice      *decimal.Decimal
	PricePerWeight *decimal.Decimal
}

type FinalizeInput struct {
	Distance     decimal.Decimal
	FuelConsumed decimal.Decimal
	CargoWeight  *decimal.Decimal
}

type InvoiceInput struct {
	Status *Models.InvoiceStatus
	Date   *string
	File   *string
	Number *string
}

func (s *Service) Create(ctx context.Context, who Access.Identity, in CreateInput) (trip Models.Trip, err error) {
	defer s.observe(Access.CreateTrip, 0, &err)
	if err = Access.Check(who, Access.CreateTrip); err != nil {
		return trip, err
	}

	origin := strings.TrimSpace(in.Origin)
	destination := strings.TrimSpace(in.Destination)
	if origin == "" {
		return trip, Models.Invalid("origin", "required")
	}
	if destination == "" {
		return trip, Models.Invalid("destination", "required")
	}
	date, err := Models.NormalizeDate(in.Date)
	if err != nil {
		return trip, err
	}
	if err = s.checkReferences(ctx, &in.TruckID, in.TrailerID, in.ClientID); err != nil {
		return trip, err
	}
	if err = nonNegative("unit_price", in.UnitPrice); err != nil {
		return trip, err
	}
	if err = nonNegative("price_per_weight", in.PricePerWeight); err != nil {
		return trip, err
	}

	trip = Models.Trip{
		TruckID:        in.TruckID,
		TrailerID:      in.TrailerID,
		ClientID:       in.ClientID,
		Origin:         origin,
		Destination:    destination,
		Date:           date,
		CargoType:      strings.TrimSpace(in.CargoType),
		State:          Models.TripPending,
		UnitPrice:      roundPtr(in.UnitPrice),
		PricePerWeight: roundPtr(in.PricePerWeight),
		InvoiceStatus:  Models.InvoicePending,
	}
	if err = s.trips.CreateTrip(ctx, &trip); err != nil {
		return Models.Trip{}, err
	}
	return trip, nil
}

// Take assigns a pending trip to a driver. Drivers always take for
// themselves; an admin must name an existing driver in driverID.
func (s *Service) Take(ctx context.Context, who Access.Identity, tripID, driverID uint) (trip Models.Trip, err error) {
	defer s.observe(Access.TakeTrip, tripID, &err)
	if err = Access.Check(who, Access.TakeTrip); err != nil {
		return trip, err
	}
	if who.IsAdmin() {
		if err = Access.RequireDriver(ctx, s.refs, driverID); err != nil {
			return trip, err
		}
	} else {
		if driverID != 0 && driverID != who.UserID {
			return trip, &Models.AuthorizationError{Role: who.Role, Operation: "take a trip for another driver"}
		}
		driverID = who.UserID
	}

	return s.trips.MutateTrip(ctx, tripID, func(t *Models.Trip, _ *Stores.TripSideEffects) error {
		if t.State != Models.TripPending {
			return conflict(t, "trip is "+string(t.State)+", not pending")
		}
		t.State = Models.TripInProgress
		t.DriverID = &driverID
		return nil
	})
}

// Finalize completes an in-progress trip. Only the assigned driver, or an
// admin, may finalize.
func (s *Service) Finalize(ctx context.Context, who Access.Identity, tripID uint, in FinalizeInput) (trip Models.Trip, err error) {
	defer s.observe(Access.FinalizeTrip, tripID, &err)
	if err = Access.Check(who, Access.FinalizeTrip); err != nil {
		return trip, err
	}
	if in.Distance.IsNegative() {
		return trip, Models.Invalid("distance", "must not be negative")
	}
	if in.FuelConsumed.IsNegative() {
		return trip, Models.Invalid("fuel_consumed", "must not be negative")
	}
	if err = nonNegative("cargo_weight", in.CargoWeight); err != nil {
		return trip, err
	}

	return s.trips.MutateTrip(ctx, tripID, func(t *Models.Trip, _ *Stores.TripSideEffects) error {
		if t.State != Models.TripInProgress {
			return conflict(t, "trip is "+string(t.State)+", not in progress")
		}
		if !who.IsAdmin() && (t.DriverID == nil || *t.DriverID != who.UserID) {
			return conflict(t, "caller is not the assigned driver")
		}
		t.State = Models.TripCompleted
		t.Distance = Models.DecimalPtr(in.Distance)
		t.FuelConsumed = Models.DecimalPtr(in.FuelConsumed)
		if in.CargoWeight != nil {
			t.CargoWeight = Models.DecimalPtr(*in.CargoWeight)
			if t.PricePerWeight != nil {
				amount := Models.Mul2(*t.PricePerWeight, *t.CargoWeight)
				t.Amount = &amount
			}
		}
		return nil
	})
}

// Release puts an in-progress trip back to pending and clears its driver.
func (s *Service) Release(ctx context.Context, who Access.Identity, tripID uint) (trip Models.Trip, err error) {
	defer s.observe(Access.ReleaseTrip, tripID, &err)
	if err = Access.Check(who, Access.ReleaseTrip); err != nil {
		return trip, err
	}
	return s.trips.MutateTrip(ctx, tripID, func(t *Models.Trip, _ *Stores.TripSideEffects) error {
		if t.State != Models.TripInProgress {
			return conflict(t, "only in-progress trips can be released")
		}
		t.State = Models.TripPending
		t.DriverID = nil
		return nil
	})
}

func (s *Service) Delete(ctx context.Context, who Access.Identity, tripID uint) (err error) {
	defer s.observe(Access.DeleteTrip, tripID, &err)
	if err = Access.Check(who, Access.DeleteTrip); err != nil {
		return err
	}
	return s.trips.DeleteTrip(ctx, tripID, func(t Models.Trip) error {
		if t.State != Models.TripPending {
			return conflict(&t, "only pending trips can be deleted")
		}
		return nil
	})
}

func (s *Service) Edit(ctx context.Context, who Access.Identity, tripID uint, in EditInput) (trip Models.Trip, err error) {
	defer s.observe(Access.EditTrip, tripID, &err)
	if err = Access.Check(who, Access.EditTrip); err != nil {
		return trip, err
	}

	var date string
	if in.Date != nil {
		if date, err = Models.NormalizeDate(*in.Date); err != nil {
			return trip, err
		}
	}
	if in.Origin != nil && strings.TrimSpace(*in.Origin) == "" {
		return trip, Models.Invalid("origin", "must not be empty")
	}
	if in.Destination != nil && strings.TrimSpace(*in.Destination) == "" {
		return trip, Models.Invalid("destination", "must not be empty")
	}
	if err = s.checkReferences(ctx, in.TruckID, in.TrailerID, in.ClientID); err != nil {
		return trip, err
	}
	if err = nonNegative("unit_price", in.UnitPrice); err != nil {
		return trip, err
	}
	if err = nonNegative("price_per_weight", in.PricePerWeight); err != nil {
		return trip, err
	}

	return s.trips.MutateTrip(ctx, tripID, func(t *Models.Trip, _ *Stores.TripSideEffects) error {
		if t.State != Models.TripPending {
			return conflict(t, "only pending trips can be edited")
		}
		if in.Origin != nil {
			t.Origin = strings.TrimSpace(*in.Origin)
		}
		if in.Destination != nil {
			t.Destination = strings.TrimSpace(*in.Destination)
		}
		if in.Date != nil {
			t.Date = date
		}
		if in.TruckID != nil {
			t.TruckID = *in.TruckID
		}
		if in.ClearTrailer {
			t.TrailerID = nil
		} else if in.TrailerID != nil {
			t.TrailerID = in.TrailerID
		}
		if in.ClearClient {
			t.ClientID = nil
		} else if in.ClientID != nil {
			t.ClientID = in.ClientID
		}
		if in.CargoType != nil {
			t.CargoType = strings.TrimSpace(*in.CargoType)
		}
		if in.UnitPrice != nil {
			t.UnitPrice = roundPtr(in.UnitPrice)
		}
		if in.PricePerWeight != nil {
			t.PricePerWeight = roundPtr(in.PricePerWeight)
		}
		return nil
	})
}

// RecordInvoice updates the invoice sub-record. Overdue is reserved for the
// billing sweep; moving an invoice out of overdue re-arms its notification.
func (s *Service) RecordInvoice(ctx context.Context, who Access.Identity, tripID uint, in InvoiceInput) (trip Models.Trip, err error) {
	defer s.observe(Access.RecordInvoice, tripID, &err)
	if err = Access.Check(who, Access.RecordInvoice); err != nil {
		return trip, err
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return trip, Models.Invalid("invoice_status", "unknown status "+string(*in.Status))
		}
		if *in.Status == Models.InvoiceOverdue {
			return trip, Models.Invalid("invoice_status", "overdue is set by the billing sweep")
		}
	}
	var invoiceDate *string
	if in.Date != nil {
		if invoiceDate, err = Models.NormalizeDatePtr(in.Date); err != nil {
			return trip, err
		}
	}

	return s.trips.MutateTrip(ctx, tripID, func(t *Models.Trip, _ *Stores.TripSideEffects) error {
		if in.Status != nil {
			if t.InvoiceStatus == Models.InvoiceOverdue && *in.Status != Models.InvoiceOverdue {
				t.OverdueNotified = false
			}
			t.InvoiceStatus = *in.Status
		}
		if in.Date != nil {
			t.InvoiceDate = invoiceDate
		}
		if in.File != nil {
			t.InvoiceFile = strings.TrimSpace(*in.File)
		}
		if in.Number != nil {
			t.InvoiceNumber = strings.TrimSpace(*in.Number)
		}
		return nil
	})
}

// RecordCreditNote adds a credit note to the trip's running total.
func (s *Service) RecordCreditNote(ctx context.Context, who Access.Identity, tripID uint, motive string, amount decimal.Decimal) (trip Models.Trip, err error) {
	defer s.observe(Access.RecordCreditNote, tripID, &err)
	if err = Access.Check(who, Access.RecordCreditNote); err != nil {
		return trip, err
	}
	motive = strings.TrimSpace(motive)
	if motive == "" {
		return trip, Models.Invalid("motive", "required")
	}
	amount = Models.Round2(amount)
	if !amount.IsPositive() {
		return trip, Models.Invalid("amount", "must be greater than zero")
	}

	return s.trips.MutateTrip(ctx, tripID, func(t *Models.Trip, side *Stores.TripSideEffects) error {
		t.CreditNoteTotal = Models.Round2(t.CreditNoteTotal.Add(amount))
		t.CreditNoteCount++
		side.CreditNotes = append(side.CreditNotes, Models.CreditNote{
			Motive:   motive,
			Amount:   amount,
			Date:     Models.Today(s.now()),
			IssuedBy: who.UserID,
		})
		return nil
	})
}

func (s *Service) Get(ctx context.Context, who Access.Identity, tripID uint) (Models.Trip, error) {
	if err := Access.Check(who, Access.ViewTrips); err != nil {
		return Models.Trip{}, err
	}
	return s.trips.GetTrip(ctx, tripID)
}

func (s *Service) List(ctx context.Context, who Access.Identity, filter Models.TripFilter) ([]Models.Trip, error) {
	if err := Access.Check(who, Access.ViewTrips); err != nil {
		return nil, err
	}
	if filter.From != "" {
		from, err := Models.NormalizeDate(filter.From)
		if err != nil {
			return nil, err
		}
		filter.From = from
	}
	if filter.To != "" {
		to, err := Models.NormalizeDate(filter.To)
		if err != nil {
			return nil, err
		}
		filter.To = to
	}
	return s.trips.ListTrips(ctx, filter)
}

// Purge physically removes every trip dated before the cutoff.
func (s *Service) Purge(ctx context.Context, who Access.Identity, before string) (purged int64, err error) {
	defer s.observe(Access.PurgeTrips, 0, &err)
	if err = Access.Check(who, Access.PurgeTrips); err != nil {
		return 0, err
	}
	purged, err = s.trips.PurgeTrips(ctx, before)
	if err == nil {
		s.logger.Warn("trips purged", "before", before, "count", purged, "by", who.UserID)
	}
	return purged, err
}

func (s *Service) checkReferences(ctx context.Context, truckID, trailerID, clientID *uint) error {
	if truckID != nil {
		if *truckID == 0 {
			return Models.Invalid("truck_id", "required")
		}
		ok, err := s.refs.TruckExists(ctx, *truckID)
		if err != nil {
			return err
		}
		if !ok {
			return Models.Invalid("truck_id", "truck does not exist")
		}
	}
	if trailerID != nil {
		ok, err := s.refs.TrailerExists(ctx, *trailerID)
		if err != nil {
			return err
		}
		if !ok {
			return Models.Invalid("trailer_id", "trailer does not exist")
		}
	}
	if clientID != nil {
		ok, err := s.refs.ClientExists(ctx, *clientID)
		if err != nil {
			return err
		}
		if !ok {
			return Models.Invalid("client_id", "client does not exist")
		}
	}
	return nil
}

func (s *Service) observe(op Access.Operation, tripID uint, errp *error) {
	err := *errp
	Metrics.TripTransitions.WithLabelValues(string(op), Metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Debug("trip operation rejected", "operation", op, "trip_id", tripID, "error", err)
		return
	}
	s.logger.Info("trip operation", "operation", op, "trip_id", tripID)
}

func conflict(t *Models.Trip, reason string) error {
	return &Models.ConflictError{Entity: "trip", ID: t.ID, Reason: reason}
}

func nonNegative(field string, d *decimal.Decimal) error {
	if d != nil && d.IsNegative() {
		return Models.Invalid(field, "must not be negative")
	}
	return nil
}

func roundPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	return Models.DecimalPtr(*d)
}
