package Stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FalconFreight/Models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (s *Store) CreateTrip(ctx context.Context, trip *Models.Trip) error {
	if err := normalizeTripOnWrite(trip); err != nil {
		return err
	}
	trip.Version = 1
	if err := s.db.WithContext(ctx).Omit("Client", "CreditNotes").Create(trip).Error; err != nil {
		return fmt.Errorf("create trip: %w", err)
	}
	return nil
}

func (s *Store) GetTrip(ctx context.Context, id uint) (Models.Trip, error) {
	return loadTrip(s.db.WithContext(ctx).Preload("Client").Preload("CreditNotes"), id)
}

func (s *Store) ListTrips(ctx context.Context, filter Models.TripFilter) ([]Models.Trip, error) {
	query := s.db.WithContext(ctx).Model(&Models.Trip{}).Preload("Client")

	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.InvoiceStatus != "" {
		query = query.Where("invoice_status = ?", filter.InvoiceStatus)
	}
	if filter.DriverID != nil {
		query = query.Where("driver_id = ?", *filter.DriverID)
	}
	if filter.TruckID != nil {
		query = query.Where("truck_id = ?", *filter.TruckID)
	}
	if filter.From != "" {
		query = query.Where("date >= ?", filter.From)
	}
	if filter.To != "" {
		query = query.Where("date <= ?", filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var trips []Models.Trip
	if err := query.Order("date DESC, id DESC").Find(&trips).Error; err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	for i := range trips {
		normalizeTripOnRead(&trips[i])
	}
	return trips, nil
}

// MutateTrip loads the trip, lets mutate decide, and writes the result back
// only if nobody else wrote the row in between (version compare-and-swap).
// Side-effect rows share the transaction.
func (s *Store) MutateTrip(ctx context.Context, id uint, mutate TripMutation) (Models.Trip, error) {
	var out Models.Trip
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trip, err := loadTrip(tx, id)
		if err != nil {
			return err
		}
		expected := trip.Version

		side := &TripSideEffects{}
		if err := mutate(&trip, side); err != nil {
			if errors.Is(err, ErrNoChange) {
				out = trip
				return nil
			}
			return err
		}
		if err := normalizeTripOnWrite(&trip); err != nil {
			return err
		}

		trip.Version = expected + 1
		trip.UpdatedAt = time.Now()
		result := tx.Model(&Models.Trip{}).
			Where("id = ? AND version = ?", id, expected).
			Updates(tripColumns(trip))
		if result.Error != nil {
			return fmt.Errorf("update trip %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return &Models.ConflictError{Entity: "trip", ID: id, Reason: "modified concurrently"}
		}

		for i := range side.CreditNotes {
			side.CreditNotes[i].TripID = id
			if err := tx.Create(&side.CreditNotes[i]).Error; err != nil {
				return fmt.Errorf("create credit note for trip %d: %w", id, err)
			}
		}
		for i := range side.Notifications {
			if err := tx.Create(&side.Notifications[i]).Error; err != nil {
				return fmt.Errorf("create notification for trip %d: %w", id, err)
			}
		}
		out = trip
		return nil
	})
	return out, err
}

// DeleteTrip physically removes a trip and its credit notes if guard accepts
// the current row.
func (s *Store) DeleteTrip(ctx context.Context, id uint, guard func(Models.Trip) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trip, err := loadTrip(tx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(trip); err != nil {
				return err
			}
		}
		result := tx.Unscoped().Where("id = ? AND version = ?", id, trip.Version).Delete(&Models.Trip{})
		if result.Error != nil {
			return fmt.Errorf("delete trip %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return &Models.ConflictError{Entity: "trip", ID: id, Reason: "modified concurrently"}
		}
		if err := tx.Unscoped().Where("trip_id = ?", id).Delete(&Models.CreditNote{}).Error; err != nil {
			return fmt.Errorf("delete credit notes of trip %d: %w", id, err)
		}
		return nil
	})
}

// PurgeTrips removes every trip dated strictly before the cutoff.
func (s *Store) PurgeTrips(ctx context.Context, before string) (int64, error) {
	cutoff, err := Models.NormalizeDate(before)
	if err != nil {
		return 0, err
	}
	var purged int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Unscoped().Model(&Models.Trip{}).Where("date < ?", cutoff).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("select trips to purge: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Unscoped().Where("trip_id IN ?", ids).Delete(&Models.CreditNote{}).Error; err != nil {
			return fmt.Errorf("purge credit notes: %w", err)
		}
		result := tx.Unscoped().Where("id IN ?", ids).Delete(&Models.Trip{})
		if result.Error != nil {
			return fmt.Errorf("purge trips: %w", result.Error)
		}
		purged = result.RowsAffected
		return nil
	})
	return purged, err
}

// ListOverdueCandidates returns unpaid trips whose reference date is before
// cutoff and that still need a status change or a notification.
func (s *Store) ListOverdueCandidates(ctx context.Context, cutoff string) ([]Models.Trip, error) {
	var trips []Models.Trip
	err := s.db.WithContext(ctx).
		Preload("Client").
		Where("invoice_status <> ?", Models.InvoiceCollected).
		Where("COALESCE(NULLIF(invoice_date, ''), date) < ?", cutoff).
		Where("NOT (invoice_status = ? AND overdue_notified = ?)", Models.InvoiceOverdue, true).
		Order("id").
		Find(&trips).Error
	if err != nil {
		return nil, fmt.Errorf("list overdue candidates: %w", err)
	}
	for i := range trips {
		normalizeTripOnRead(&trips[i])
	}
	return trips, nil
}

func (s *Store) ListCreditNotes(ctx context.Context, tripID uint) ([]Models.CreditNote, error) {
	var notes []Models.CreditNote
	if err := s.db.WithContext(ctx).Where("trip_id = ?", tripID).Order("id").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list credit notes: %w", err)
	}
	return notes, nil
}

func loadTrip(db *gorm.DB, id uint) (Models.Trip, error) {
	var trip Models.Trip
	if err := db.First(&trip, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return trip, &Models.NotFoundError{Entity: "trip", ID: id}
		}
		return trip, fmt.Errorf("load trip %d: %w", id, err)
	}
	normalizeTripOnRead(&trip)
	return trip, nil
}

// normalizeTripOnRead repairs rows written before dates were normalized.
// Unparsable values are left as stored.
func normalizeTripOnRead(trip *Models.Trip) {
	if d, err := Models.NormalizeDate(trip.Date); err == nil {
		trip.Date = d
	}
	if trip.InvoiceDate != nil {
		if d, err := Models.NormalizeDatePtr(trip.InvoiceDate); err == nil {
			trip.InvoiceDate = d
		}
	}
	if trip.InvoiceStatus == "" {
		trip.InvoiceStatus = Models.InvoicePending
	}
}

func normalizeTripOnWrite(trip *Models.Trip) error {
	d, err := Models.NormalizeDate(trip.Date)
	if err != nil {
		return err
	}
	trip.Date = d
	invoiceDate, err := Models.NormalizeDatePtr(trip.InvoiceDate)
	if err != nil {
		return Models.Invalid("invoice_date", "unparsable date")
	}
	trip.InvoiceDate = invoiceDate
	if trip.InvoiceStatus == "" {
		trip.InvoiceStatus = Models.InvoicePending
	}
	return nil
}

func tripColumns(t Models.Trip) map[string]interface{} {
	return map[string]interface{}{
		"truck_id":          t.TruckID,
		"trailer_id":        t.TrailerID,
		"driver_id":         t.DriverID,
		"client_id":         t.ClientID,
		"origin":            t.Origin,
		"destination":       t.Destination,
		"date":              t.Date,
		"cargo_type":        t.CargoType,
		"state":             t.State,
		"distance":          decimalColumn(t.Distance),
		"fuel_consumed":     decimalColumn(t.FuelConsumed),
		"cargo_weight":      decimalColumn(t.CargoWeight),
		"unit_price":        decimalColumn(t.UnitPrice),
		"price_per_weight":  decimalColumn(t.PricePerWeight),
		"amount":            decimalColumn(t.Amount),
		"credit_note_total": t.CreditNoteTotal,
		"credit_note_count": t.CreditNoteCount,
		"invoice_status":    t.InvoiceStatus,
		"invoice_date":      t.InvoiceDate,
		"invoice_file":      t.InvoiceFile,
		"invoice_number":    t.InvoiceNumber,
		"overdue_notified":  t.OverdueNotified,
		"version":           t.Version,
		"updated_at":        t.UpdatedAt,
	}
}

func decimalColumn(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}
