package Stores

import (
	"context"
	"errors"

	"FalconFreight/Models"

	"gorm.io/gorm"
)

// ErrNoChange may be returned by a TripMutation to leave the row untouched.
// MutateTrip then returns the current trip and a nil error.
var ErrNoChange = errors.New("no change")

// TripSideEffects collects rows that must be inserted in the same
// transaction as a trip update.
type TripSideEffects struct {
	CreditNotes   []Models.CreditNote
	Notifications []Models.Notification
}

// TripMutation decides on and applies a change to a freshly loaded trip.
// Returning an error aborts the transaction.
type TripMutation func(trip *Models.Trip, side *TripSideEffects) error

// LedgerMutation validates a new ledger entry against the current stock and
// applies its effect. The entry is inserted and the stock row written back in
// the same transaction.
type LedgerMutation func(stock *Models.FuelStock, entry *Models.FuelEntry) error

type TripStore interface {
	CreateTrip(ctx context.Context, trip *Models.Trip) error
	GetTrip(ctx context.Context, id uint) (Models.Trip, error)
	ListTrips(ctx context.Context, filter Models.TripFilter) ([]Models.Trip, error)
	MutateTrip(ctx context.Context, id uint, mutate TripMutation) (Models.Trip, error)
	DeleteTrip(ctx context.Context, id uint, guard func(Models.Trip) error) error
	PurgeTrips(ctx context.Context, before string) (int64, error)
	ListOverdueCandidates(ctx context.Context, cutoff string) ([]Models.Trip, error)
	ListCreditNotes(ctx context.Context, tripID uint) ([]Models.CreditNote, error)
}

type LedgerStore interface {
	GetStock(ctx context.Context) (Models.FuelStock, error)
	AppendEntry(ctx context.Context, entry *Models.FuelEntry, mutate LedgerMutation) (Models.FuelStock, error)
	UpdateStock(ctx context.Context, mutate func(stock *Models.FuelStock) error) (Models.FuelStock, error)
	ListEntries(ctx context.Context, filter Models.FuelEntryFilter) ([]Models.FuelEntry, error)
}

type NotificationSink interface {
	CreateNotification(ctx context.Context, n *Models.Notification) error
	ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]Models.Notification, error)
	MarkNotificationRead(ctx context.Context, id uint) error
}

// ReferenceStore answers existence questions about records owned by other
// screens (fleet, clients, users).
type ReferenceStore interface {
	TruckExists(ctx context.Context, id uint) (bool, error)
	TrailerExists(ctx context.Context, id uint) (bool, error)
	ClientExists(ctx context.Context, id uint) (bool, error)
	TruckPlates(ctx context.Context, ids []uint) (map[uint]string, error)
	UserByEmail(ctx context.Context, email string) (Models.User, error)
	UserByID(ctx context.Context, id uint) (Models.User, error)
}

// Store is the gorm-backed implementation of every persistence interface.
type Store struct {
	db *gorm.DB
}

var (
	_ TripStore        = (*Store)(nil)
	_ LedgerStore      = (*Store)(nil)
	_ NotificationSink = (*Store)(nil)
	_ ReferenceStore   = (*Store)(nil)
)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
