// Package Fuel keeps the depot fuel ledger. Every movement is an
// append-only entry, and the singleton stock row is only ever changed in the
// same transaction as the entry that explains it.
package Fuel

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"FalconFreight/Access"
	"FalconFreight/Metrics"
	"FalconFreight/Models"
	"FalconFreight/Stores"

	"github.com/shopspring/decimal"
)

// References is the subset of reference lookups fuel entries need.
type References interface {
	TruckExists(ctx context.Context, id uint) (bool, error)
	TruckPlates(ctx context.Context, ids []uint) (map[uint]string, error)
	Access.UserLookup
}

type Service struct {
	ledger Stores.LedgerStore
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

func NewService(ledger Stores.LedgerStore, refs References, opts ...Option) *Service {
	s := &Service{
		ledger: ledger,
		refs:   refs,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type LoadInput struct {
	TruckID   *uint
	DriverID  uint
	Date      string
	Liters    decimal.Decimal
	UnitPrice decimal.Decimal
	Source    Models.FuelSource
	Notes     string
}

// RecordLoad logs fuel put into a truck. Depot loads draw down the stock and
// fail with InsufficientStockError when it cannot cover them; external loads
// are recorded for reporting only. A depot load without a unit price is
// valued at the depot price.
func (s *Service) RecordLoad(ctx context.Context, who Access.Identity, in LoadInput) (entry Models.FuelEntry, stock Models.FuelStock, err error) {
	defer func() { s.observe(Models.FuelLoad, string(in.Source), stock, err) }()
	if err = Access.Check(who, Access.RecordFuelLoad); err != nil {
		return entry, stock, err
	}
	if who.IsAdmin() {
		if err = Access.RequireDriver(ctx, s.refs, in.DriverID); err != nil {
			return entry, stock, err
		}
	} else {
		if in.DriverID != 0 && in.DriverID != who.UserID {
			return entry, stock, &Models.AuthorizationError{Role: who.Role, Operation: "record a load for another driver"}
		}
		in.DriverID = who.UserID
	}
	if in.Source != Models.SourceDepot && in.Source != Models.SourceExternal {
		return entry, stock, Models.Invalid("source", "must be depot or external")
	}
	liters := Models.Round2(in.Liters)
	if !liters.IsPositive() {
		return entry, stock, Models.Invalid("liters", "must be greater than zero")
	}
	unitPrice := Models.Round2(in.UnitPrice)
	if unitPrice.IsNegative() {
		return entry, stock, Models.Invalid("unit_price", "must not be negative")
	}
	if in.TruckID != nil {
		ok, err := s.refs.TruckExists(ctx, *in.TruckID)
		if err != nil {
			return entry, stock, err
		}
		if !ok {
			return entry, stock, Models.Invalid("truck_id", "truck does not exist")
		}
	}

	entry, err = s.newEntry(in.Date, Models.FuelLoad, liters, in.Notes, who)
	if err != nil {
		return entry, stock, err
	}
	driverID := in.DriverID
	entry.TruckID = in.TruckID
	entry.DriverID = &driverID
	entry.Source = in.Source
	entry.UnitPrice = unitPrice

	stock, err = s.ledger.AppendEntry(ctx, &entry, func(st *Models.FuelStock, e *Models.FuelEntry) error {
		if e.Source == Models.SourceDepot {
			if e.UnitPrice.IsZero() {
				e.UnitPrice = st.UnitPrice
			}
			if st.AvailableLiters.LessThan(e.Liters) {
				return &Models.InsufficientStockError{Requested: e.Liters, Available: st.AvailableLiters}
			}
			applyDelta(st, e)
		}
		e.Total = Models.Mul2(e.Liters, e.UnitPrice)
		return nil
	})
	return entry, stock, err
}

// AdjustStock corrects the depot balance by hand, for deliveries (ingress)
// or shrinkage (egress). The balance may never go negative.
func (s *Service) AdjustStock(ctx context.Context, who Access.Identity, direction Models.StockDirection, liters decimal.Decimal, notes string) (entry Models.FuelEntry, stock Models.FuelStock, err error) {
	defer func() { s.observe(Models.FuelAdjustment, string(direction), stock, err) }()
	if err = Access.Check(who, Access.AdjustFuelStock); err != nil {
		return entry, stock, err
	}
	if direction != Models.StockIngress && direction != Models.StockEgress {
		return entry, stock, Models.Invalid("direction", "must be ingress or egress")
	}
	liters = Models.Round2(liters)
	if !liters.IsPositive() {
		return entry, stock, Models.Invalid("liters", "must be greater than zero")
	}

	entry, err = s.newEntry("", Models.FuelAdjustment, liters, notes, who)
	if err != nil {
		return entry, stock, err
	}
	entry.Direction = direction

	stock, err = s.ledger.AppendEntry(ctx, &entry, func(st *Models.FuelStock, e *Models.FuelEntry) error {
		e.UnitPrice = st.UnitPrice
		e.Total = Models.Mul2(e.Liters, e.UnitPrice)
		if st.AvailableLiters.Add(e.StockDelta()).IsNegative() {
			return Models.Invalid("liters", "negative resulting stock")
		}
		applyDelta(st, e)
		return nil
	})
	return entry, stock, err
}

// GetBalance returns the depot balance, creating it at zero if needed.
func (s *Service) GetBalance(ctx context.Context, who Access.Identity) (Models.FuelStock, error) {
	if err := Access.Check(who, Access.GetFuelBalance); err != nil {
		return Models.FuelStock{}, err
	}
	return s.ledger.GetStock(ctx)
}

func (s *Service) SetDepotPrice(ctx context.Context, who Access.Identity, price decimal.Decimal) (Models.FuelStock, error) {
	if err := Access.Check(who, Access.SetFuelPrice); err != nil {
		return Models.FuelStock{}, err
	}
	price = Models.Round2(price)
	if price.IsNegative() {
		return Models.FuelStock{}, Models.Invalid("unit_price", "must not be negative")
	}
	stock, err := s.ledger.UpdateStock(ctx, func(st *Models.FuelStock) error {
		st.UnitPrice = price
		return nil
	})
	if err == nil {
		s.logger.Info("depot fuel price updated", "unit_price", price.StringFixed(2), "by", who.UserID)
	}
	return stock, err
}

func (s *Service) ListEntries(ctx context.Context, who Access.Identity, filter Models.FuelEntryFilter) ([]Models.FuelEntry, error) {
	if err := Access.Check(who, Access.ListFuelEntries); err != nil {
		return nil, err
	}
	return s.ledger.ListEntries(ctx, filter)
}

// Summarize groups the loads of one month by truck, split by source. Loads
// without a truck are reported under truck 0.
func (s *Service) Summarize(ctx context.Context, who Access.Identity, month, year int) (Models.FuelSummary, error) {
	summary := Models.FuelSummary{Month: month, Year: year, Trucks: []Models.TruckFuelSummary{}}
	if err := Access.Check(who, Access.SummarizeFuel); err != nil {
		return summary, err
	}
	if month < 1 || month > 12 {
		return summary, Models.Invalid("month", "must be between 1 and 12")
	}
	if year < 1 {
		return summary, Models.Invalid("year", "required")
	}

	entries, err := s.ledger.ListEntries(ctx, Models.FuelEntryFilter{Kind: Models.FuelLoad, Month: month, Year: year})
	if err != nil {
		return summary, err
	}

	byTruck := make(map[uint]*Models.TruckFuelSummary)
	var ids []uint
	for _, e := range entries {
		var truckID uint
		if e.TruckID != nil {
			truckID = *e.TruckID
		}
		row, ok := byTruck[truckID]
		if !ok {
			row = &Models.TruckFuelSummary{TruckID: truckID}
			byTruck[truckID] = row
			if truckID != 0 {
				ids = append(ids, truckID)
			}
		}
		switch e.Source {
		case Models.SourceDepot:
			row.DepotLiters = row.DepotLiters.Add(e.Liters)
			row.DepotCost = row.DepotCost.Add(e.Total)
			row.DepotLoads++
		case Models.SourceExternal:
			row.ExternalLiters = row.ExternalLiters.Add(e.Liters)
			row.ExternalCost = row.ExternalCost.Add(e.Total)
			row.ExternalLoads++
		}
	}

	plates, err := s.refs.TruckPlates(ctx, ids)
	if err != nil {
		return summary, err
	}
	for id, row := range byTruck {
		row.Plate = plates[id]
		row.DepotLiters = Models.Round2(row.DepotLiters)
		row.DepotCost = Models.Round2(row.DepotCost)
		row.ExternalLiters = Models.Round2(row.ExternalLiters)
		row.ExternalCost = Models.Round2(row.ExternalCost)
		row.TotalLiters = row.DepotLiters.Add(row.ExternalLiters)
		row.TotalCost = row.DepotCost.Add(row.ExternalCost)

		summary.DepotLiters = summary.DepotLiters.Add(row.DepotLiters)
		summary.ExternalLiters = summary.ExternalLiters.Add(row.ExternalLiters)
		summary.TotalCost = summary.TotalCost.Add(row.TotalCost)
		summary.Trucks = append(summary.Trucks, *row)
	}
	sort.Slice(summary.Trucks, func(i, j int) bool { return summary.Trucks[i].TruckID < summary.Trucks[j].TruckID })
	return summary, nil
}

// LedgerReport compares the stored balance with a replay of every entry.
type LedgerReport struct {
	Entries    int             `json:"entries"`
	Replayed   decimal.Decimal `json:"replayed"`
	Stored     decimal.Decimal `json:"stored"`
	Consistent bool            `json:"consistent"`
	// NegativeAt is the first entry after which the replayed balance was
	// below zero, if any.
	NegativeAt *uint `json:"negative_at,omitempty"`
}

// Replay recomputes the balance from zero in insertion order.
func (s *Service) Replay(ctx context.Context, who Access.Identity) (LedgerReport, error) {
	var report LedgerReport
	if err := Access.Check(who, Access.VerifyLedger); err != nil {
		return report, err
	}
	stock, err := s.ledger.GetStock(ctx)
	if err != nil {
		return report, err
	}
	entries, err := s.ledger.ListEntries(ctx, Models.FuelEntryFilter{})
	if err != nil {
		return report, err
	}

	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.StockDelta())
		if balance.IsNegative() && report.NegativeAt == nil {
			id := e.ID
			report.NegativeAt = &id
		}
	}
	report.Entries = len(entries)
	report.Replayed = Models.Round2(balance)
	report.Stored = stock.AvailableLiters
	report.Consistent = report.NegativeAt == nil && report.Replayed.Equal(report.Stored)
	if !report.Consistent {
		s.logger.Error("fuel ledger does not match stock",
			"replayed", report.Replayed.StringFixed(2), "stored", report.Stored.StringFixed(2))
	}
	return report, nil
}

func (s *Service) newEntry(date string, kind Models.FuelEntryKind, liters decimal.Decimal, notes string, who Access.Identity) (Models.FuelEntry, error) {
	if strings.TrimSpace(date) == "" {
		date = Models.Today(s.now())
	}
	normalized, err := Models.NormalizeDate(date)
	if err != nil {
		return Models.FuelEntry{}, err
	}
	month, year, err := Models.MonthYear(normalized)
	if err != nil {
		return Models.FuelEntry{}, err
	}
	return Models.FuelEntry{
		Kind:       kind,
		Date:       normalized,
		Month:      month,
		Year:       year,
		Liters:     liters,
		Notes:      strings.TrimSpace(notes),
		RecordedBy: who.UserID,
	}, nil
}

// applyDelta moves the stock by the entry's delta and stamps the entry with
// the balance before and after.
func applyDelta(st *Models.FuelStock, e *Models.FuelEntry) {
	before := st.AvailableLiters
	st.AvailableLiters = Models.Round2(before.Add(e.StockDelta()))
	after := st.AvailableLiters
	e.StockBefore = &before
	e.StockAfter = &after
}

func (s *Service) observe(kind Models.FuelEntryKind, source string, stock Models.FuelStock, err error) {
	switch source {
	case string(Models.SourceDepot), string(Models.SourceExternal), string(Models.StockIngress), string(Models.StockEgress):
	default:
		source = "invalid"
	}
	Metrics.FuelMovements.WithLabelValues(string(kind), source, Metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Debug("fuel movement rejected", "kind", kind, "source", source, "error", err)
		return
	}
	liters, _ := stock.AvailableLiters.Float64()
	Metrics.FuelStockLiters.Set(liters)
	s.logger.Info("fuel movement recorded", "kind", kind, "source", source, "available_liters", stock.AvailableLiters.StringFixed(2))
}
