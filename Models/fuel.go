package Models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type FuelEntryKind string

const (
	FuelLoad       FuelEntryKind = "load"
	FuelAdjustment FuelEntryKind = "adjustment"
)

type FuelSource string

const (
	SourceDepot    FuelSource = "depot"
	SourceExternal FuelSource = "external"
)

type StockDirection string

const (
	StockIngress StockDirection = "ingress"
	StockEgress  StockDirection = "egress"
)

// FuelEntry is one append-only fuel movement. Liters are always positive;
// the effect on the depot is given by Kind, Source and Direction.
type FuelEntry struct {
	gorm.Model
	Kind      FuelEntryKind  `json:"kind" gorm:"type:varchar(16);index;not null"`
	Source    FuelSource     `json:"source,omitempty" gorm:"type:varchar(16)"`
	Direction StockDirection `json:"direction,omitempty" gorm:"type:varchar(16)"`

	TruckID  *uint `json:"truck_id" gorm:"index"`
	DriverID *uint `json:"driver_id" gorm:"index"`

	Date  string `json:"date" gorm:"type:varchar(10);not null"`
	Month int    `json:"month" gorm:"index:idx_fuel_period;not null"`
	Year  int    `json:"year" gorm:"index:idx_fuel_period;not null"`

	Liters    decimal.Decimal `json:"liters" gorm:"type:decimal(14,2);not null"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(14,2);not null"`
	Total     decimal.Decimal `json:"total" gorm:"type:decimal(14,2);not null"`

	StockBefore *decimal.Decimal `json:"stock_before,omitempty" gorm:"type:decimal(14,2)"`
	StockAfter  *decimal.Decimal `json:"stock_after,omitempty" gorm:"type:decimal(14,2)"`

	Notes      string `json:"notes"`
	RecordedBy uint   `json:"recorded_by"`
}

func (FuelEntry) TableName() string {
	return "fuel_entries"
}

// StockDelta is the signed effect of the entry on depot stock.
func (e FuelEntry) StockDelta() decimal.Decimal {
	switch e.Kind {
	case FuelLoad:
		if e.Source == SourceDepot {
			return e.Liters.Neg()
		}
	case FuelAdjustment:
		if e.Direction == StockIngress {
			return e.Liters
		}
		if e.Direction == StockEgress {
			return e.Liters.Neg()
		}
	}
	return decimal.Zero
}

// AffectsStock reports whether the entry moves depot liters.
func (e FuelEntry) AffectsStock() bool {
	return !e.StockDelta().IsZero()
}

// FuelStockID is the primary key of the singleton stock row.
const FuelStockID uint = 1

// FuelStock is the materialized depot balance. It is written only in the
// same transaction as the FuelEntry that moves it.
type FuelStock struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	AvailableLiters decimal.Decimal `json:"available_liters" gorm:"type:decimal(14,2);not null"`
	UnitPrice       decimal.Decimal `json:"unit_price" gorm:"type:decimal(14,2);not null"`
	Version         uint            `json:"version" gorm:"not null"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (FuelStock) TableName() string {
	return "fuel_stock"
}

// FuelEntryFilter narrows ledger listings. Zero values are ignored.
type FuelEntryFilter struct {
	Kind    FuelEntryKind
	Month   int
	Year    int
	TruckID *uint
}

// TruckFuelSummary is one row of a monthly load report.
type TruckFuelSummary struct {
	TruckID        uint            `json:"truck_id"`
	Plate          string          `json:"plate,omitempty"`
	DepotLiters    decimal.Decimal `json:"depot_liters"`
	DepotCost      decimal.Decimal `json:"depot_cost"`
	DepotLoads     int             `json:"depot_loads"`
	ExternalLiters decimal.Decimal `json:"external_liters"`
	ExternalCost   decimal.Decimal `json:"external_cost"`
	ExternalLoads  int             `json:"external_loads"`
	TotalLiters    decimal.Decimal `json:"total_liters"`
	TotalCost      decimal.Decimal `json:"total_cost"`
}

// FuelSummary aggregates all loads of one month.
type FuelSummary struct {
	Month  int                `json:"month"`
	Year   int                `json:"year"`
	Trucks []TruckFuelSummary `json:"trucks"`

	DepotLiters    decimal.Decimal `json:"depot_liters"`
	ExternalLiters decimal.Decimal `json:"external_liters"`
	TotalCost      decimal.Decimal `json:"total_cost"`
}
