package Models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TripState string

const (
	TripPending    TripState = "pending"
	TripInProgress TripState = "in_progress"
	TripCompleted  TripState = "completed"
)

type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoiceIssued    InvoiceStatus = "issued"
	InvoiceCollected InvoiceStatus = "collected"
	InvoiceOverdue   InvoiceStatus = "overdue"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoiceIssued, InvoiceCollected, InvoiceOverdue:
		return true
	}
	return false
}

// Trip is a single haul. DriverID is set exactly when State is not pending,
// and Version is bumped by every write so concurrent transitions can be
// detected with a compare-and-swap.
type Trip struct {
	gorm.Model
	TruckID   uint    `json:"truck_id" gorm:"index;not null"`
	TrailerID *uint   `json:"trailer_id"`
	DriverID  *uint   `json:"driver_id" gorm:"index"`
	ClientID  *uint   `json:"client_id" gorm:"index"`
	Client    *Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`

	Origin      string    `json:"origin" gorm:"not null"`
	Destination string    `json:"destination" gorm:"not null"`
	Date        string    `json:"date" gorm:"type:varchar(10);index;not null"`
	CargoType   string    `json:"cargo_type"`
	State       TripState `json:"state" gorm:"type:varchar(16);index;not null"`

	// Set at completion
	Distance     *decimal.Decimal `json:"distance" gorm:"type:decimal(14,2)"`
	FuelConsumed *decimal.Decimal `json:"fuel_consumed" gorm:"type:decimal(14,2)"`
	CargoWeight  *decimal.Decimal `json:"cargo_weight" gorm:"type:decimal(14,2)"`

	UnitPrice       *decimal.Decimal `json:"unit_price" gorm:"type:decimal(14,2)"`
	PricePerWeight  *decimal.Decimal `json:"price_per_weight" gorm:"type:decimal(14,2)"`
	Amount          *decimal.Decimal `json:"amount" gorm:"type:decimal(14,2)"`
	CreditNoteTotal decimal.Decimal  `json:"credit_note_total" gorm:"type:decimal(14,2);not null"`
	CreditNoteCount int              `json:"credit_note_count" gorm:"not null"`

	InvoiceStatus   InvoiceStatus `json:"invoice_status" gorm:"type:varchar(16);index;not null"`
	InvoiceDate     *string       `json:"invoice_date" gorm:"type:varchar(10)"`
	InvoiceFile     string        `json:"invoice_file"`
	InvoiceNumber   string        `json:"invoice_number"`
	OverdueNotified bool          `json:"overdue_notified" gorm:"not null"`

	Version uint `json:"version" gorm:"not null"`

	CreditNotes []CreditNote `json:"credit_notes,omitempty" gorm:"foreignKey:TripID;constraint:OnDelete:CASCADE"`
}

func (Trip) TableName() string {
	return "trips"
}

// NetPayable is the computed amount minus issued credit notes.
func (t Trip) NetPayable() decimal.Decimal {
	if t.Amount == nil {
		return Round2(t.CreditNoteTotal.Neg())
	}
	return Round2(t.Amount.Sub(t.CreditNoteTotal))
}

// MarshalJSON adds net_payable to the stored columns. It stays null until the
// trip has an amount.
func (t Trip) MarshalJSON() ([]byte, error) {
	type plain Trip
	out := struct {
		plain
		NetPayable *decimal.Decimal `json:"net_payable"`
	}{plain: plain(t)}
	if t.Amount != nil {
		net := t.NetPayable()
		out.NetPayable = &net
	}
	return json.Marshal(out)
}

// ReferenceDate is the date the overdue age is measured from.
func (t Trip) ReferenceDate() string {
	if t.InvoiceDate != nil && *t.InvoiceDate != "" {
		return *t.InvoiceDate
	}
	return t.Date
}

// CreditNote is one administrative reduction of a trip's payable amount.
type CreditNote struct {
	gorm.Model
	TripID   uint            `json:"trip_id" gorm:"index;not null"`
	Motive   string          `json:"motive" gorm:"not null"`
	Amount   decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	Date     string          `json:"date" gorm:"type:varchar(10)"`
	IssuedBy uint            `json:"issued_by"`
}

func (CreditNote) TableName() string {
	return "credit_notes"
}

// TripFilter narrows trip listings. Zero values are ignored.
type TripFilter struct {
	State         TripState
	InvoiceStatus InvoiceStatus
	DriverID      *uint
	TruckID       *uint
	From          string
	To            string
	Limit         int
	Offset        int
}
