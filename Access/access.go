// Package Access decides which roles may run which core operations. Every
// service checks its caller once, against the table below, before touching
// the store.
package Access

import (
	"context"

	"FalconFreight/Models"
)

type Operation string

const (
	CreateTrip       Operation = "create trip"
	EditTrip         Operation = "edit trip"
	DeleteTrip       Operation = "delete trip"
	ViewTrips        Operation = "view trips"
	TakeTrip         Operation = "take trip"
	FinalizeTrip     Operation = "finalize trip"
	ReleaseTrip      Operation = "release trip"
	RecordInvoice    Operation = "record invoice"
	RecordCreditNote Operation = "record credit note"
	PurgeTrips       Operation = "purge trips"

	RecordFuelLoad  Operation = "record fuel load"
	AdjustFuelStock Operation = "adjust fuel stock"
	SetFuelPrice    Operation = "set fuel price"
	VerifyLedger    Operation = "verify fuel ledger"
	GetFuelBalance  Operation = "get fuel balance"
	SummarizeFuel   Operation = "summarize fuel"
	ListFuelEntries Operation = "list fuel entries"

	RunBillingSweep   Operation = "run billing sweep"
	ViewNotifications Operation = "view notifications"
)

type roleSet map[Models.Role]struct{}

func roles(rs ...Models.Role) roleSet {
	set := make(roleSet, len(rs))
	for _, r := range rs {
		set[r] = struct{}{}
	}
	return set
}

var (
	everyone    = roles(Models.RoleAdmin, Models.RoleDispatcher, Models.RoleDriver)
	adminOnly   = roles(Models.RoleAdmin)
	dispatchers = roles(Models.RoleAdmin, Models.RoleDispatcher)
	drivers     = roles(Models.RoleAdmin, Models.RoleDriver)
)

var capabilities = map[Operation]roleSet{
	CreateTrip:       dispatchers,
	EditTrip:         dispatchers,
	DeleteTrip:       dispatchers,
	ViewTrips:        everyone,
	TakeTrip:         drivers,
	FinalizeTrip:     drivers,
	ReleaseTrip:      adminOnly,
	RecordInvoice:    adminOnly,
	RecordCreditNote: adminOnly,
	PurgeTrips:       adminOnly,

	RecordFuelLoad:  drivers,
	AdjustFuelStock: adminOnly,
	SetFuelPrice:    adminOnly,
	VerifyLedger:    adminOnly,
	GetFuelBalance:  everyone,
	SummarizeFuel:   dispatchers,
	ListFuelEntries: dispatchers,

	RunBillingSweep:   adminOnly,
	ViewNotifications: dispatchers,
}

// Identity is the caller as resolved by the auth layer.
type Identity struct {
	UserID uint
	Role   Models.Role
}

// System is the identity used by scheduled jobs.
var System = Identity{Role: Models.RoleAdmin}

func (id Identity) IsAdmin() bool {
	return id.Role == Models.RoleAdmin
}

// Check returns an AuthorizationError unless the caller's role is allowed to
// run op. Unknown operations are denied.
func Check(who Identity, op Operation) error {
	if allowed, ok := capabilities[op]; ok {
		if _, ok := allowed[who.Role]; ok {
			return nil
		}
	}
	return &Models.AuthorizationError{Role: who.Role, Operation: string(op)}
}

// RequireDriver checks that id names an existing user with the driver role.
// Admins acting on a driver's behalf go through it; a driver's own identity
// was already resolved against the user table.
func RequireDriver(ctx context.Context, users UserLookup, id uint) error {
	if id == 0 {
		return Models.Invalid("driver_id", "required")
	}
	user, err := users.UserByID(ctx, id)
	if err != nil {
		if Models.IsNotFound(err) {
			return Models.Invalid("driver_id", "user does not exist")
		}
		return err
	}
	if user.Role != Models.RoleDriver {
		return Models.Invalid("driver_id", "user is not a driver")
	}
	return nil
}
