package Controllers

import (
	"net/http"

	"FalconFreight/Models"
	"FalconFreight/Trips"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// TripHandler contains handler methods for trip routes
type TripHandler struct {
	Trips *Trips.Service
}

// NewTripHandler creates a new trip handler
func NewTripHandler(trips *Trips.Service) *TripHandler {
	return &TripHandler{
		Trips: trips,
	}
}

type createTripRequest struct {
	Origin         string           `json:"origin" validate:"required"`
	Destination    string           `json:"destination" validate:"required"`
	Date           string           `json:"date" validate:"required"`
	TruckID        uint             `json:"truck_id" validate:"required"`
	TrailerID      *uint            `json:"trailer_id"`
	ClientID       *uint            `json:"client_id"`
	CargoType      string           `json:"cargo_type"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	PricePerWeight *decimal.Decimal `json:"price_per_weight"`
}

type editTripRequest struct {
	Origin         *string          `json:"origin"`
	Destination    *string          `json:"destination"`
	Date           *string          `json:"date"`
	TruckID        *uint            `json:"truck_id"`
	TrailerID      *uint            `json:"trailer_id"`
	ClearTrailer   bool             `json:"clear_trailer"`
	ClientID       *uint            `json:"client_id"`
	ClearClient    bool             `json:"clear_client"`
	CargoType      *string          `json:"cargo_type"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	PricePerWeight *decimal.Decimal `json:"price_per_weight"`
}

type takeTripRequest struct {
	DriverID uint `json:"driver_id"`
}

type finalizeTripRequest struct {
	Distance     decimal.Decimal  `json:"distance"`
	FuelConsumed decimal.Decimal  `json:"fuel_consumed"`
	CargoWeight  *decimal.Decimal `json:"cargo_weight"`
}

type invoiceRequest struct {
	Status *Models.InvoiceStatus `json:"invoice_status" validate:"omitempty,oneof=pending issued collected overdue"`
	Date   *string               `json:"invoice_date"`
	File   *string               `json:"invoice_file"`
	Number *string               `json:"invoice_number"`
}

type creditNoteRequest struct {
	Motive string          `json:"motive" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type purgeRequest struct {
	Before string `json:"before" validate:"required"`
}

func (h *TripHandler) GetTrips(c *fiber.Ctx) error {
	filter := Models.TripFilter{
		State:         Models.TripState(c.Query("state")),
		InvoiceStatus: Models.InvoiceStatus(c.Query("invoice_status")),
		From:          c.Query("from"),
		To:            c.Query("to"),
		Limit:         c.QueryInt("limit", 0),
		Offset:        c.QueryInt("offset", 0),
	}
	var err error
	if filter.DriverID, err = queryUint(c, "driver_id"); err != nil {
		return respondError(c, err)
	}
	if filter.TruckID, err = queryUint(c, "truck_id"); err != nil {
		return respondError(c, err)
	}

	trips, err := h.Trips.List(c.UserContext(), identity(c), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Trips retrieved successfully",
		"data":    trips,
	})
}

func (h *TripHandler) GetTrip(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	trip, err := h.Trips.Get(c.UserContext(), identity(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Trip retrieved successfully",
		"data":    trip,
	})
}

// CreateTrip creates a new pending trip
func (h *TripHandler) CreateTrip(c *fiber.Ctx) error {
	var req createTripRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	trip, err := h.Trips.Create(c.UserContext(), identity(c), Trips.CreateInput{
		Origin:         req.Origin,
		Destination:    req.Destination,
		Date:           req.Date,
		TruckID:        req.TruckID,
		TrailerID:      req.TrailerID,
		ClientID:       req.ClientID,
		CargoType:      req.CargoType,
		UnitPrice:      req.UnitPrice,
		PricePerWeight: req.PricePerWeight,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Trip created successfully",
		"data":    trip,
	})
}

func (h *TripHandler) UpdateTrip(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req editTripRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	trip, err := h.Trips.Edit(c.UserContext(), identity(c), id, Trips.EditInput{
		Origin:         req.Origin,
		Destination:    req.Destination,
		Date:           req.Date,
		TruckID:        req.TruckID,
		TrailerID:      req.TrailerID,
		ClearTrailer:   req.ClearTrailer,
		ClientID:       req.ClientID,
		ClearClient:    req.ClearClient,
		CargoType:      req.CargoType,
		UnitPrice:      req.UnitPrice,
		PricePerWeight: req.PricePerWeight,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Trip updated successfully",
		"data":    trip,
	})
}

func (h *TripHandler) DeleteTrip(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Trips.Delete(c.UserContext(), identity(c), id); err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Trip deleted successfully",
	})
}

// TakeTrip assigns the trip to a driver. Drivers take trips for themselves;
// admins name the driver in the body.
func (h *TripHandler) TakeTrip(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req takeTripRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
	}

	trip, err := h.Trips.Take(c.UserContext(), identity(c), id, req.DriverID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Trip taken",
		"data":    trip,
	})
}

func (h *TripHandler) FinalizeTrip(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req finalizeTripRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	trip, err := h.Trips.Finalize(c.UserContext(), identity(c), id, Trips.FinalizeInput{
		Distance:     req.Distance,
		FuelConsumed: req.FuelConsumed,
		CargoWeight:  req.CargoWeight,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Trip completed",
		"data":    trip,
	})
}

func (h *TripHandler) ReleaseTrip(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	trip, err := h.Trips.Release(c.UserContext(), identity(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Trip released",
		"data":    trip,
	})
}

func (h *TripHandler) RecordInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req invoiceRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	trip, err := h.Trips.RecordInvoice(c.UserContext(), identity(c), id, Trips.InvoiceInput{
		Status: req.Status,
		Date:   req.Date,
		File:   req.File,
		Number: req.Number,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Invoice updated",
		"data":    trip,
	})
}

func (h *TripHandler) RecordCreditNote(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req creditNoteRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	trip, err := h.Trips.RecordCreditNote(c.UserContext(), identity(c), id, req.Motive, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Credit note recorded",
		"data":    trip,
	})
}

// PurgeTrips physically removes every trip dated before the given day.
func (h *TripHandler) PurgeTrips(c *fiber.Ctx) error {
	var req purgeRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	purged, err := h.Trips.Purge(c.UserContext(), identity(c), req.Before)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Trips purged",
		"data":    fiber.Map{"purged": purged},
	})
}
