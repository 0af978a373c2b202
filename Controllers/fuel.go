package Controllers

import (
	"net/http"

	"FalconFreight/Fuel"
	"FalconFreight/Models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type FuelHandler struct {
	Fuel *Fuel.Service
}

func NewFuelHandler(fuel *Fuel.Service) *FuelHandler {
	return &FuelHandler{Fuel: fuel}
}

type fuelLoadRequest struct {
	TruckID   *uint             `json:"truck_id"`
	DriverID  uint              `json:"driver_id"`
	Date      string            `json:"date"`
	Liters    decimal.Decimal   `json:"liters"`
	UnitPrice decimal.Decimal   `json:"unit_price"`
	Source    Models.FuelSource `json:"source" validate:"required,oneof=depot external"`
	Notes     string            `json:"notes"`
}

type stockAdjustmentRequest struct {
	Direction Models.StockDirection `json:"direction" validate:"required,oneof=ingress egress"`
	Liters    decimal.Decimal       `json:"liters"`
	Notes     string                `json:"notes"`
}

type fuelPriceRequest struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (h *FuelHandler) GetBalance(c *fiber.Ctx) error {
	stock, err := h.Fuel.GetBalance(c.UserContext(), identity(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Fuel balance retrieved successfully",
		"data":    stock,
	})
}

// RecordLoad logs fuel put into a truck, drawing down the depot stock for
// depot loads.
func (h *FuelHandler) RecordLoad(c *fiber.Ctx) error {
	var req fuelLoadRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	entry, stock, err := h.Fuel.RecordLoad(c.UserContext(), identity(c), Fuel.LoadInput{
		TruckID:   req.TruckID,
		DriverID:  req.DriverID,
		Date:      req.Date,
		Liters:    req.Liters,
		UnitPrice: req.UnitPrice,
		Source:    req.Source,
		Notes:     req.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Fuel load recorded",
		"data":    fiber.Map{"entry": entry, "stock": stock},
	})
}

func (h *FuelHandler) AdjustStock(c *fiber.Ctx) error {
	var req stockAdjustmentRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	entry, stock, err := h.Fuel.AdjustStock(c.UserContext(), identity(c), req.Direction, req.Liters, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Stock adjusted",
		"data":    fiber.Map{"entry": entry, "stock": stock},
	})
}

func (h *FuelHandler) SetPrice(c *fiber.Ctx) error {
	var req fuelPriceRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	stock, err := h.Fuel.SetDepotPrice(c.UserContext(), identity(c), req.UnitPrice)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Depot price updated",
		"data":    stock,
	})
}

func (h *FuelHandler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.Fuel.Summarize(c.UserContext(), identity(c), c.QueryInt("month"), c.QueryInt("year"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Fuel summary retrieved successfully",
		"data":    summary,
	})
}

func (h *FuelHandler) GetEntries(c *fiber.Ctx) error {
	filter := Models.FuelEntryFilter{
		Kind:  Models.FuelEntryKind(c.Query("kind")),
		Month: c.QueryInt("month"),
		Year:  c.QueryInt("year"),
	}
	var err error
	if filter.TruckID, err = queryUint(c, "truck_id"); err != nil {
		return respondError(c, err)
	}

	entries, err := h.Fuel.ListEntries(c.UserContext(), identity(c), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Fuel entries retrieved successfully",
		"data":    entries,
	})
}

// VerifyLedger replays every stock movement and compares the result with the
// stored balance.
func (h *FuelHandler) VerifyLedger(c *fiber.Ctx) error {
	report, err := h.Fuel.Replay(c.UserContext(), identity(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Ledger verified",
		"data":    report,
	})
}
