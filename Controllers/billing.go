package Controllers

import (
	"context"
	"net/http"

	"FalconFreight/Access"
	"FalconFreight/Billing"
	"FalconFreight/Stores"

	"github.com/gofiber/fiber/v2"
)

// SweepTrigger runs an on-demand billing sweep.
type SweepTrigger interface {
	RunNow(ctx context.Context, who Access.Identity) (Billing.SweepResult, error)
}

type BillingHandler struct {
	Sweeps        SweepTrigger
	Notifications Stores.NotificationSink
}

func NewBillingHandler(sweeps SweepTrigger, notifications Stores.NotificationSink) *BillingHandler {
	return &BillingHandler{
		Sweeps:        sweeps,
		Notifications: notifications,
	}
}

// RunSweep marks overdue invoices and raises their notifications now,
// instead of waiting for the next scheduled pass.
func (h *BillingHandler) RunSweep(c *fiber.Ctx) error {
	result, err := h.Sweeps.RunNow(c.UserContext(), identity(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Billing sweep completed",
		"data":    result,
	})
}

func (h *BillingHandler) GetNotifications(c *fiber.Ctx) error {
	if err := Access.Check(identity(c), Access.ViewNotifications); err != nil {
		return respondError(c, err)
	}
	notifications, err := h.Notifications.ListNotifications(c.UserContext(), c.QueryBool("unread"), c.QueryInt("limit", 100))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Notifications retrieved successfully",
		"data":    notifications,
	})
}

func (h *BillingHandler) MarkNotificationRead(c *fiber.Ctx) error {
	if err := Access.Check(identity(c), Access.ViewNotifications); err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Notifications.MarkNotificationRead(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Notification marked as read",
	})
}
