package Models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const NotificationInvoiceOverdue = "invoice_overdue"

// Notification is a system alert. Only Read ever changes after insert;
// delivery is left to whoever reads the table.
type Notification struct {
	gorm.Model
	Kind    string            `json:"kind" gorm:"type:varchar(32);index;not null"`
	Message string            `json:"message" gorm:"not null"`
	TripID  *uint             `json:"trip_id" gorm:"index"`
	Payload datatypes.JSONMap `json:"payload"`
	Read    bool              `json:"read" gorm:"column:is_read;index;not null"`
}

func (Notification) TableName() string {
	return "notifications"
}
