package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bukari-app/bukari-backend/pkg/enums"
)

// Event represents a sellable event with a fixed ticket inventory.
type Event struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Title            string            `gorm:"column:title;not null"`
	Description      *string           `gorm:"column:description"`
	Location         string            `gorm:"column:location;not null"`
	StartsAt         time.Time         `gorm:"column:starts_at;not null"`
	TotalTickets     int               `gorm:"column:total_tickets;not null"`
	AvailableTickets int               `gorm:"column:available_tickets;not null"`
	Price            decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	Currency         string            `gorm:"column:currency;not null;default:'NGN'"`
	Status           enums.EventStatus `gorm:"column:status;not null;default:'active'"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
