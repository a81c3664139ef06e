package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bukari-app/bukari-backend/pkg/enums"
)

// PaymentTransaction records one provider charge attempt for a ticket.
// ProviderRef is the provider-side reference and is unique so replayed
// webhooks collapse onto the same row.
type PaymentTransaction struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TicketID         uuid.UUID             `gorm:"column:ticket_id;type:uuid;not null;index"`
	UserID           uuid.UUID             `gorm:"column:user_id;type:uuid;not null"`
	Provider         enums.PaymentProvider `gorm:"column:provider;not null"`
	ProviderRef      string                `gorm:"column:provider_ref;not null;uniqueIndex"`
	Amount           decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency         string                `gorm:"column:currency;not null;default:'NGN'"`
	Status           enums.PaymentStatus   `gorm:"column:status;not null;default:'pending'"`
	ProviderResponse json.RawMessage       `gorm:"column:provider_response;type:jsonb"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
