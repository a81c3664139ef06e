package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bukari-app/bukari-backend/pkg/enums"
)

// Ticket is the purchased admission record. TicketID carries the human
// readable code printed on the ticket and embedded in the QR payload; ID
// is the database key.
type Ticket struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TicketID         string                `gorm:"column:ticket_id;not null;uniqueIndex"`
	EventID          uuid.UUID             `gorm:"column:event_id;type:uuid;not null;index"`
	UserID           uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	TicketType       string                `gorm:"column:ticket_type;not null;default:'General Admission'"`
	Quantity         int                   `gorm:"column:quantity;not null"`
	UnitPrice        decimal.Decimal       `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountApplied  decimal.Decimal       `gorm:"column:discount_applied;type:numeric(12,2);not null;default:0"`
	TotalPrice       decimal.Decimal       `gorm:"column:total_price;type:numeric(12,2);not null"`
	Currency         string                `gorm:"column:currency;not null;default:'NGN'"`
	Status           enums.TicketStatus    `gorm:"column:status;not null;default:'pending'"`
	PromoCodeID      *uuid.UUID            `gorm:"column:promo_code_id;type:uuid"`
	QRCodeData       string                `gorm:"column:qr_code_data;not null"`
	PaymentRef       string                `gorm:"column:payment_ref;not null;uniqueIndex"`
	PaymentProvider  enums.PaymentProvider `gorm:"column:payment_provider;not null"`
	ExcitementRating *int                  `gorm:"column:excitement_rating"`
	ScannedAt        *time.Time            `gorm:"column:scanned_at"`
	ScannedBy        *string               `gorm:"column:scanned_by"`
	PurchaseDate     time.Time             `gorm:"column:purchase_date;not null"`
	Event            *Event                `gorm:"foreignKey:EventID"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
