package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromoCode is a percentage discount scoped to a single event.
// UsageLimit zero means unlimited redemptions.
type PromoCode struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	EventID            uuid.UUID       `gorm:"column:event_id;type:uuid;not null;uniqueIndex:idx_promo_event_code"`
	Code               string          `gorm:"column:code;not null;uniqueIndex:idx_promo_event_code"`
	DiscountPercentage decimal.Decimal `gorm:"column:discount_percentage;type:numeric(5,2);not null"`
	UsageLimit         int             `gorm:"column:usage_limit;not null;default:0"`
	UsedCount          int             `gorm:"column:used_count;not null;default:0"`
	IsActive           bool            `gorm:"column:is_active;not null;default:true"`
	ExpiresAt          *time.Time      `gorm:"column:expires_at"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
