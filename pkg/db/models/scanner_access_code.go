package models

import (
	"time"

	"github.com/google/uuid"
)

// ScannerAccessCode authorizes gate staff to validate tickets for an event.
type ScannerAccessCode struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	EventID   uuid.UUID  `gorm:"column:event_id;type:uuid;not null;index"`
	Code      string     `gorm:"column:code;not null;uniqueIndex"`
	Label     *string    `gorm:"column:label"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
