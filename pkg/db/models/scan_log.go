package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bukari-app/bukari-backend/pkg/enums"
)

// ScanLog is an append-only record of every gate scan attempt.
type ScanLog struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	TicketID  *uuid.UUID       `gorm:"column:ticket_id;type:uuid;index"`
	EventID   *uuid.UUID       `gorm:"column:event_id;type:uuid;index"`
	ScannedBy *string          `gorm:"column:scanned_by"`
	Result    enums.ScanResult `gorm:"column:result;not null"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}
