// Package inventory guards the per-event ticket pool. Reservations run
// inside the caller's transaction and take a row lock on the event so
// concurrent purchases serialize instead of overselling.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bukari-app/bukari-backend/pkg/db/models"
	"github.com/bukari-app/bukari-backend/pkg/enums"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
)

// Reserve decrements the event's available tickets by qty under a row lock.
// The returned event reflects the state after the decrement.
func Reserve(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, qty int) (*models.Event, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction handle required")
	}
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be at least 1")
	}

	query := tx.WithContext(ctx).Where("id = ?", eventID)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var event models.Event
	err := query.First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, fmt.Errorf("locking event row: %w", err)
	}

	if event.Status != enums.EventStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "event is not open for sales")
	}
	if event.AvailableTickets < qty {
		if event.AvailableTickets == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "event is sold out")
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("only %d tickets remaining", event.AvailableTickets))
	}

	// Guarded decrement: the pool can never go negative.
	result := tx.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ? AND available_tickets >= ?", eventID, qty).
		UpdateColumn("available_tickets", gorm.Expr("available_tickets - ?", qty))
	if result.Error != nil {
		return nil, fmt.Errorf("decrementing available tickets: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "event is sold out")
	}

	event.AvailableTickets -= qty
	return &event, nil
}

// Release returns qty tickets to the event pool, capped at the event's
// capacity so repeated releases never inflate inventory.
func Release(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, qty int) error {
	if tx == nil {
		return fmt.Errorf("transaction handle required")
	}
	if eventID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release quantity must be at least 1")
	}

	err := tx.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", eventID).
		UpdateColumn("available_tickets",
			gorm.Expr("CASE WHEN available_tickets + ? > total_tickets THEN total_tickets ELSE available_tickets + ? END", qty, qty)).Error
	if err != nil {
		return fmt.Errorf("releasing tickets: %w", err)
	}
	return nil
}
