package scanner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bukari-app/bukari-backend/pkg/db/models"
	"github.com/bukari-app/bukari-backend/pkg/enums"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
)

// Repository covers the gate-side reads and the consume-once ticket update.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindTicket(ctx context.Context, code string, eventID uuid.UUID) (*models.Ticket, error)
	MarkTicketUsed(ctx context.Context, code string, eventID uuid.UUID, scannedBy string, at time.Time) (int64, error)
	AppendScanLog(ctx context.Context, entry *models.ScanLog) error
	FindAccessCode(ctx context.Context, eventID uuid.UUID, code string) (*models.ScannerAccessCode, error)
	FindAccessCodeByCode(ctx context.Context, code string) (*models.ScannerAccessCode, error)
	FindEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	EventCounts(ctx context.Context, eventID uuid.UUID) (sold int64, scanned int64, err error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

// FindTicket resolves a human ticket code scoped to the event being scanned.
func (r *repository) FindTicket(ctx context.Context, code string, eventID uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).
		Where("ticket_id = ? AND event_id = ?", code, eventID).
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finding ticket")
	}
	return &ticket, nil
}

// MarkTicketUsed consumes a valid ticket. The status predicate makes the
// update idempotence-safe: two racing scanners get one row between them. The
// event predicate keeps a gate from consuming another event's tickets.
func (r *repository) MarkTicketUsed(ctx context.Context, code string, eventID uuid.UUID, scannedBy string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("ticket_id = ? AND event_id = ? AND status = ?", code, eventID, enums.TicketStatusValid).
		Updates(map[string]any{
			"status":     enums.TicketStatusUsed,
			"scanned_at": at,
			"scanned_by": scannedBy,
		})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "marking ticket used")
	}
	return result.RowsAffected, nil
}

func (r *repository) AppendScanLog(ctx context.Context, entry *models.ScanLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "appending scan log")
	}
	return nil
}

func (r *repository) FindAccessCode(ctx context.Context, eventID uuid.UUID, code string) (*models.ScannerAccessCode, error) {
	var access models.ScannerAccessCode
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND code = ?", eventID, code).
		First(&access).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "access code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finding access code")
	}
	return &access, nil
}

// FindAccessCodeByCode resolves an access code presented without an event,
// as the scanning middleware sees it. Codes are globally unique.
func (r *repository) FindAccessCodeByCode(ctx context.Context, code string) (*models.ScannerAccessCode, error) {
	var access models.ScannerAccessCode
	err := r.db.WithContext(ctx).First(&access, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "access code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finding access code")
	}
	return &access, nil
}

func (r *repository) FindEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).First(&event, "id = ?", eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finding event")
	}
	return &event, nil
}

// EventCounts returns ticket units sold (valid or used) and units scanned.
func (r *repository) EventCounts(ctx context.Context, eventID uuid.UUID) (int64, int64, error) {
	var sold, scanned int64
	base := r.db.WithContext(ctx).Model(&models.Ticket{})

	err := base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("event_id = ? AND status IN ?", eventID, []enums.TicketStatus{enums.TicketStatusValid, enums.TicketStatusUsed}).
		Scan(&sold).Error
	if err != nil {
		return 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting sold tickets")
	}

	err = base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("event_id = ? AND status = ?", eventID, enums.TicketStatusUsed).
		Scan(&scanned).Error
	if err != nil {
		return 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting scanned tickets")
	}
	return sold, scanned, nil
}
