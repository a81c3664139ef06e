package tickets

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

// Repository persists tickets and the status transitions the purchase and
// sweep flows apply.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, ticket *models.Ticket) error
	Save(ctx context.Context, ticket *models.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	FindByCode(ctx context.Context, code string) (*models.Ticket, error)
	FindLatestFailed(ctx context.Context, userID, eventID uuid.UUID) (*models.Ticket, error)
	HasActiveTicket(ctx context.Context, userID, eventID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Ticket, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Ticket, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (int64, error)
	MarkCancelled(ctx context.Context, id uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a tickets repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *repository) Save(ctx context.Context, ticket *models.Ticket) error {
	return r.db.WithContext(ctx).Save(ticket).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).
		Preload("Event").
		Where("id = ?", id).
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).
		Preload("Event").
		Where("ticket_id = ?", code).
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
		}
		return nil, err
	}
	return &ticket, nil
}

// FindLatestFailed returns the newest failed ticket for the buyer/event
// pair, or nil when there is none. Retried purchases reuse that row so the
// payment reference stays stable.
func (r *repository) FindLatestFailed(ctx context.Context, userID, eventID uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ? AND status = ?", userID, eventID, enums.TicketStatusFailed).
		Order("created_at DESC").
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ticket, nil
}

// HasActiveTicket reports whether the buyer already holds a live ticket for
// the event. Failed and cancelled rows do not count.
func (r *repository) HasActiveTicket(ctx context.Context, userID, eventID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("user_id = ? AND event_id = ? AND status NOT IN ?", userID, eventID,
			[]enums.TicketStatus{enums.TicketStatusFailed, enums.TicketStatusCancelled}).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error) {
	var list []models.Ticket
	err := r.db.WithContext(ctx).
		Preload("Event").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Ticket, error) {
	var list []models.Ticket
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Ticket, error) {
	var list []models.Ticket
	query := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.TicketStatusPending, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&list).Error
	return list, err
}

// MarkFailed flips a pending ticket to failed. Zero rows means the ticket
// already left the pending state.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status = ?", id, enums.TicketStatusPending).
		UpdateColumn("status", enums.TicketStatusFailed)
	return result.RowsAffected, result.Error
}

// MarkCancelled reclaims a pending ticket. Zero rows means a webhook or
// another sweeper got there first.
func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status = ?", id, enums.TicketStatusPending).
		UpdateColumn("status", enums.TicketStatusCancelled)
	return result.RowsAffected, result.Error
}
