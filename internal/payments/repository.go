package payments

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bukari-app/bukari-backend/pkg/db/models"
	"github.com/bukari-app/bukari-backend/pkg/enums"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
)

// Repository persists payment transactions and applies the settlement
// state transitions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	FindByProviderRef(ctx context.Context, providerRef string) (*models.PaymentTransaction, error)
	MarkTransactionSettled(ctx context.Context, providerRef string, response json.RawMessage) (int64, error)
	MarkTransactionFailed(ctx context.Context, providerRef string) error
	PromoteTicket(ctx context.Context, paymentRef string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateTransaction inserts the pending transaction row. A retried purchase
// reuses the failed ticket's payment ref, so a conflicting insert refreshes
// the existing row for the new attempt instead of leaving the stale amount,
// provider and failed status behind.
func (r *repository) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_ref"}},
			DoUpdates: clause.AssignmentColumns([]string{"provider", "amount", "currency", "status", "provider_response"}),
		}).
		Create(txn).Error
}

func (r *repository) FindByProviderRef(ctx context.Context, providerRef string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("provider_ref = ?", providerRef).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return &txn, nil
}

// MarkTransactionSettled flips the transaction to success and stores the
// provider payload. Reapplying the same webhook touches the same row and
// converges on the same state.
func (r *repository) MarkTransactionSettled(ctx context.Context, providerRef string, response json.RawMessage) (int64, error) {
	updates := map[string]any{"status": enums.PaymentStatusSuccess}
	if len(response) > 0 {
		updates["provider_response"] = response
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("provider_ref = ?", providerRef).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) MarkTransactionFailed(ctx context.Context, providerRef string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("provider_ref = ? AND status = ?", providerRef, enums.PaymentStatusPending).
		UpdateColumn("status", enums.PaymentStatusFailed).Error
}

// PromoteTicket marks the paid ticket valid. Consumed, reclaimed and failed
// tickets are excluded so a late webhook can never resurrect them; a failed
// ticket has already had its inventory released.
func (r *repository) PromoteTicket(ctx context.Context, paymentRef string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("payment_ref = ? AND status NOT IN ?", paymentRef,
			[]enums.TicketStatus{enums.TicketStatusUsed, enums.TicketStatusCancelled, enums.TicketStatusFailed}).
		UpdateColumn("status", enums.TicketStatusValid)
	return result.RowsAffected, result.Error
}
