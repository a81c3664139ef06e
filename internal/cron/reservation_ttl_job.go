package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/bukari-app/bukari-backend/internal/inventory"
	"github.com/bukari-app/bukari-backend/internal/payments"
	"github.com/bukari-app/bukari-backend/internal/promos"
	"github.com/bukari-app/bukari-backend/internal/tickets"
	"github.com/bukari-app/bukari-backend/pkg/db/models"
	"github.com/bukari-app/bukari-backend/pkg/logger"
)

const (
	defaultReservationTTL   = 30 * time.Minute
	defaultReservationBatch = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReservationTTLJobParams configure the pending reservation sweeper.
type ReservationTTLJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Tickets   tickets.Repository
	Payments  payments.Repository
	TTL       time.Duration
	BatchSize int
	Now       func() time.Time
}

type reservationTTLJob struct {
	logg     *logger.Logger
	db       txRunner
	tickets  tickets.Repository
	payments payments.Repository
	ttl      time.Duration
	batch    int
	now      func() time.Time
}

// NewReservationTTLJob builds the job that reclaims tickets whose checkout
// was never settled.
func NewReservationTTLJob(params ReservationTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Tickets == nil {
		return nil, fmt.Errorf("tickets repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	job := &reservationTTLJob{
		logg:     params.Logger,
		db:       params.DB,
		tickets:  params.Tickets,
		payments: params.Payments,
		ttl:      params.TTL,
		batch:    params.BatchSize,
		now:      params.Now,
	}
	if job.ttl <= 0 {
		job.ttl = defaultReservationTTL
	}
	if job.batch <= 0 {
		job.batch = defaultReservationBatch
	}
	if job.now == nil {
		job.now = func() time.Time { return time.Now().UTC() }
	}
	return job, nil
}

func (j *reservationTTLJob) Name() string {
	return "reservation_ttl"
}

// Run cancels stale pending tickets and returns their inventory. Each ticket
// is reclaimed in its own transaction so one bad row cannot stall the sweep.
func (j *reservationTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.ttl)
	stale, err := j.tickets.ListPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("listing stale reservations: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var errs error
	reclaimed := 0
	for i := range stale {
		if err := j.reclaim(ctx, &stale[i]); err != nil {
			j.logg.Error(j.logg.WithTicketID(ctx, stale[i].TicketID), "reclaiming stale reservation", err)
			errs = multierr.Append(errs, err)
			continue
		}
		reclaimed++
	}
	j.logg.Info(
		j.logg.WithField(j.logg.WithField(ctx, "stale", len(stale)), "reclaimed", reclaimed),
		"reservation sweep complete",
	)
	return errs
}

func (j *reservationTTLJob) reclaim(ctx context.Context, ticket *models.Ticket) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		// The conditional cancel re-checks status inside the transaction:
		// a webhook that settled after the listing wins and the sweep
		// leaves the ticket alone.
		rows, err := j.tickets.WithTx(tx).MarkCancelled(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		if err := j.payments.WithTx(tx).MarkTransactionFailed(ctx, ticket.PaymentRef); err != nil {
			return err
		}
		if err := inventory.Release(ctx, tx, ticket.EventID, ticket.Quantity); err != nil {
			return err
		}
		if ticket.PromoCodeID != nil {
			if err := promos.Refund(ctx, tx, *ticket.PromoCodeID); err != nil {
				return err
			}
		}
		return nil
	})
}
