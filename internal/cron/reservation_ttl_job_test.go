package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bukari-app/bukari-backend/internal/payments"
	"github.com/bukari-app/bukari-backend/internal/tickets"
	"github.com/bukari-app/bukari-backend/pkg/db/models"
	"github.com/bukari-app/bukari-backend/pkg/enums"
	"github.com/bukari-app/bukari-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type sweepFixture struct {
	db    *gorm.DB
	job   Job
	event *models.Event
	promo *models.PromoCode
}

func newSweepFixture(t *testing.T, ttl time.Duration) *sweepFixture {
	t.Helper()
	db := newSweepTestDB(t)

	event := &models.Event{
		ID:               uuid.New(),
		Title:            "Sweep Night",
		Location:         "Abuja",
		StartsAt:         time.Now().UTC().Add(24 * time.Hour),
		TotalTickets:     50,
		AvailableTickets: 40,
		Price:            decimal.RequireFromString("2000.00"),
		Currency:         "NGN",
		Status:           enums.EventStatusActive,
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	promo := &models.PromoCode{
		ID:                 uuid.New(),
		EventID:            event.ID,
		Code:               "SWEEP",
		DiscountPercentage: decimal.RequireFromString("10"),
		UsageLimit:         10,
		UsedCount:          3,
		IsActive:           true,
	}
	if err := db.Create(promo).Error; err != nil {
		t.Fatalf("seed promo: %v", err)
	}

	job, err := NewReservationTTLJob(ReservationTTLJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "sweep-test"}),
		DB:       gormTxRunner{db: db},
		Tickets:  tickets.NewRepository(db),
		Payments: payments.NewRepository(db),
		TTL:      ttl,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return &sweepFixture{db: db, job: job, event: event, promo: promo}
}

func (f *sweepFixture) seedTicket(t *testing.T, status enums.TicketStatus, age time.Duration, promoID *uuid.UUID) *models.Ticket {
	t.Helper()
	created := time.Now().UTC().Add(-age)
	ticket := &models.Ticket{
		ID:           uuid.New(),
		TicketID:     "BUKR-" + uuid.NewString()[:8],
		EventID:      f.event.ID,
		UserID:       uuid.New(),
		TicketType:   "General Admission",
		Quantity:     2,
		UnitPrice:    decimal.RequireFromString("2000.00"),
		TotalPrice:   decimal.RequireFromString("4000.00"),
		Currency:     "NGN",
		Status:       status,
		PromoCodeID:  promoID,
		QRCodeData:   "{}",
		PaymentRef:   "BUKR-PAY-" + uuid.NewString()[:12],
		PurchaseDate: created,
	}
	if err := f.db.Create(ticket).Error; err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	// AutoCreateTime stamps now; backdate to simulate a stale reservation.
	if err := f.db.Model(ticket).Update("created_at", created).Error; err != nil {
		t.Fatalf("backdate ticket: %v", err)
	}
	txn := &models.PaymentTransaction{
		ID:          uuid.New(),
		TicketID:    ticket.ID,
		UserID:      ticket.UserID,
		Provider:    enums.PaymentProviderPaystack,
		ProviderRef: ticket.PaymentRef,
		Amount:      ticket.TotalPrice,
		Currency:    "NGN",
		Status:      enums.PaymentStatusPending,
	}
	if err := f.db.Create(txn).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return ticket
}

func (f *sweepFixture) ticketStatus(t *testing.T, id uuid.UUID) enums.TicketStatus {
	t.Helper()
	var ticket models.Ticket
	if err := f.db.First(&ticket, "id = ?", id).Error; err != nil {
		t.Fatalf("load ticket: %v", err)
	}
	return ticket.Status
}

func TestReservationSweepReclaimsStaleTickets(t *testing.T) {
	t.Parallel()

	f := newSweepFixture(t, 30*time.Minute)
	stale := f.seedTicket(t, enums.TicketStatusPending, time.Hour, &f.promo.ID)
	fresh := f.seedTicket(t, enums.TicketStatusPending, 5*time.Minute, nil)
	settled := f.seedTicket(t, enums.TicketStatusValid, 2*time.Hour, nil)

	if err := f.job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := f.ticketStatus(t, stale.ID); got != enums.TicketStatusCancelled {
		t.Fatalf("stale ticket must be cancelled, got %s", got)
	}
	if got := f.ticketStatus(t, fresh.ID); got != enums.TicketStatusPending {
		t.Fatalf("fresh ticket must survive the sweep, got %s", got)
	}
	if got := f.ticketStatus(t, settled.ID); got != enums.TicketStatusValid {
		t.Fatalf("settled ticket must survive the sweep, got %s", got)
	}

	var event models.Event
	if err := f.db.First(&event, "id = ?", f.event.ID).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.AvailableTickets != 42 {
		t.Fatalf("expected 2 units returned, got %d available", event.AvailableTickets)
	}

	var txn models.PaymentTransaction
	if err := f.db.First(&txn, "provider_ref = ?", stale.PaymentRef).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if txn.Status != enums.PaymentStatusFailed {
		t.Fatalf("stale payment must be failed, got %s", txn.Status)
	}

	var promo models.PromoCode
	if err := f.db.First(&promo, "id = ?", f.promo.ID).Error; err != nil {
		t.Fatalf("load promo: %v", err)
	}
	if promo.UsedCount != 2 {
		t.Fatalf("promo redemption must be refunded, got used count %d", promo.UsedCount)
	}
}

func TestReservationSweepIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newSweepFixture(t, 30*time.Minute)
	stale := f.seedTicket(t, enums.TicketStatusPending, time.Hour, nil)

	for i := 0; i < 3; i++ {
		if err := f.job.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if got := f.ticketStatus(t, stale.ID); got != enums.TicketStatusCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}
	var event models.Event
	if err := f.db.First(&event, "id = ?", f.event.ID).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.AvailableTickets != 42 {
		t.Fatalf("repeated sweeps must not release twice, got %d", event.AvailableTickets)
	}
}

func TestReservationSweepNoStaleRows(t *testing.T) {
	t.Parallel()

	f := newSweepFixture(t, 30*time.Minute)
	f.seedTicket(t, enums.TicketStatusPending, time.Minute, nil)

	if err := f.job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func newSweepTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:sweep_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Event{},
		&models.PromoCode{},
		&models.Ticket{},
		&models.PaymentTransaction{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
