package tickets

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bukari-app/bukari-backend/internal/payments"
	"github.com/bukari-app/bukari-backend/internal/payments/providers"
	"github.com/bukari-app/bukari-backend/internal/users"
	"github.com/bukari-app/bukari-backend/pkg/db/models"
	"github.com/bukari-app/bukari-backend/pkg/enums"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type fakeProvider struct {
	name  enums.PaymentProvider
	fail  bool
	calls int
	last  providers.CheckoutRequest
}

func (f *fakeProvider) Name() enums.PaymentProvider {
	return f.name
}

func (f *fakeProvider) InitCheckout(ctx context.Context, req providers.CheckoutRequest) (*providers.CheckoutSession, error) {
	f.calls++
	f.last = req
	if f.fail {
		return nil, pkgerrors.New(pkgerrors.CodePaymentFailed, "gateway unreachable")
	}
	return &providers.CheckoutSession{
		Provider:    f.name,
		RedirectURL: "https://checkout.test/" + req.Reference,
		Reference:   req.Reference,
	}, nil
}

type fixture struct {
	db       *gorm.DB
	svc      Service
	provider *fakeProvider
	user     *models.User
	event    *models.Event
}

func newFixture(t *testing.T, available int) *fixture {
	t.Helper()
	db := newTestDB(t)

	provider := &fakeProvider{name: enums.PaymentProviderPaystack}
	svc, err := NewService(
		gormTxRunner{db: db},
		NewRepository(db),
		users.NewRepository(db),
		payments.NewRepository(db),
		providers.Registry{enums.PaymentProviderPaystack: provider},
		"https://bukari.app/payments/callback",
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	user := &models.User{ID: uuid.New(), Name: "Ada", Email: "ada@example.com"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	event := &models.Event{
		ID:               uuid.New(),
		Title:            "Test Night",
		Location:         "Lagos",
		StartsAt:         time.Now().UTC().Add(48 * time.Hour),
		TotalTickets:     available,
		AvailableTickets: available,
		Price:            decimal.RequireFromString("5000.00"),
		Currency:         "NGN",
		Status:           enums.EventStatusActive,
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}

	return &fixture{db: db, svc: svc, provider: provider, user: user, event: event}
}

func (f *fixture) availableTickets(t *testing.T) int {
	t.Helper()
	var event models.Event
	if err := f.db.First(&event, "id = ?", f.event.ID).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	return event.AvailableTickets
}

func baseRequest(f *fixture) PurchaseRequest {
	return PurchaseRequest{
		EventID:  f.event.ID,
		Quantity: 2,
		Provider: "paystack",
	}
}

func TestPurchaseCreatesPendingTicketAndPayment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	result, err := f.svc.Purchase(context.Background(), f.user.ID, baseRequest(f))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	ticket := result.Ticket
	if ticket.Status != enums.TicketStatusPending {
		t.Fatalf("new tickets must be pending, got %s", ticket.Status)
	}
	if !ticket.TotalPrice.Equal(decimal.RequireFromString("10000")) {
		t.Fatalf("unexpected total %s", ticket.TotalPrice)
	}
	if len(ticket.TicketID) == 0 || ticket.TicketID[:5] != "BUKR-" {
		t.Fatalf("unexpected ticket code %q", ticket.TicketID)
	}
	if result.Payment.RedirectURL != "https://checkout.test/"+ticket.PaymentRef {
		t.Fatalf("unexpected redirect %s", result.Payment.RedirectURL)
	}
	if f.provider.last.Email != "ada@example.com" {
		t.Fatalf("provider must receive buyer email, got %q", f.provider.last.Email)
	}

	if got := f.availableTickets(t); got != 8 {
		t.Fatalf("expected 8 tickets remaining, got %d", got)
	}
	var txn models.PaymentTransaction
	if err := f.db.First(&txn, "provider_ref = ?", ticket.PaymentRef).Error; err != nil {
		t.Fatalf("load payment transaction: %v", err)
	}
	if txn.Status != enums.PaymentStatusPending {
		t.Fatalf("unexpected payment status %s", txn.Status)
	}
}

func TestPurchaseAppliesPromoAtomically(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	promo := &models.PromoCode{
		ID:                 uuid.New(),
		EventID:            f.event.ID,
		Code:               "EARLYBIRD",
		DiscountPercentage: decimal.RequireFromString("25"),
		UsageLimit:         1,
		IsActive:           true,
	}
	if err := f.db.Create(promo).Error; err != nil {
		t.Fatalf("seed promo: %v", err)
	}

	req := baseRequest(f)
	code := "EARLYBIRD"
	req.PromoCode = &code

	result, err := f.svc.Purchase(context.Background(), f.user.ID, req)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !result.Ticket.TotalPrice.Equal(decimal.RequireFromString("7500")) {
		t.Fatalf("expected discounted total 7500, got %s", result.Ticket.TotalPrice)
	}
	if result.Ticket.PromoCodeID == nil || *result.Ticket.PromoCodeID != promo.ID {
		t.Fatalf("promo id not recorded")
	}

	// Limit is spent; the next redemption must fail and leave no ticket.
	_, err = f.svc.Purchase(context.Background(), f.user.ID, req)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict on exhausted promo, got %v", err)
	}
	if got := f.availableTickets(t); got != 8 {
		t.Fatalf("failed promo purchase must not consume inventory, got %d remaining", got)
	}
}

func TestPurchaseRejectsUnknownPromo(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	req := baseRequest(f)
	code := "NOPE"
	req.PromoCode = &code

	_, err := f.svc.Purchase(context.Background(), f.user.ID, req)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := f.availableTickets(t); got != 10 {
		t.Fatalf("rolled back purchase must release reservation, got %d", got)
	}
}

func TestPurchasePreventsOversell(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)

	if _, err := f.svc.Purchase(context.Background(), f.user.ID, baseRequest(f)); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	_, err := f.svc.Purchase(context.Background(), f.user.ID, baseRequest(f))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := f.availableTickets(t); got != 1 {
		t.Fatalf("expected 1 ticket left, got %d", got)
	}
}

func TestPurchaseValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	badRating := 11

	cases := []struct {
		name   string
		mutate func(*PurchaseRequest)
	}{
		{"zero quantity", func(r *PurchaseRequest) { r.Quantity = 0 }},
		{"quantity above cap", func(r *PurchaseRequest) { r.Quantity = 11 }},
		{"rating out of range", func(r *PurchaseRequest) { r.ExcitementRating = &badRating }},
		{"unknown provider", func(r *PurchaseRequest) { r.Provider = "square" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := baseRequest(f)
			tc.mutate(&req)
			_, err := f.svc.Purchase(context.Background(), f.user.ID, req)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if got := f.availableTickets(t); got != 10 {
		t.Fatalf("validation failures must not touch inventory, got %d", got)
	}
}

func TestPurchaseCompensatesProviderFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	promo := &models.PromoCode{
		ID:                 uuid.New(),
		EventID:            f.event.ID,
		Code:               "FLAKY",
		DiscountPercentage: decimal.RequireFromString("10"),
		UsageLimit:         5,
		IsActive:           true,
	}
	if err := f.db.Create(promo).Error; err != nil {
		t.Fatalf("seed promo: %v", err)
	}
	f.provider.fail = true

	req := baseRequest(f)
	code := "FLAKY"
	req.PromoCode = &code

	_, err := f.svc.Purchase(context.Background(), f.user.ID, req)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePaymentFailed {
		t.Fatalf("expected payment failed, got %v", err)
	}

	if got := f.availableTickets(t); got != 10 {
		t.Fatalf("compensation must release inventory, got %d", got)
	}
	var ticket models.Ticket
	if err := f.db.First(&ticket, "user_id = ?", f.user.ID).Error; err != nil {
		t.Fatalf("load ticket: %v", err)
	}
	if ticket.Status != enums.TicketStatusFailed {
		t.Fatalf("expected failed ticket, got %s", ticket.Status)
	}
	var txn models.PaymentTransaction
	if err := f.db.First(&txn, "provider_ref = ?", ticket.PaymentRef).Error; err != nil {
		t.Fatalf("load payment transaction: %v", err)
	}
	if txn.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %s", txn.Status)
	}
	var storedPromo models.PromoCode
	if err := f.db.First(&storedPromo, "id = ?", promo.ID).Error; err != nil {
		t.Fatalf("load promo: %v", err)
	}
	if storedPromo.UsedCount != 0 {
		t.Fatalf("compensation must refund promo redemption, got used count %d", storedPromo.UsedCount)
	}
}

func TestRetryAfterFailureReusesReference(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	f.provider.fail = true
	_, err := f.svc.Purchase(context.Background(), f.user.ID, baseRequest(f))
	if pkgerrors.As(err) == nil {
		t.Fatalf("expected provider failure, got %v", err)
	}

	var failed models.Ticket
	if err := f.db.First(&failed, "user_id = ?", f.user.ID).Error; err != nil {
		t.Fatalf("load failed ticket: %v", err)
	}

	f.provider.fail = false
	retryReq := baseRequest(f)
	retryReq.Quantity = 3
	result, err := f.svc.Purchase(context.Background(), f.user.ID, retryReq)
	if err != nil {
		t.Fatalf("retry purchase: %v", err)
	}

	if result.Ticket.ID != failed.ID {
		t.Fatalf("retry must reuse the failed ticket row")
	}
	if result.Ticket.PaymentRef != failed.PaymentRef {
		t.Fatalf("retry must keep the payment reference")
	}
	if result.Ticket.Status != enums.TicketStatusPending {
		t.Fatalf("retried ticket must be pending, got %s", result.Ticket.Status)
	}

	var count int64
	if err := f.db.Model(&models.Ticket{}).Where("user_id = ?", f.user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count tickets: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single ticket row, got %d", count)
	}

	// The payment row rides the same reference, so it must reflect the new
	// attempt, not the failed one.
	var txn models.PaymentTransaction
	if err := f.db.First(&txn, "provider_ref = ?", failed.PaymentRef).Error; err != nil {
		t.Fatalf("load payment transaction: %v", err)
	}
	if txn.Status != enums.PaymentStatusPending {
		t.Fatalf("reused payment row must be reset to pending, got %s", txn.Status)
	}
	if !txn.Amount.Equal(decimal.RequireFromString("15000.00")) {
		t.Fatalf("reused payment row must carry the new amount, got %s", txn.Amount)
	}
}

func seedFreeEvent(t *testing.T, f *fixture, available int) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:               uuid.New(),
		Title:            "Community Day",
		Location:         "Abuja",
		StartsAt:         time.Now().UTC().Add(24 * time.Hour),
		TotalTickets:     available,
		AvailableTickets: available,
		Price:            decimal.Zero,
		Currency:         "NGN",
		Status:           enums.EventStatusActive,
	}
	if err := f.db.Create(event).Error; err != nil {
		t.Fatalf("seed free event: %v", err)
	}
	return event
}

func TestClaimIssuesValidTicket(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	free := seedFreeEvent(t, f, 5)

	ticket, err := f.svc.Claim(context.Background(), f.user.ID, free.ID, 2)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if ticket.Status != enums.TicketStatusValid {
		t.Fatalf("claimed ticket must be valid immediately, got %s", ticket.Status)
	}
	if !ticket.TotalPrice.IsZero() {
		t.Fatalf("claimed ticket must be free, got %s", ticket.TotalPrice)
	}
	if ticket.PaymentProvider != enums.PaymentProviderNone {
		t.Fatalf("claimed ticket must carry no gateway, got %s", ticket.PaymentProvider)
	}
	if f.provider.calls != 0 {
		t.Fatalf("claim must never open a checkout session")
	}

	var event models.Event
	if err := f.db.First(&event, "id = ?", free.ID).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.AvailableTickets != 3 {
		t.Fatalf("claim must reserve inventory, got %d available", event.AvailableTickets)
	}

	var count int64
	if err := f.db.Model(&models.PaymentTransaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 0 {
		t.Fatalf("claim must not record a payment transaction, got %d", count)
	}
}

func TestClaimIsOncePerBuyer(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	free := seedFreeEvent(t, f, 5)

	if _, err := f.svc.Claim(context.Background(), f.user.ID, free.ID, 1); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	_, err := f.svc.Claim(context.Background(), f.user.ID, free.ID, 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("second claim must conflict, got %v", err)
	}

	var event models.Event
	if err := f.db.First(&event, "id = ?", free.ID).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.AvailableTickets != 4 {
		t.Fatalf("rejected claim must not hold inventory, got %d available", event.AvailableTickets)
	}
}

func TestClaimRejectsPaidEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)

	_, err := f.svc.Claim(context.Background(), f.user.ID, f.event.ID, 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for paid event, got %v", err)
	}
	if got := f.availableTickets(t); got != 10 {
		t.Fatalf("rejected claim must not hold inventory, got %d", got)
	}
}

func TestClaimRespectsAvailability(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	free := seedFreeEvent(t, f, 1)

	_, err := f.svc.Claim(context.Background(), f.user.ID, free.ID, 2)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for insufficient tickets, got %v", err)
	}
}

func TestListMine(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	if _, err := f.svc.Purchase(context.Background(), f.user.ID, baseRequest(f)); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	mine, err := f.svc.ListMine(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected 1 ticket, got %d", len(mine))
	}
	if mine[0].Event == nil || mine[0].Event.Title != "Test Night" {
		t.Fatalf("expected event preloaded")
	}

	other, err := f.svc.ListMine(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no tickets for stranger, got %d", len(other))
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:tickets_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.PromoCode{},
		&models.Ticket{},
		&models.PaymentTransaction{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
