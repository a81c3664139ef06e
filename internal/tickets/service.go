package tickets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bukari-app/bukari-backend/internal/inventory"
	"github.com/bukari-app/bukari-backend/internal/payments"
	"github.com/bukari-app/bukari-backend/internal/payments/providers"
	"github.com/bukari-app/bukari-backend/internal/promos"
	"github.com/bukari-app/bukari-backend/internal/tickets/pricing"
	"github.com/bukari-app/bukari-backend/internal/users"
	"github.com/bukari-app/bukari-backend/pkg/db"
	"github.com/bukari-app/bukari-backend/pkg/db/models"
	"github.com/bukari-app/bukari-backend/pkg/enums"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
	"github.com/bukari-app/bukari-backend/pkg/logger"
)

const maxQuantityPerPurchase = 10

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service executes ticket purchases and listings.
type Service interface {
	Purchase(ctx context.Context, userID uuid.UUID, req PurchaseRequest) (*PurchaseResult, error)
	Claim(ctx context.Context, userID, eventID uuid.UUID, quantity int) (*models.Ticket, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error)
	ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.Ticket, error)
}

type service struct {
	tx          txRunner
	repo        Repository
	userRepo    users.Repository
	payRepo     payments.Repository
	providers   providers.Registry
	callbackURL string
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the tickets service.
func NewService(
	tx txRunner,
	repo Repository,
	userRepo users.Repository,
	payRepo payments.Repository,
	registry providers.Registry,
	callbackURL string,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("tickets repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if payRepo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if len(registry) == 0 {
		return nil, fmt.Errorf("at least one payment provider required")
	}
	return &service{
		tx:          tx,
		repo:        repo,
		userRepo:    userRepo,
		payRepo:     payRepo,
		providers:   registry,
		callbackURL: callbackURL,
		logg:        logg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Purchase reserves inventory, prices the order and records the pending
// ticket in one transaction, then opens the provider checkout session after
// commit. A provider failure is compensated: the ticket is marked failed
// and the reservation released.
func (s *service) Purchase(ctx context.Context, userID uuid.UUID, req PurchaseRequest) (*PurchaseResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if req.Quantity < 1 || req.Quantity > maxQuantityPerPurchase {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quantity must be between 1 and %d", maxQuantityPerPurchase))
	}
	if req.ExcitementRating != nil && (*req.ExcitementRating < 1 || *req.ExcitementRating > 10) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "excitement rating must be between 1 and 10")
	}
	provider, err := enums.ParsePaymentProvider(req.Provider)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment provider, use 'paystack' or 'stripe'")
	}
	client, err := s.providers.Resolve(provider)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment provider unavailable")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		ticket  *models.Ticket
		promoID *uuid.UUID
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		event, err := inventory.Reserve(ctx, tx, req.EventID, req.Quantity)
		if err != nil {
			return err
		}

		discount := decimal.Zero
		if req.PromoCode != nil && *req.PromoCode != "" {
			promo, err := promos.Consume(ctx, tx, req.EventID, *req.PromoCode, now)
			if err != nil {
				return err
			}
			discount = promo.DiscountPercentage
			promoID = &promo.ID
		}

		quote, err := pricing.Compute(event.Price, req.Quantity, discount)
		if err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		ticket, err = repo.FindLatestFailed(ctx, userID, req.EventID)
		if err != nil {
			return err
		}

		ticketType := req.TicketType
		if ticketType == "" {
			ticketType = "General Admission"
		}

		if ticket == nil {
			code := NewTicketCode(req.EventID)
			ticket = &models.Ticket{
				ID:         uuid.New(),
				TicketID:   code,
				EventID:    req.EventID,
				UserID:     userID,
				QRCodeData: NewQRPayload(code, req.EventID),
				PaymentRef: NewPaymentRef(now),
			}
		}
		ticket.TicketType = ticketType
		ticket.Quantity = req.Quantity
		ticket.UnitPrice = quote.UnitPrice
		ticket.DiscountApplied = quote.DiscountPercent
		ticket.TotalPrice = quote.Total
		ticket.Currency = event.Currency
		ticket.Status = enums.TicketStatusPending
		ticket.PromoCodeID = promoID
		ticket.PaymentProvider = provider
		ticket.ExcitementRating = req.ExcitementRating
		ticket.PurchaseDate = now

		if err := repo.Save(ctx, ticket); err != nil {
			if db.IsUniqueViolation(err, "tickets_ticket_id_key") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "ticket code collision, retry the purchase")
			}
			return fmt.Errorf("persisting ticket: %w", err)
		}

		txn := &models.PaymentTransaction{
			TicketID:    ticket.ID,
			UserID:      userID,
			Provider:    provider,
			ProviderRef: ticket.PaymentRef,
			Amount:      quote.Total,
			Currency:    event.Currency,
			Status:      enums.PaymentStatusPending,
		}
		if err := s.payRepo.WithTx(tx).CreateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("persisting payment transaction: %w", err)
		}

		ticket.Event = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Provider call stays outside the transaction: never hold the event row
	// lock across the network.
	session, err := client.InitCheckout(ctx, providers.CheckoutRequest{
		Email:       user.Email,
		Amount:      ticket.TotalPrice,
		Currency:    ticket.Currency,
		Reference:   ticket.PaymentRef,
		CallbackURL: s.resolveCallback(req.CallbackURL),
	})
	if err != nil {
		s.compensate(ctx, ticket, promoID)
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithTicketID(ctx, ticket.TicketID), "ticket purchase initiated")
	}
	return &PurchaseResult{
		Ticket: ticket,
		Payment: PaymentInit{
			Provider:    provider,
			RedirectURL: session.RedirectURL,
			Reference:   session.Reference,
		},
	}, nil
}

// Claim issues a ticket for a zero-price event without a payment leg. The
// reservation, free-price check and one-per-buyer guard run in one
// transaction, and the ticket comes out valid immediately.
func (s *service) Claim(ctx context.Context, userID, eventID uuid.UUID, quantity int) (*models.Ticket, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if quantity < 1 || quantity > maxQuantityPerPurchase {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quantity must be between 1 and %d", maxQuantityPerPurchase))
	}

	now := s.now()
	var ticket *models.Ticket
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		event, err := inventory.Reserve(ctx, tx, eventID, quantity)
		if err != nil {
			return err
		}
		if event.Price.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "event is not free, use purchase")
		}

		repo := s.repo.WithTx(tx)
		claimed, err := repo.HasActiveTicket(ctx, userID, eventID)
		if err != nil {
			return fmt.Errorf("checking existing claim: %w", err)
		}
		if claimed {
			return pkgerrors.New(pkgerrors.CodeConflict, "you already hold a ticket for this event")
		}

		code := NewTicketCode(eventID)
		ticket = &models.Ticket{
			ID:              uuid.New(),
			TicketID:        code,
			EventID:         eventID,
			UserID:          userID,
			TicketType:      "General Admission",
			Quantity:        quantity,
			UnitPrice:       decimal.Zero,
			DiscountApplied: decimal.Zero,
			TotalPrice:      decimal.Zero,
			Currency:        event.Currency,
			Status:          enums.TicketStatusValid,
			QRCodeData:      NewQRPayload(code, eventID),
			PaymentRef:      NewPaymentRef(now),
			PaymentProvider: enums.PaymentProviderNone,
			PurchaseDate:    now,
		}
		if err := repo.Create(ctx, ticket); err != nil {
			if db.IsUniqueViolation(err, "tickets_ticket_id_key") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "ticket code collision, retry the claim")
			}
			return fmt.Errorf("persisting ticket: %w", err)
		}

		ticket.Event = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithTicketID(ctx, ticket.TicketID), "free ticket claimed")
	}
	return ticket, nil
}

// ListMine returns the buyer's tickets, newest first.
func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.ListByUser(ctx, userID)
}

// ListForEvent returns all tickets sold for an event.
func (s *service) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.Ticket, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	return s.repo.ListByEvent(ctx, eventID)
}

func (s *service) resolveCallback(override string) string {
	if override != "" {
		return override
	}
	return s.callbackURL
}

// compensate unwinds a committed purchase whose provider call failed: the
// ticket is failed, the payment marked failed, inventory returned and any
// promo redemption refunded.
func (s *service) compensate(ctx context.Context, ticket *models.Ticket, promoID *uuid.UUID) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := s.repo.WithTx(tx).MarkFailed(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if changed == 0 {
			// A webhook settled the ticket in the meantime; leave it alone.
			return nil
		}
		if err := s.payRepo.WithTx(tx).MarkTransactionFailed(ctx, ticket.PaymentRef); err != nil {
			return err
		}
		if err := inventory.Release(ctx, tx, ticket.EventID, ticket.Quantity); err != nil {
			return err
		}
		if promoID != nil {
			if err := promos.Refund(ctx, tx, *promoID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithTicketID(ctx, ticket.TicketID), "compensating failed purchase", err)
	}
}
