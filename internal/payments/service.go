package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bukari-app/bukari-backend/pkg/enums"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
	"github.com/bukari-app/bukari-backend/pkg/logger"
)

const (
	paystackSuccessEvent = "charge.success"
	stripeSuccessEvent   = "checkout.session.completed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// webhookGuard is the optional Redis dedupe in front of the reconciler.
// Correctness never depends on it; the conditional updates already
// converge under redelivery.
type webhookGuard interface {
	MarkWebhookEvent(ctx context.Context, provider, eventID string, ttl time.Duration) (bool, error)
	WebhookEventKey(provider, eventID string) string
	Del(ctx context.Context, keys ...string) error
}

// Service reconciles provider webhooks against payment state and answers
// verification lookups.
type Service interface {
	HandlePaystackWebhook(ctx context.Context, rawBody []byte, signature string) error
	HandleStripeWebhook(ctx context.Context, rawBody []byte, signature string) error
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}

// Config carries the webhook secrets and environment posture.
type Config struct {
	PaystackWebhookSecret string
	StripeWebhookSecret   string
	IsProd                bool
	GuardTTL              time.Duration
}

// VerifyResult is the settlement state reported for a payment reference.
type VerifyResult struct {
	Provider  enums.PaymentProvider `json:"provider"`
	Reference string                `json:"reference"`
	Amount    decimal.Decimal       `json:"amount"`
	Currency  string                `json:"currency"`
	Status    enums.PaymentStatus   `json:"status"`
}

type webhookPayload struct {
	Event string      `json:"event"`
	Data  webhookData `json:"data"`
}

type webhookData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ClientReferenceID string `json:"client_reference_id"`
			AmountTotal       int64  `json:"amount_total"`
			Currency          string `json:"currency"`
		} `json:"object"`
	} `json:"data"`
}

type service struct {
	tx    txRunner
	repo  Repository
	guard webhookGuard
	cfg   Config
	logg  *logger.Logger
}

// NewService builds the payments service.
func NewService(tx txRunner, repo Repository, guard webhookGuard, cfg Config, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if cfg.IsProd && (cfg.PaystackWebhookSecret == "" || cfg.StripeWebhookSecret == "") {
		return nil, fmt.Errorf("webhook secrets are required in prod")
	}
	if cfg.GuardTTL <= 0 {
		cfg.GuardTTL = 24 * time.Hour
	}
	return &service{tx: tx, repo: repo, guard: guard, cfg: cfg, logg: logg}, nil
}

// HandlePaystackWebhook verifies, parses and reconciles one Paystack
// delivery. Redeliveries of the same event are acknowledged without effect.
func (s *service) HandlePaystackWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if err := s.checkSignature(ctx, s.cfg.PaystackWebhookSecret, rawBody, signature, VerifyPaystackSignature); err != nil {
		return err
	}

	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	if payload.Event != paystackSuccessEvent {
		return nil
	}
	if strings.TrimSpace(payload.Data.Reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing reference")
	}

	data, err := json.Marshal(payload.Data)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "re-encoding webhook data")
	}
	return s.settle(ctx, enums.PaymentProviderPaystack, payload.Event+":"+payload.Data.Reference, payload.Data.Reference, data)
}

// HandleStripeWebhook verifies, parses and reconciles one Stripe delivery.
// The payment reference rides on the session's client_reference_id.
func (s *service) HandleStripeWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if err := s.checkSignature(ctx, s.cfg.StripeWebhookSecret, rawBody, signature, VerifyStripeSignature); err != nil {
		return err
	}

	var event stripeEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	if event.Type != stripeSuccessEvent {
		return nil
	}
	reference := strings.TrimSpace(event.Data.Object.ClientReferenceID)
	if reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing client_reference_id")
	}

	guardID := event.ID
	if guardID == "" {
		guardID = event.Type + ":" + reference
	}
	data, err := json.Marshal(event.Data.Object)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "re-encoding webhook data")
	}
	return s.settle(ctx, enums.PaymentProviderStripe, guardID, reference, data)
}

// Verify reports the recorded settlement state for a payment reference.
func (s *service) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	txn, err := s.repo.FindByProviderRef(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Provider:  txn.Provider,
		Reference: txn.ProviderRef,
		Amount:    txn.Amount,
		Currency:  txn.Currency,
		Status:    txn.Status,
	}, nil
}

type verifyFunc func(secret string, body []byte, signature string) bool

func (s *service) checkSignature(ctx context.Context, secret string, body []byte, signature string, verify verifyFunc) error {
	if secret == "" {
		if s.cfg.IsProd {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook secret not configured")
		}
		if s.logg != nil {
			s.logg.Warn(ctx, "webhook signature verification skipped, no secret configured")
		}
		return nil
	}
	if !verify(secret, body, signature) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
	}
	return nil
}

func (s *service) settle(ctx context.Context, provider enums.PaymentProvider, eventID, reference string, response json.RawMessage) error {
	if s.guard != nil {
		fresh, err := s.guard.MarkWebhookEvent(ctx, provider.String(), eventID, s.cfg.GuardTTL)
		if err != nil {
			if s.logg != nil {
				s.logg.Warn(ctx, "webhook dedupe guard unavailable, continuing without it")
			}
		} else if !fresh {
			return nil
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		settled, err := repo.MarkTransactionSettled(ctx, reference, response)
		if err != nil {
			return fmt.Errorf("settling payment transaction: %w", err)
		}
		promoted, err := repo.PromoteTicket(ctx, reference)
		if err != nil {
			return fmt.Errorf("promoting ticket: %w", err)
		}
		if settled == 0 && promoted == 0 && s.logg != nil {
			s.logg.Warn(s.logg.WithPaymentRef(ctx, reference), "webhook references unknown payment, acknowledged without effect")
		}
		if settled > 0 && promoted == 0 && s.logg != nil {
			// The ticket was consumed, reclaimed by the sweep, or failed and
			// compensated before the webhook landed. The money needs manual
			// reconciliation; the ticket must stay as it is.
			s.logg.Warn(s.logg.WithPaymentRef(ctx, reference), "payment settled but ticket not promoted, flagging for reconciliation")
		}
		return nil
	})
	if err != nil {
		// Drop the dedupe key so the provider's retry can land.
		if s.guard != nil {
			_ = s.guard.Del(ctx, s.guard.WebhookEventKey(provider.String(), eventID))
		}
		return err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithPaymentRef(ctx, reference), "payment settled via webhook")
	}
	return nil
}
