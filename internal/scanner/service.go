package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bukari-app/bukari-backend/internal/tickets"
	"github.com/bukari-app/bukari-backend/internal/users"
	"github.com/bukari-app/bukari-backend/pkg/db/models"
	"github.com/bukari-app/bukari-backend/pkg/enums"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
	"github.com/bukari-app/bukari-backend/pkg/logger"
)

// ScanOutcome is the gate-side answer for a single ticket check.
type ScanOutcome struct {
	Result  enums.ScanResult `json:"result"`
	Message string           `json:"message"`
	Ticket  *TicketSummary   `json:"ticket,omitempty"`
}

// TicketSummary is what gate staff see on the scanner screen.
type TicketSummary struct {
	TicketID   string             `json:"ticketId"`
	TicketType string             `json:"ticketType"`
	Quantity   int                `json:"quantity"`
	Status     enums.TicketStatus `json:"status"`
	HolderName string             `json:"holderName,omitempty"`
	ScannedAt  *time.Time         `json:"scannedAt,omitempty"`
	ScannedBy  *string            `json:"scannedBy,omitempty"`
}

// AccessGrant is the answer to a gate device presenting an access code.
type AccessGrant struct {
	Verified   bool       `json:"verified"`
	EventID    uuid.UUID  `json:"eventId,omitempty"`
	EventTitle string     `json:"eventTitle,omitempty"`
	StartsAt   *time.Time `json:"startsAt,omitempty"`
	GateLabel  string     `json:"gateLabel,omitempty"`
}

// EventStats summarizes gate throughput for one event.
type EventStats struct {
	EventID   uuid.UUID `json:"eventId"`
	Sold      int64     `json:"sold"`
	Scanned   int64     `json:"scanned"`
	Remaining int64     `json:"remaining"`
	ScanRate  float64   `json:"scanRate"`
}

type Service interface {
	Validate(ctx context.Context, eventID uuid.UUID, ticketCode, scannedBy string) (*ScanOutcome, error)
	ValidateQR(ctx context.Context, eventID uuid.UUID, qrPayload, scannedBy string) (*ScanOutcome, error)
	MarkUsed(ctx context.Context, eventID uuid.UUID, ticketCode, scannedBy string) (*ScanOutcome, error)
	VerifyAccess(ctx context.Context, eventID uuid.UUID, code string) (*AccessGrant, error)
	CheckAccessCode(ctx context.Context, code string) (uuid.UUID, error)
	Stats(ctx context.Context, eventID uuid.UUID) (*EventStats, error)
}

type service struct {
	repo     Repository
	userRepo users.Repository
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, userRepo users.Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("scanner repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{
		repo:     repo,
		userRepo: userRepo,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Validate classifies a ticket code without consuming it.
func (s *service) Validate(ctx context.Context, eventID uuid.UUID, ticketCode, scannedBy string) (*ScanOutcome, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if ticketCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket id required")
	}

	ticket, err := s.repo.FindTicket(ctx, ticketCode, eventID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			outcome := &ScanOutcome{Result: enums.ScanResultInvalid, Message: "ticket not found"}
			s.record(ctx, nil, &eventID, scannedBy, outcome.Result)
			return outcome, nil
		}
		return nil, err
	}

	outcome := s.classify(ctx, ticket)
	s.record(ctx, &ticket.ID, &ticket.EventID, scannedBy, outcome.Result)
	return outcome, nil
}

// ValidateQR parses a scanned QR payload and validates the code it carries.
func (s *service) ValidateQR(ctx context.Context, eventID uuid.UUID, qrPayload, scannedBy string) (*ScanOutcome, error) {
	code, err := tickets.ParseQRPayload(qrPayload)
	if err != nil {
		return nil, err
	}
	return s.Validate(ctx, eventID, code, scannedBy)
}

// MarkUsed consumes a valid ticket exactly once, scoped to the event the
// gate is authorized for. A ticket that lost the race or was never promoted
// comes back as a conflict, never a second admit.
func (s *service) MarkUsed(ctx context.Context, eventID uuid.UUID, ticketCode, scannedBy string) (*ScanOutcome, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if ticketCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket id required")
	}
	if scannedBy == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scanner id required")
	}

	now := s.now()
	rows, err := s.repo.MarkTicketUsed(ctx, ticketCode, eventID, scannedBy, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, s.rejectConsume(ctx, eventID, ticketCode, scannedBy)
	}

	var ticket models.Ticket
	summary := &TicketSummary{TicketID: ticketCode, Status: enums.TicketStatusUsed, ScannedAt: &now, ScannedBy: &scannedBy}
	if loaded, loadErr := s.repo.FindTicket(ctx, ticketCode, eventID); loadErr == nil {
		ticket = *loaded
		summary.TicketType = ticket.TicketType
		summary.Quantity = ticket.Quantity
		summary.HolderName = s.holderName(ctx, ticket.UserID)
		s.record(ctx, &ticket.ID, &ticket.EventID, scannedBy, enums.ScanResultAdmit)
	} else {
		s.record(ctx, nil, nil, scannedBy, enums.ScanResultAdmit)
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithTicketID(ctx, ticketCode), "ticket admitted at gate")
	}
	return &ScanOutcome{Result: enums.ScanResultAdmit, Message: "ticket admitted", Ticket: summary}, nil
}

// VerifyAccess checks a gate device's event-scoped access code.
func (s *service) VerifyAccess(ctx context.Context, eventID uuid.UUID, code string) (*AccessGrant, error) {
	if eventID == uuid.Nil || code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id and access code required")
	}

	access, err := s.repo.FindAccessCode(ctx, eventID, code)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return &AccessGrant{Verified: false}, nil
		}
		return nil, err
	}
	if !access.IsActive {
		return &AccessGrant{Verified: false}, nil
	}
	if access.ExpiresAt != nil && access.ExpiresAt.Before(s.now()) {
		return &AccessGrant{Verified: false}, nil
	}

	event, err := s.repo.FindEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	grant := &AccessGrant{
		Verified:   true,
		EventID:    event.ID,
		EventTitle: event.Title,
		StartsAt:   &event.StartsAt,
	}
	if access.Label != nil {
		grant.GateLabel = *access.Label
	}
	return grant, nil
}

// CheckAccessCode authenticates a gate device's code and returns the event
// it is allowed to scan. Scanning endpoints call this on every request.
func (s *service) CheckAccessCode(ctx context.Context, code string) (uuid.UUID, error) {
	if code == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "scanner access code required")
	}
	access, err := s.repo.FindAccessCodeByCode(ctx, code)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid scanner access code")
		}
		return uuid.Nil, err
	}
	if !access.IsActive {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "scanner access code is disabled")
	}
	if access.ExpiresAt != nil && access.ExpiresAt.Before(s.now()) {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "scanner access code has expired")
	}
	return access.EventID, nil
}

// Stats reports sold/scanned/remaining ticket units for an event.
func (s *service) Stats(ctx context.Context, eventID uuid.UUID) (*EventStats, error) {
	if _, err := s.repo.FindEvent(ctx, eventID); err != nil {
		return nil, err
	}
	sold, scanned, err := s.repo.EventCounts(ctx, eventID)
	if err != nil {
		return nil, err
	}
	stats := &EventStats{
		EventID:   eventID,
		Sold:      sold,
		Scanned:   scanned,
		Remaining: sold - scanned,
	}
	if sold > 0 {
		stats.ScanRate = float64(scanned) / float64(sold) * 100
	}
	return stats, nil
}

func (s *service) classify(ctx context.Context, ticket *models.Ticket) *ScanOutcome {
	summary := &TicketSummary{
		TicketID:   ticket.TicketID,
		TicketType: ticket.TicketType,
		Quantity:   ticket.Quantity,
		Status:     ticket.Status,
		HolderName: s.holderName(ctx, ticket.UserID),
		ScannedAt:  ticket.ScannedAt,
		ScannedBy:  ticket.ScannedBy,
	}
	switch ticket.Status {
	case enums.TicketStatusValid:
		return &ScanOutcome{Result: enums.ScanResultAdmit, Message: "ticket is valid for entry", Ticket: summary}
	case enums.TicketStatusUsed:
		return &ScanOutcome{Result: enums.ScanResultAlreadyUsed, Message: "ticket has already been scanned", Ticket: summary}
	default:
		return &ScanOutcome{
			Result:  enums.ScanResultInvalid,
			Message: fmt.Sprintf("ticket is %s and cannot be admitted", ticket.Status),
			Ticket:  summary,
		}
	}
}

// rejectConsume explains why the conditional consume touched no row. The
// lookup stays event-scoped, so a ticket for another event reads as not found.
func (s *service) rejectConsume(ctx context.Context, eventID uuid.UUID, ticketCode, scannedBy string) error {
	ticket, err := s.repo.FindTicket(ctx, ticketCode, eventID)
	if err != nil {
		s.record(ctx, nil, &eventID, scannedBy, enums.ScanResultInvalid)
		return err
	}
	if ticket.Status == enums.TicketStatusUsed {
		s.record(ctx, &ticket.ID, &ticket.EventID, scannedBy, enums.ScanResultAlreadyUsed)
		return pkgerrors.New(pkgerrors.CodeConflict, "ticket has already been used")
	}
	s.record(ctx, &ticket.ID, &ticket.EventID, scannedBy, enums.ScanResultInvalid)
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("ticket is %s and cannot be admitted", ticket.Status))
}

func (s *service) holderName(ctx context.Context, userID uuid.UUID) string {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Name
}

// record appends a scan log entry. Logging must never fail a scan.
func (s *service) record(ctx context.Context, ticketID, eventID *uuid.UUID, scannedBy string, result enums.ScanResult) {
	entry := &models.ScanLog{TicketID: ticketID, EventID: eventID, Result: result}
	if scannedBy != "" {
		entry.ScannedBy = &scannedBy
	}
	if err := s.repo.AppendScanLog(ctx, entry); err != nil && s.logg != nil {
		s.logg.Error(ctx, "appending scan log", err)
	}
}
