package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bukari-app/bukari-backend/api/middleware"
	"github.com/bukari-app/bukari-backend/api/responses"
	"github.com/bukari-app/bukari-backend/api/validators"
	"github.com/bukari-app/bukari-backend/internal/scanner"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
	"github.com/bukari-app/bukari-backend/pkg/logger"
)

// Operator labels come from gate devices as free text and end up in scan
// logs, so they are trimmed and capped before use.
const maxScannedByLen = 120

type verifyAccessRequest struct {
	EventID    string `json:"eventId" validate:"required,uuid"`
	AccessCode string `json:"accessCode" validate:"required"`
}

type validateScanRequest struct {
	EventID   string `json:"eventId" validate:"required,uuid"`
	QRData    string `json:"qrData" validate:"required"`
	ScannedBy string `json:"scannedBy"`
}

type validateManualRequest struct {
	EventID   string `json:"eventId" validate:"required,uuid"`
	TicketID  string `json:"ticketId" validate:"required"`
	ScannedBy string `json:"scannedBy"`
}

type markUsedRequest struct {
	TicketID  string `json:"ticketId" validate:"required"`
	ScannedBy string `json:"scannedBy" validate:"required"`
}

// grantedEvent returns the event the request's access code authorizes, and
// rejects requests that name a different event than their grant.
func grantedEvent(r *http.Request, requested uuid.UUID) (uuid.UUID, error) {
	granted := middleware.ScannerEventIDFromContext(r.Context())
	if granted == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "scanner access code required")
	}
	if requested != uuid.Nil && requested != granted {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "access code does not cover this event")
	}
	return granted, nil
}

// VerifyScannerAccess checks a gate device's event access code.
func VerifyScannerAccess(svc scanner.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyAccessRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, err := parseUUIDField(req.EventID, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		grant, err := svc.VerifyAccess(r.Context(), eventID, req.AccessCode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, grant)
	}
}

// ValidateScan classifies a scanned QR payload without consuming the ticket.
func ValidateScan(svc scanner.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateScanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requested, err := parseUUIDField(req.EventID, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := grantedEvent(r, requested)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.ValidateQR(r.Context(), eventID, req.QRData, validators.SanitizeString(req.ScannedBy, maxScannedByLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// ValidateManualScan classifies a hand-typed ticket code.
func ValidateManualScan(svc scanner.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateManualRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requested, err := parseUUIDField(req.EventID, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := grantedEvent(r, requested)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.Validate(r.Context(), eventID, req.TicketID, validators.SanitizeString(req.ScannedBy, maxScannedByLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// MarkTicketUsed consumes a valid ticket at the gate.
func MarkTicketUsed(svc scanner.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req markUsedRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, err := grantedEvent(r, uuid.Nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.MarkUsed(r.Context(), eventID, req.TicketID, validators.SanitizeString(req.ScannedBy, maxScannedByLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// ScannerEventStats reports gate throughput for an event.
func ScannerEventStats(svc scanner.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requested, err := pathUUID(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := grantedEvent(r, requested)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.Stats(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
