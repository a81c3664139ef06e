package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/bukari-app/bukari-backend/api/responses"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
	"github.com/bukari-app/bukari-backend/pkg/logger"
)

// ScannerAccessHeader carries the gate device's access code on every
// scanning request after the initial verify-access handshake.
const ScannerAccessHeader = "X-Scanner-Access-Code"

type accessCodeChecker interface {
	CheckAccessCode(ctx context.Context, code string) (uuid.UUID, error)
}

// ScannerAccess authenticates scanning requests by access code. The event
// the code grants is placed in the request context so handlers can scope
// every lookup and consume to it.
func ScannerAccess(checker accessCodeChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			code := r.Header.Get(ScannerAccessHeader)
			if code == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "scanner access code required"))
				return
			}

			eventID, err := checker.CheckAccessCode(ctx, code)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = WithScannerEventID(ctx, eventID)
			if logg != nil {
				ctx = logg.WithEventID(ctx, eventID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
