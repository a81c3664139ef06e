package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bukari-app/bukari-backend/api/responses"
	"github.com/bukari-app/bukari-backend/internal/payments"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
	"github.com/bukari-app/bukari-backend/pkg/logger"
)

// VerifyPayment reports the settlement status for a payment reference.
func VerifyPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference required"))
			return
		}

		result, err := svc.Verify(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
