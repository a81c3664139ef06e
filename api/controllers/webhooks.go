package controllers

import (
	"io"
	"net/http"

	"github.com/bukari-app/bukari-backend/api/responses"
	"github.com/bukari-app/bukari-backend/internal/payments"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
	"github.com/bukari-app/bukari-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// PaystackWebhook receives charge events from Paystack. The signature is an
// HMAC over the exact raw body, so the body must reach the service unparsed.
func PaystackWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readWebhookBody(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.HandlePaystackWebhook(r.Context(), body, r.Header.Get("x-paystack-signature")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// StripeWebhook receives checkout events from Stripe.
func StripeWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readWebhookBody(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.HandleStripeWebhook(r.Context(), body, r.Header.Get("Stripe-Signature")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

func readWebhookBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading webhook body")
	}
	return body, nil
}
