package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bukari-app/bukari-backend/pkg/enums"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
)

func baseRequest() CheckoutRequest {
	return CheckoutRequest{
		Email:       "fan@example.com",
		Amount:      decimal.RequireFromString("5000.00"),
		Currency:    "NGN",
		Reference:   "BUKR-PAY-1700000000-abc123",
		CallbackURL: "https://bukari.app/payments/callback",
	}
}

func TestPaystackInitCheckout(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_live_secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"authorization_url": "https://checkout.paystack.com/abc"},
		})
	}))
	defer server.Close()

	client, err := NewPaystack("sk_live_secret", true, nil, WithPaystackBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new paystack: %v", err)
	}

	session, err := client.InitCheckout(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("init checkout: %v", err)
	}
	if session.RedirectURL != "https://checkout.paystack.com/abc" {
		t.Fatalf("unexpected redirect url %s", session.RedirectURL)
	}
	if session.Provider != enums.PaymentProviderPaystack {
		t.Fatalf("unexpected provider %s", session.Provider)
	}
	// NGN 5000.00 must be sent as 500000 kobo.
	if got := captured["amount"].(float64); got != 500000 {
		t.Fatalf("unexpected amount %v", got)
	}
}

func TestPaystackMockModeOutsideProd(t *testing.T) {
	t.Parallel()

	client, err := NewPaystack("", false, nil)
	if err != nil {
		t.Fatalf("new paystack: %v", err)
	}

	session, err := client.InitCheckout(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("init checkout: %v", err)
	}
	if !strings.HasPrefix(session.RedirectURL, "https://checkout.paystack.com/mock/") {
		t.Fatalf("expected mock redirect, got %s", session.RedirectURL)
	}
}

func TestPaystackRefusesMockModeInProd(t *testing.T) {
	t.Parallel()

	if _, err := NewPaystack("", true, nil); err == nil {
		t.Fatal("expected construction error for empty secret in prod")
	}
}

func TestPaystackSurfacesAPIFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":false}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewPaystack("sk_live_bad", true, nil, WithPaystackBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new paystack: %v", err)
	}

	_, err = client.InitCheckout(context.Background(), baseRequest())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePaymentFailed {
		t.Fatalf("expected payment failed error, got %v", err)
	}
}

func TestStripeInitCheckout(t *testing.T) {
	t.Parallel()

	var form map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]any{"url": "https://checkout.stripe.com/c/pay/xyz"})
	}))
	defer server.Close()

	client, err := NewStripe("sk_live_secret", true, nil, WithStripeBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new stripe: %v", err)
	}

	session, err := client.InitCheckout(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("init checkout: %v", err)
	}
	if session.RedirectURL != "https://checkout.stripe.com/c/pay/xyz" {
		t.Fatalf("unexpected redirect url %s", session.RedirectURL)
	}
	if got := form["client_reference_id"]; len(got) != 1 || got[0] != "BUKR-PAY-1700000000-abc123" {
		t.Fatalf("unexpected client_reference_id %v", got)
	}
	if got := form["line_items[0][price_data][unit_amount]"]; len(got) != 1 || got[0] != "500000" {
		t.Fatalf("unexpected unit amount %v", got)
	}
}

func TestStripeTreatsPlaceholderSecretAsMock(t *testing.T) {
	t.Parallel()

	client, err := NewStripe("sk_test_your_key_here", false, nil)
	if err != nil {
		t.Fatalf("new stripe: %v", err)
	}
	session, err := client.InitCheckout(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("init checkout: %v", err)
	}
	if !strings.HasPrefix(session.RedirectURL, "https://checkout.stripe.com/mock/") {
		t.Fatalf("expected mock redirect, got %s", session.RedirectURL)
	}

	if _, err := NewStripe("sk_test_your_key_here", true, nil); err == nil {
		t.Fatal("expected construction error for placeholder secret in prod")
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	paystack, err := NewPaystack("", false, nil)
	if err != nil {
		t.Fatalf("new paystack: %v", err)
	}
	stripe, err := NewStripe("", false, nil)
	if err != nil {
		t.Fatalf("new stripe: %v", err)
	}

	reg := NewRegistry(paystack, stripe, nil)
	if _, err := reg.Resolve(enums.PaymentProviderPaystack); err != nil {
		t.Fatalf("resolve paystack: %v", err)
	}
	if _, err := reg.Resolve(enums.PaymentProviderStripe); err != nil {
		t.Fatalf("resolve stripe: %v", err)
	}
	if _, err := reg.Resolve(enums.PaymentProvider("square")); err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}

func TestSmallestUnitRounds(t *testing.T) {
	t.Parallel()

	if got := smallestUnit(decimal.RequireFromString("19.99")); got != 1999 {
		t.Fatalf("unexpected subunits %d", got)
	}
	if got := smallestUnit(decimal.RequireFromString("0.005")); got != 1 {
		t.Fatalf("expected half-up rounding, got %d", got)
	}
}
