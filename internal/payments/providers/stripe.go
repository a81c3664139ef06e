package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bukari-app/bukari-backend/pkg/enums"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
	"github.com/bukari-app/bukari-backend/pkg/logger"
)

const stripeDefaultBaseURL = "https://api.stripe.com"

// Stripe creates checkout sessions against the Stripe API.
type Stripe struct {
	httpClient *http.Client
	baseURL    string
	secret     string
	logg       *logger.Logger
	mockMode   bool
}

// StripeOption configures optional client behavior.
type StripeOption func(*Stripe)

// WithStripeHTTPClient overrides the default HTTP client.
func WithStripeHTTPClient(client *http.Client) StripeOption {
	return func(s *Stripe) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithStripeBaseURL overrides the API base URL.
func WithStripeBaseURL(baseURL string) StripeOption {
	return func(s *Stripe) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			s.baseURL = trimmed
		}
	}
}

// NewStripe builds the Stripe client. An empty or placeholder secret puts
// the client in mock mode, which is refused outright when the app runs in
// prod.
func NewStripe(secret string, isProd bool, logg *logger.Logger, opts ...StripeOption) (*Stripe, error) {
	secret = strings.TrimSpace(secret)
	mock := secret == "" || strings.HasPrefix(secret, "sk_test_your")
	if mock && isProd {
		return nil, fmt.Errorf("stripe secret is required in prod")
	}

	client := &Stripe{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    stripeDefaultBaseURL,
		secret:     secret,
		logg:       logg,
		mockMode:   mock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.mockMode && logg != nil {
		logg.Warn(context.Background(), "stripe client running in mock mode, no real charges will be made")
	}
	return client, nil
}

// Name implements Client.
func (s *Stripe) Name() enums.PaymentProvider {
	return enums.PaymentProviderStripe
}

// InitCheckout creates a Stripe checkout session and returns its hosted URL.
// The payment reference rides on client_reference_id so webhooks can map the
// session back to the ticket.
func (s *Stripe) InitCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	if s.mockMode {
		return &CheckoutSession{
			Provider:    s.Name(),
			RedirectURL: fmt.Sprintf("https://checkout.stripe.com/mock/%s", req.Reference),
			Reference:   req.Reference,
		}, nil
	}

	form := url.Values{}
	form.Set("customer_email", req.Email)
	form.Set("payment_method_types[]", "card")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(smallestUnit(req.Amount), 10))
	form.Set("line_items[0][price_data][product_data][name]", "Event Ticket")
	form.Set("line_items[0][quantity]", "1")
	form.Set("mode", "payment")
	form.Set("success_url", req.CallbackURL)
	form.Set("cancel_url", req.CallbackURL)
	form.Set("client_reference_id", req.Reference)

	endpoint := strings.TrimRight(s.baseURL, "/") + "/v1/checkout/sessions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "build stripe request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+s.secret)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "execute stripe request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"stripe session create failed")
	}

	var apiResp struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "decode stripe response")
	}
	if apiResp.URL == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentFailed, "stripe did not return a checkout url")
	}

	return &CheckoutSession{
		Provider:    s.Name(),
		RedirectURL: apiResp.URL,
		Reference:   req.Reference,
	}, nil
}
