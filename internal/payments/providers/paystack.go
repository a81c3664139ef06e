package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bukari-app/bukari-backend/pkg/enums"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
	"github.com/bukari-app/bukari-backend/pkg/logger"
)

const (
	paystackDefaultBaseURL       = "https://api.paystack.co"
	responseBodyReadLimit  int64 = 2048
)

// Paystack initializes transactions against the Paystack API.
type Paystack struct {
	httpClient *http.Client
	baseURL    string
	secret     string
	logg       *logger.Logger
	mockMode   bool
}

// PaystackOption configures optional client behavior.
type PaystackOption func(*Paystack)

// WithPaystackHTTPClient overrides the default HTTP client.
func WithPaystackHTTPClient(client *http.Client) PaystackOption {
	return func(p *Paystack) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithPaystackBaseURL overrides the API base URL.
func WithPaystackBaseURL(baseURL string) PaystackOption {
	return func(p *Paystack) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			p.baseURL = trimmed
		}
	}
}

// NewPaystack builds the Paystack client. An empty secret puts the client
// in mock mode, which is refused outright when the app runs in prod.
func NewPaystack(secret string, isProd bool, logg *logger.Logger, opts ...PaystackOption) (*Paystack, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" && isProd {
		return nil, fmt.Errorf("paystack secret is required in prod")
	}

	client := &Paystack{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    paystackDefaultBaseURL,
		secret:     secret,
		logg:       logg,
		mockMode:   secret == "",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.mockMode && logg != nil {
		logg.Warn(context.Background(), "paystack client running in mock mode, no real charges will be made")
	}
	return client, nil
}

// Name implements Client.
func (p *Paystack) Name() enums.PaymentProvider {
	return enums.PaymentProviderPaystack
}

// InitCheckout opens a Paystack transaction and returns the hosted
// authorization URL.
func (p *Paystack) InitCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	if p.mockMode {
		return &CheckoutSession{
			Provider:    p.Name(),
			RedirectURL: fmt.Sprintf("https://checkout.paystack.com/mock/%s", req.Reference),
			Reference:   req.Reference,
		}, nil
	}

	payload, err := json.Marshal(map[string]any{
		"email":        req.Email,
		"amount":       smallestUnit(req.Amount),
		"currency":     req.Currency,
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "marshal paystack request")
	}

	url := strings.TrimRight(p.baseURL, "/") + "/transaction/initialize"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "build paystack request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.secret)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "execute paystack request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"paystack initialize failed")
	}

	var apiResp struct {
		Data struct {
			AuthorizationURL string `json:"authorization_url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "decode paystack response")
	}
	if apiResp.Data.AuthorizationURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentFailed, "paystack did not return an authorization url")
	}

	return &CheckoutSession{
		Provider:    p.Name(),
		RedirectURL: apiResp.Data.AuthorizationURL,
		Reference:   req.Reference,
	}, nil
}
