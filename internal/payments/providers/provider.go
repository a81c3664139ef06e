// Package providers holds the payment gateway clients. Both gateways take
// the amount in the currency's smallest unit and hand back a hosted
// checkout URL the buyer is redirected to.
package providers

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bukari-app/bukari-backend/pkg/enums"
)

// CheckoutRequest carries everything a gateway needs to open a session.
type CheckoutRequest struct {
	Email       string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	CallbackURL string
}

// CheckoutSession is the provider's answer: where to send the buyer.
type CheckoutSession struct {
	Provider    enums.PaymentProvider
	RedirectURL string
	Reference   string
}

// Client opens a hosted checkout session with a payment gateway.
type Client interface {
	Name() enums.PaymentProvider
	InitCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// Registry resolves a gateway client by provider name.
type Registry map[enums.PaymentProvider]Client

// NewRegistry indexes the given clients by name.
func NewRegistry(clients ...Client) Registry {
	reg := make(Registry, len(clients))
	for _, c := range clients {
		if c == nil {
			continue
		}
		reg[c.Name()] = c
	}
	return reg
}

// Resolve returns the client for provider or an error naming it.
func (r Registry) Resolve(provider enums.PaymentProvider) (Client, error) {
	client, ok := r[provider]
	if !ok {
		return nil, fmt.Errorf("no client registered for provider %q", provider)
	}
	return client, nil
}

// smallestUnit converts a decimal major-unit amount to the integer
// subunit count the gateways expect (NGN 100.00 -> 10000 kobo).
func smallestUnit(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
