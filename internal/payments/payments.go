// Package payments creates checkout sessions with the payment provider.
// Payment completion never comes back through this package: the provider
// notifies asynchronously and reconciliation owns that path.
package payments

import (
	"context"
	"errors"
)

// ErrGatewayUnavailable is returned when the payment provider cannot be
// reached or rejects the session request.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// SessionItem is one display line of a checkout session.
type SessionItem struct {
	Name     string
	Price    int64 // unit price, smallest currency unit
	Quantity int
}

// SessionOrder is the order content handed to the provider.
type SessionOrder struct {
	OrderID  string
	Currency string
	Items    []SessionItem
}

// SessionRef points the caller at the provider-hosted payment page.
type SessionRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Gateway is the payment-provider capability injected into the payment
// coordinator, substitutable with a test double.
type Gateway interface {
	CreateSession(ctx context.Context, order SessionOrder) (SessionRef, error)
}
