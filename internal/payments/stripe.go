package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

// StripeGateway creates Stripe checkout sessions. The order id rides in the
// payment intent metadata so the success webhook can find its order.
type StripeGateway struct {
	successURL string
	cancelURL  string
}

func NewStripeGateway(apiKey, successURL, cancelURL string) (*StripeGateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe api key is empty")
	}
	stripe.Key = apiKey
	return &StripeGateway{successURL: successURL, cancelURL: cancelURL}, nil
}

func (g *StripeGateway) CreateSession(ctx context.Context, order SessionOrder) (SessionRef, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items))
	for _, item := range order.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(order.Currency),
				UnitAmount: stripe.Int64(item.Price),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		SubmitType: stripe.String("pay"),
		Currency:   stripe.String(order.Currency),
		LineItems:  lineItems,
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"order_id": order.OrderID,
			},
		},
	}
	params.Context = ctx

	sessionStripe, err := session.New(params)
	if err != nil {
		return SessionRef{}, fmt.Errorf("%w: %s", ErrGatewayUnavailable, err)
	}
	return SessionRef{ID: sessionStripe.ID, URL: sessionStripe.URL}, nil
}
