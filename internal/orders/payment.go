package orders

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Modelos-Microservices/Orders-Microservice/internal/catalog"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/payments"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/stores/kafka"
	"github.com/Modelos-Microservices/Orders-Microservice/pkg/logkey"
)

// EventProducer publishes domain events. Satisfied by the kafka store.
type EventProducer interface {
	ProduceMessage(topic string, key, value []byte) error
}

// Coordinator owns the payment side of an order: creating checkout sessions
// for a pending order and reconciling asynchronous payment-success
// notifications into a paid order with its receipt.
type Coordinator struct {
	store    Store
	resolver *catalog.Resolver
	gateway  payments.Gateway
	events   EventProducer
	currency string
}

func NewCoordinator(store Store, resolver *catalog.Resolver, gateway payments.Gateway,
	events EventProducer, currency string) *Coordinator {
	return &Coordinator{
		store:    store,
		resolver: resolver,
		gateway:  gateway,
		events:   events,
		currency: currency,
	}
}

// CreatePaymentSession requests a provider session for an already enriched
// order. The order stays pending: payment is confirmed only by the
// asynchronous success notification, never by session creation.
func (c *Coordinator) CreatePaymentSession(ctx context.Context, order EnrichedOrder) (payments.SessionRef, error) {
	sessionOrder := payments.SessionOrder{
		OrderID:  order.ID,
		Currency: c.currency,
		Items:    make([]payments.SessionItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		sessionOrder.Items = append(sessionOrder.Items, payments.SessionItem{
			Name:     item.ProductName,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	return c.gateway.CreateSession(ctx, sessionOrder)
}

// PayOrder starts payment for the user's cart. It returns the still-pending
// order together with the session reference; this is a request to pay, not
// a confirmation of payment.
func (c *Coordinator) PayOrder(ctx context.Context, userID string) (EnrichedOrder, payments.SessionRef, error) {
	order, items, err := c.store.FindPendingOrder(ctx, userID)
	if err != nil {
		return EnrichedOrder{}, payments.SessionRef{}, err
	}

	enriched, err := c.enrich(ctx, order, items)
	if err != nil {
		return EnrichedOrder{}, payments.SessionRef{}, err
	}

	ref, err := c.CreatePaymentSession(ctx, enriched)
	if err != nil {
		return EnrichedOrder{}, payments.SessionRef{}, err
	}
	return enriched, ref, nil
}

// ReconcilePayment applies a payment-success notification. The event
// channel is at-least-once, so redelivery of a payment id the order already
// carries is a safe no-op: the paid flag and the receipt key both suppress
// re-applying side effects.
func (c *Coordinator) ReconcilePayment(ctx context.Context, orderID, paymentID, receiptURL string) error {
	order, alreadyPaid, err := c.store.MarkPaid(ctx, orderID, paymentID, receiptURL)
	if err != nil {
		return err
	}
	if alreadyPaid {
		slog.Info("payment already reconciled", slog.String(logkey.OrderID, orderID),
			slog.String("PaymentID", paymentID))
		return nil
	}

	_, items, err := c.store.GetOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	c.publishOrderPaid(order, items)
	return nil
}

// publishOrderPaid fans out one order-paid event per line item so the
// product service can decrement stock. Best effort: a broker hiccup must
// not fail the reconciliation that already committed.
func (c *Coordinator) publishOrderPaid(order Order, items []OrderItem) {
	if c.events == nil {
		return
	}
	for _, item := range items {
		jsonData, err := json.Marshal(kafka.OrderPaidEvent{
			OrderId:   order.ID,
			ProductId: item.ProductID,
			Quantity:  item.Quantity,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			slog.Error("failed to marshal OrderPaidEvent", slog.String(logkey.ERROR, err.Error()))
			continue
		}
		if err := c.events.ProduceMessage(kafka.TopicOrderPaid, []byte(order.ID), jsonData); err != nil {
			slog.Error("failed to produce order-paid event", slog.String(logkey.OrderID, order.ID),
				slog.String(logkey.ERROR, err.Error()))
		}
	}
}

func (c *Coordinator) enrich(ctx context.Context, order Order, items []OrderItem) (EnrichedOrder, error) {
	return enrichOrder(ctx, c.resolver, order, items)
}
