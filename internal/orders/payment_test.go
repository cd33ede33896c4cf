package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Modelos-Microservices/Orders-Microservice/internal/catalog"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/payments"
)

type fakeGateway struct {
	down     bool
	sessions []payments.SessionOrder
}

func (f *fakeGateway) CreateSession(ctx context.Context, order payments.SessionOrder) (payments.SessionRef, error) {
	if f.down {
		return payments.SessionRef{}, payments.ErrGatewayUnavailable
	}
	f.sessions = append(f.sessions, order)
	return payments.SessionRef{ID: "cs_test_1", URL: "https://pay.example.com/cs_test_1"}, nil
}

type fakeProducer struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{messages: make(map[string][][]byte)}
}

func (f *fakeProducer) ProduceMessage(topic string, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[topic] = append(f.messages[topic], value)
	return nil
}

func (f *fakeProducer) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[topic])
}

func newTestCoordinator(products ...catalog.Product) (*Coordinator, *Engine, *MemoryStore, *fakeGateway, *fakeProducer) {
	store := NewMemoryStore()
	resolver := catalog.NewResolver(newFakeCatalog(products...))
	gateway := &fakeGateway{}
	producer := newFakeProducer()
	coordinator := NewCoordinator(store, resolver, gateway, producer, "inr")
	return coordinator, NewEngine(store, resolver), store, gateway, producer
}

func TestPayOrder(t *testing.T) {
	coordinator, engine, store, gateway, _ := newTestCoordinator(
		catalog.Product{ID: productA, Name: "Dog Food", Price: 500, Stock: 100})

	if _, err := engine.AddItem(context.Background(), userAlice, productA, 4); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	order, ref, err := coordinator.PayOrder(context.Background(), userAlice)
	if err != nil {
		t.Fatalf("PayOrder: %v", err)
	}
	if ref.ID != "cs_test_1" {
		t.Errorf("session id = %q, want cs_test_1", ref.ID)
	}

	// paying is a request, not a confirmation
	if order.Status != StatusPending || order.Paid {
		t.Errorf("order moved out of pending on session creation: %+v", order.Order)
	}
	stored, _, err := store.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if stored.Status != StatusPending {
		t.Errorf("stored status = %q, want pending", stored.Status)
	}

	if len(gateway.sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(gateway.sessions))
	}
	session := gateway.sessions[0]
	if session.OrderID != order.ID || session.Currency != "inr" {
		t.Errorf("session = %+v", session)
	}
	if len(session.Items) != 1 || session.Items[0].Name != "Dog Food" ||
		session.Items[0].Price != 500 || session.Items[0].Quantity != 4 {
		t.Errorf("session items = %+v", session.Items)
	}
}

func TestPayOrderNoPendingOrder(t *testing.T) {
	coordinator, _, _, _, _ := newTestCoordinator()
	_, _, err := coordinator.PayOrder(context.Background(), userAlice)
	if !errors.Is(err, ErrNoPendingOrder) {
		t.Errorf("err = %v, want ErrNoPendingOrder", err)
	}
}

func TestPayOrderGatewayDown(t *testing.T) {
	coordinator, engine, store, gateway, _ := newTestCoordinator(
		catalog.Product{ID: productA, Price: 500, Stock: 100})
	gateway.down = true

	order, err := engine.AddItem(context.Background(), userAlice, productA, 1)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if _, _, err := coordinator.PayOrder(context.Background(), userAlice); !errors.Is(err, payments.ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}

	stored, _, err := store.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if stored.Status != StatusPending || stored.Paid {
		t.Errorf("gateway failure mutated the order: %+v", stored)
	}
}

func TestReconcilePayment(t *testing.T) {
	coordinator, engine, store, _, producer := newTestCoordinator(
		catalog.Product{ID: productA, Price: 500, Stock: 100},
		catalog.Product{ID: productB, Price: 300, Stock: 100},
	)

	order, err := engine.AddItem(context.Background(), userAlice, productA, 2)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := engine.AddItem(context.Background(), userAlice, productB, 1); err != nil {
		t.Fatalf("AddItem B: %v", err)
	}

	err = coordinator.ReconcilePayment(context.Background(), order.ID, "pay_1", "https://pay.example.com/receipts/pay_1")
	if err != nil {
		t.Fatalf("ReconcilePayment: %v", err)
	}

	paid, _, err := store.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if paid.Status != StatusPaid || !paid.Paid || paid.PaidAt == nil {
		t.Errorf("order not reconciled: %+v", paid)
	}
	if paid.StripeChargeID != "pay_1" {
		t.Errorf("charge id = %q, want pay_1", paid.StripeChargeID)
	}

	total, receipts, err := store.ListReceipts(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("ListReceipts: %v", err)
	}
	if total != 1 {
		t.Fatalf("receipts = %d, want 1", total)
	}
	if receipts[0].PaymentID != "pay_1" || receipts[0].OrderID != order.ID {
		t.Errorf("receipt = %+v", receipts[0])
	}

	// one stock event per line item
	if n := producer.count("order-service.order-paid"); n != 2 {
		t.Errorf("order-paid events = %d, want 2", n)
	}
}

func TestReconcilePaymentIdempotent(t *testing.T) {
	coordinator, engine, store, _, producer := newTestCoordinator(
		catalog.Product{ID: productA, Price: 500, Stock: 100})

	order, err := engine.AddItem(context.Background(), userAlice, productA, 1)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := coordinator.ReconcilePayment(context.Background(), order.ID, "pay_1", "https://r/pay_1"); err != nil {
			t.Fatalf("ReconcilePayment #%d: %v", i+1, err)
		}
	}

	total, _, err := store.ListReceipts(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("ListReceipts: %v", err)
	}
	if total != 1 {
		t.Errorf("receipts after redelivery = %d, want 1", total)
	}
	if n := producer.count("order-service.order-paid"); n != 1 {
		t.Errorf("order-paid events after redelivery = %d, want 1", n)
	}

	paid, _, _ := store.GetOrder(context.Background(), order.ID)
	if paid.Status != StatusPaid || !paid.Paid {
		t.Errorf("order = %+v", paid)
	}
}

func TestReconcilePaymentReplayedAgainstDifferentOrder(t *testing.T) {
	coordinator, engine, store, _, producer := newTestCoordinator(
		catalog.Product{ID: productA, Price: 500, Stock: 100},
		catalog.Product{ID: productB, Price: 300, Stock: 100},
	)

	first, err := engine.AddItem(context.Background(), userAlice, productA, 1)
	if err != nil {
		t.Fatalf("AddItem alice: %v", err)
	}
	second, err := engine.AddItem(context.Background(), userBob, productB, 1)
	if err != nil {
		t.Fatalf("AddItem bob: %v", err)
	}

	if err := coordinator.ReconcilePayment(context.Background(), first.ID, "pay_1", "https://r/pay_1"); err != nil {
		t.Fatalf("ReconcilePayment first: %v", err)
	}
	// the same payment id delivered against another order is a no-op, not a
	// second paid transition
	if err := coordinator.ReconcilePayment(context.Background(), second.ID, "pay_1", "https://r/pay_1"); err != nil {
		t.Fatalf("ReconcilePayment replay: %v", err)
	}

	other, _, err := store.GetOrder(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if other.Paid || other.Status != StatusPending {
		t.Errorf("replayed payment id paid a different order: %+v", other)
	}

	total, receipts, err := store.ListReceipts(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("ListReceipts: %v", err)
	}
	if total != 1 || receipts[0].OrderID != first.ID {
		t.Errorf("receipts = %d, %+v, want one receipt on the first order", total, receipts)
	}
	if n := producer.count("order-service.order-paid"); n != 1 {
		t.Errorf("order-paid events = %d, want 1", n)
	}
}

func TestReconcilePaymentUnknownOrder(t *testing.T) {
	coordinator, _, _, _, _ := newTestCoordinator()
	err := coordinator.ReconcilePayment(context.Background(), "33333333-3333-4333-8333-333333333333", "pay_9", "")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestPaidOrderCannotMutate(t *testing.T) {
	coordinator, engine, store, _, _ := newTestCoordinator(
		catalog.Product{ID: productA, Price: 500, Stock: 100},
		catalog.Product{ID: productB, Price: 300, Stock: 100},
	)

	order, err := engine.AddItem(context.Background(), userAlice, productA, 1)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := coordinator.ReconcilePayment(context.Background(), order.ID, "pay_1", ""); err != nil {
		t.Fatalf("ReconcilePayment: %v", err)
	}

	// the paid order is no longer the user's cart
	if _, err := engine.AddItem(context.Background(), userAlice, productB, 1); err != nil {
		t.Fatalf("AddItem after payment should open a fresh cart: %v", err)
	}
	fresh, _, err := store.FindPendingOrder(context.Background(), userAlice)
	if err != nil {
		t.Fatalf("FindPendingOrder: %v", err)
	}
	if fresh.ID == order.ID {
		t.Error("paid order is still the pending cart")
	}

	// and can never be demoted back to pending
	if _, err := store.UpdateStatus(context.Background(), order.ID, StatusPending); !errors.Is(err, ErrPaidOrder) {
		t.Errorf("err = %v, want ErrPaidOrder", err)
	}
}
