package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kfake"
)

func TestConsumePaymentEventsRedeliversAfterTransientFailure(t *testing.T) {
	cluster, err := kfake.NewCluster(kfake.SeedTopics(1, TopicPaymentCompleted))
	if err != nil {
		t.Fatalf("kfake.NewCluster: %v", err)
	}
	defer cluster.Close()

	conf, err := NewConf(strings.Join(cluster.ListenAddrs(), ","))
	if err != nil {
		t.Fatalf("NewConf: %v", err)
	}
	defer conf.Close()

	produce := func(orderID, paymentID string) {
		t.Helper()
		value, err := json.Marshal(PaymentCompletedEvent{
			OrderId:    orderID,
			PaymentId:  paymentID,
			ReceiptUrl: "https://r/" + paymentID,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("marshaling event: %v", err)
		}
		if err := conf.ProduceMessage(TopicPaymentCompleted, []byte(orderID), value); err != nil {
			t.Fatalf("ProduceMessage: %v", err)
		}
	}
	produce("order-1", "pay_1")
	produce("order-2", "pay_2")

	var (
		mu         sync.Mutex
		attempts   = make(map[string]int)
		reconciled = make(map[string]int)
		done       = make(chan struct{})
		doneOnce   sync.Once
	)
	handle := func(ctx context.Context, event PaymentCompletedEvent) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[event.PaymentId]++
		// the first delivery of pay_1 fails the way a store outage would
		if event.PaymentId == "pay_1" && attempts["pay_1"] == 1 {
			return errors.New("store unavailable")
		}
		reconciled[event.PaymentId]++
		if len(reconciled) == 2 {
			doneOnce.Do(func() { close(done) })
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumerDone := make(chan error, 1)
	go func() { consumerDone <- conf.ConsumePaymentEvents(ctx, handle) }()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("failed event was not redelivered")
	}
	cancel()
	if err := <-consumerDone; !errors.Is(err, context.Canceled) {
		t.Errorf("consumer returned %v, want context.Canceled", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts["pay_1"] < 2 {
		t.Errorf("pay_1 attempts = %d, want at least 2 (redelivery after failure)", attempts["pay_1"])
	}
	if reconciled["pay_1"] != 1 {
		t.Errorf("pay_1 reconciled %d times, want 1", reconciled["pay_1"])
	}
	if reconciled["pay_2"] != 1 {
		t.Errorf("pay_2 reconciled %d times, want 1", reconciled["pay_2"])
	}
}

func TestConsumePaymentEventsSkipsMalformedRecord(t *testing.T) {
	cluster, err := kfake.NewCluster(kfake.SeedTopics(1, TopicPaymentCompleted))
	if err != nil {
		t.Fatalf("kfake.NewCluster: %v", err)
	}
	defer cluster.Close()

	conf, err := NewConf(strings.Join(cluster.ListenAddrs(), ","))
	if err != nil {
		t.Fatalf("NewConf: %v", err)
	}
	defer conf.Close()

	if err := conf.ProduceMessage(TopicPaymentCompleted, []byte("bad"), []byte("{not json")); err != nil {
		t.Fatalf("ProduceMessage: %v", err)
	}
	value, _ := json.Marshal(PaymentCompletedEvent{OrderId: "order-1", PaymentId: "pay_1"})
	if err := conf.ProduceMessage(TopicPaymentCompleted, []byte("order-1"), value); err != nil {
		t.Fatalf("ProduceMessage: %v", err)
	}

	handled := make(chan PaymentCompletedEvent, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- conf.ConsumePaymentEvents(ctx, func(ctx context.Context, event PaymentCompletedEvent) error {
			handled <- event
			return nil
		})
	}()

	select {
	case event := <-handled:
		if event.PaymentId != "pay_1" {
			t.Errorf("handled event = %+v, want pay_1", event)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("malformed record blocked the valid event behind it")
	}
	cancel()
	<-consumerDone
}
