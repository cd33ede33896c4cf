package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Modelos-Microservices/Orders-Microservice/pkg/logkey"
	"github.com/twmb/franz-go/pkg/kgo"
)

type Conf struct {
	producer *kgo.Client
	brokers  []string
}

func NewConf(brokersCSV string) (*Conf, error) {
	brokers := splitBrokers(brokersCSV)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}
	return &Conf{producer: producer, brokers: brokers}, nil
}

func splitBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// ProduceMessage publishes one record synchronously so callers know the
// broker accepted it.
func (c *Conf) ProduceMessage(topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := c.producer.ProduceSync(context.Background(), record).FirstErr(); err != nil {
		return fmt.Errorf("producing to %s: %w", topic, err)
	}
	return nil
}

func (c *Conf) Close() {
	c.producer.Close()
}

// PaymentHandler reconciles one payment-completed event. Returning an error
// makes the consumer rewind and deliver the event again.
type PaymentHandler func(ctx context.Context, event PaymentCompletedEvent) error

// ConsumePaymentEvents polls the payment-completed topic until ctx is
// cancelled, committing offsets only after every record of a batch is
// handled. A handler failure rewinds the consumer to the failed record, so
// a transient failure stalls the partition instead of losing the event.
// Handlers must be idempotent: redelivery is expected.
func (c *Conf) ConsumePaymentEvents(ctx context.Context, handle PaymentHandler) error {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(c.brokers...),
		kgo.ConsumerGroup(ConsumerGroup),
		kgo.ConsumeTopics(TopicPaymentCompleted),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return fmt.Errorf("creating kafka consumer: %w", err)
	}
	defer consumer.Close()

	for {
		fetches := consumer.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fetchErr := range errs {
				slog.Error("kafka fetch error", slog.String("Topic", fetchErr.Topic),
					slog.String(logkey.ERROR, fetchErr.Err.Error()))
			}
			continue
		}

		var failed *kgo.Record
		fetches.EachRecord(func(record *kgo.Record) {
			if failed != nil {
				return
			}
			var event PaymentCompletedEvent
			if err := json.Unmarshal(record.Value, &event); err != nil {
				// malformed events are logged and skipped, not retried forever
				slog.Error("failed to unmarshal PaymentCompletedEvent",
					slog.String(logkey.ERROR, err.Error()))
				return
			}
			if err := handle(ctx, event); err != nil {
				slog.Error("failed to handle payment event",
					slog.String(logkey.OrderID, event.OrderId), slog.String(logkey.ERROR, err.Error()))
				failed = record
			}
		})
		if failed != nil {
			// the poll already advanced the consumer position past this
			// record; rewind so it is fetched again and nothing beyond it
			// gets committed
			consumer.SetOffsets(map[string]map[int32]kgo.EpochOffset{
				failed.Topic: {failed.Partition: {Epoch: failed.LeaderEpoch, Offset: failed.Offset}},
			})
			continue
		}

		if err := consumer.CommitUncommittedOffsets(ctx); err != nil {
			slog.Error("failed to commit offsets", slog.String(logkey.ERROR, err.Error()))
		}
	}
}
