package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher emits registry events to a Kafka topic using an async
// produce. Delivery failures are logged and dropped; mapping telemetry is
// observational and must never fail a mutation or add latency to it.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects a producer to the given brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

func (p *KafkaPublisher) MappingCreated(ctx context.Context, event MappingCreated) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	p.produce(ctx, "mapping-created", event.Kind, event)
}

func (p *KafkaPublisher) SubjectMerged(ctx context.Context, event SubjectMerged) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	p.produce(ctx, "subject-merged", event.Kind, event)
}

func (p *KafkaPublisher) produce(ctx context.Context, eventType, kind string, payload any) {
	value, err := json.Marshal(payload)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode registry event",
			"event_type", eventType,
			"kind", kind,
			"error", err,
		)
		return
	}
	record := &kgo.Record{
		Key:   []byte(kind),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "eventType", Value: []byte(eventType)},
		},
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("failed to publish registry event",
				"event_type", eventType,
				"kind", kind,
				"error", err,
			)
		}
	})
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
