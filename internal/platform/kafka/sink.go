package kafka

import (
	"context"
	"time"

	"vendorkyc/pkg/platform/audit/worker"
)

// Header names set on relayed audit events.
const (
	HeaderEventType = "event_type"
	HeaderMessageID = "message_id"
	HeaderCreatedAt = "created_at"
)

type producer interface {
	Produce(ctx context.Context, records ...Record) error
}

// AuditSink adapts a Producer to the outbox relay. Events are keyed by
// record ID so one record's trail stays ordered within a partition.
type AuditSink struct {
	producer producer
}

func NewAuditSink(p producer) *AuditSink {
	return &AuditSink{producer: p}
}

func (s *AuditSink) Publish(ctx context.Context, batch []worker.Message) error {
	records := make([]Record, len(batch))
	for i, m := range batch {
		records[i] = Record{
			Key:   m.Key,
			Value: m.Payload,
			Headers: map[string]string{
				HeaderEventType: m.EventType,
				HeaderMessageID: m.ID.String(),
				HeaderCreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
			},
		}
	}
	return s.producer.Produce(ctx, records...)
}
