package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorkyc/pkg/platform/audit/worker"
)

type captureProducer struct {
	records []Record
	err     error
}

func (c *captureProducer) Produce(_ context.Context, records ...Record) error {
	if c.err != nil {
		return c.err
	}
	c.records = append(c.records, records...)
	return nil
}

func TestAuditSinkPublish(t *testing.T) {
	p := &captureProducer{}
	sink := NewAuditSink(p)
	msgID := uuid.New()
	created := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

	err := sink.Publish(context.Background(), []worker.Message{{
		ID:        msgID,
		Key:       "record-1",
		EventType: "verified",
		Payload:   []byte(`{"action":"verified"}`),
		CreatedAt: created,
	}})
	require.NoError(t, err)
	require.Len(t, p.records, 1)

	rec := p.records[0]
	assert.Equal(t, "record-1", rec.Key)
	assert.JSONEq(t, `{"action":"verified"}`, string(rec.Value))
	assert.Equal(t, "verified", rec.Headers[HeaderEventType])
	assert.Equal(t, msgID.String(), rec.Headers[HeaderMessageID])
	assert.Equal(t, "2026-04-02T10:30:00Z", rec.Headers[HeaderCreatedAt])
}

func TestAuditSinkPropagatesErrors(t *testing.T) {
	sink := NewAuditSink(&captureProducer{err: errors.New("broker down")})
	err := sink.Publish(context.Background(), []worker.Message{{ID: uuid.New(), Key: "k"}})
	assert.ErrorContains(t, err, "broker down")
}
