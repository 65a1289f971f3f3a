//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"vendorkyc/internal/platform/kafka"
	id "vendorkyc/pkg/domain"
	audit "vendorkyc/pkg/platform/audit"
	pgaudit "vendorkyc/pkg/platform/audit/store/postgres"
	"vendorkyc/pkg/platform/audit/worker"
	"vendorkyc/pkg/testutil/containers"
)

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	broker   *containers.RedpandaContainer
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.broker = containers.GetManager().GetRedpanda(s.T())
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "kyc_audit_log", "outbox"))
}

// TestOutboxToBroker appends audit entries, relays them and reads them back
// from the topic in append order.
func (s *RelaySuite) TestOutboxToBroker() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "kyc.audit.relay." + time.Now().Format("150405.000000")

	producer, err := kafka.NewProducer([]string{s.broker.Broker}, topic)
	s.Require().NoError(err)
	defer producer.Close()
	s.Require().NoError(producer.EnsureTopic(ctx, 1, 1))

	store := pgaudit.New(s.postgres.DB)
	recordID := id.NewRecordID()
	for _, action := range []audit.Action{audit.ActionSubmitted, audit.ActionVerified} {
		s.Require().NoError(store.Append(ctx, audit.Entry{
			RecordID:  recordID,
			Action:    action,
			Actor:     audit.SystemActor,
			Timestamp: time.Now(),
		}))
	}

	w := worker.NewWorker(pgaudit.NewOutbox(s.postgres.DB), kafka.NewAuditSink(producer), time.Second, 10, nil)
	moved, err := w.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(2, moved)

	moved, err = w.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Zero(moved, "published rows are not relayed twice")

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got []*kgo.Record
	for len(got) < 2 && ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		s.Require().Empty(fetches.Errors())
		got = append(got, fetches.Records()...)
	}
	s.Require().Len(got, 2)

	var payload pgaudit.OutboxPayload
	s.Require().NoError(json.Unmarshal(got[1].Value, &payload))
	s.Equal(recordID.String(), string(got[1].Key))
	s.Equal(string(audit.ActionVerified), payload.Action)
	s.Equal(audit.SystemActor, payload.Actor)
}
