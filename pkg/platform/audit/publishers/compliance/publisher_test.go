package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "vendorkyc/pkg/domain"
	audit "vendorkyc/pkg/platform/audit"
	"vendorkyc/pkg/platform/audit/store/memory"
	"vendorkyc/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Entry) error { return context.DeadlineExceeded }
func (failingStore) ListByRecord(context.Context, id.RecordID) ([]audit.Entry, error) {
	return nil, nil
}

type PublisherSuite struct {
	suite.Suite
	store *memory.InMemoryStore
	pub   *Publisher
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.pub = New(s.store)
}

func (s *PublisherSuite) TestEmitEnrichesFromContext() {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.5", "okhttp/4.12")
	ctx = requestcontext.WithRequestID(ctx, "req-42")
	ctx = requestcontext.WithActor(ctx, "vendor-7")
	recordID := id.RecordID(uuid.New())

	s.Require().NoError(s.pub.Emit(ctx, audit.Entry{
		RecordID: recordID,
		Action:   audit.ActionSubmitted,
		Details:  map[string]any{"id_type": "passport"},
	}))

	entries, err := s.pub.List(ctx, recordID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	e := entries[0]
	s.Equal(audit.ActionSubmitted, e.Action)
	s.Equal("vendor-7", e.Actor)
	s.Equal("203.0.113.5", e.ClientIP)
	s.Equal("okhttp/4.12", e.UserAgent)
	s.Equal("req-42", e.RequestID)
	s.Equal(now, e.Timestamp)
	s.NotEqual(uuid.Nil, e.ID)
}

func (s *PublisherSuite) TestEmitDefaultsActorToSystem() {
	recordID := id.RecordID(uuid.New())
	s.Require().NoError(s.pub.Emit(context.Background(), audit.Entry{RecordID: recordID, Action: audit.ActionVerified}))

	entries, err := s.store.ListByRecord(context.Background(), recordID)
	s.Require().NoError(err)
	s.Equal(audit.SystemActor, entries[0].Actor)
}

func (s *PublisherSuite) TestEmitRejectsIncompleteEntries() {
	s.Run("missing record", func() {
		err := s.pub.Emit(context.Background(), audit.Entry{Action: audit.ActionVerified})
		s.Require().Error(err)
	})
	s.Run("unknown action", func() {
		err := s.pub.Emit(context.Background(), audit.Entry{RecordID: id.RecordID(uuid.New()), Action: "approved_by_magic"})
		s.Require().Error(err)
	})
	s.Equal(0, s.store.Count())
}

func (s *PublisherSuite) TestEmitFailsClosed() {
	pub := New(failingStore{})
	err := pub.Emit(context.Background(), audit.Entry{RecordID: id.RecordID(uuid.New()), Action: audit.ActionRejected})
	s.Require().Error(err)
	s.ErrorIs(err, context.DeadlineExceeded)
}
