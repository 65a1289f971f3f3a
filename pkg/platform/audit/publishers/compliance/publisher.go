// Package compliance provides the fail-closed audit publisher used for every
// identity record transition.
//
// Emit is synchronous: the caller blocks until the entry is persisted and must
// fail its own operation if Emit returns an error. Within a transaction the
// entry commits or rolls back together with the state change it describes.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "vendorkyc/pkg/domain"
	audit "vendorkyc/pkg/platform/audit"
	"vendorkyc/pkg/requestcontext"
)

// Publisher emits audit entries with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills request metadata missing from entry (actor, client IP, user
// agent, request ID, timestamp) from ctx and persists it.
func (p *Publisher) Emit(ctx context.Context, entry audit.Entry) error {
	start := time.Now()

	if entry.RecordID.IsNil() {
		return fmt.Errorf("audit entry requires RecordID")
	}
	if !entry.Action.IsValid() {
		return fmt.Errorf("audit entry has unknown action %q", entry.Action)
	}
	enrich(ctx, &entry)

	if err := p.store.Append(ctx, entry); err != nil {
		p.metrics.IncPersistFailures()
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", entry.Action,
				"record_id", entry.RecordID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	p.metrics.ObservePersistDuration(time.Since(start).Seconds())
	p.metrics.IncEntriesEmitted(entry.Action)
	return nil
}

// List returns the audit trail of one record, oldest first.
func (p *Publisher) List(ctx context.Context, recordID id.RecordID) ([]audit.Entry, error) {
	return p.store.ListByRecord(ctx, recordID)
}

func enrich(ctx context.Context, e *audit.Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = requestcontext.Now(ctx)
	}
	if e.Actor == "" {
		e.Actor = requestcontext.Actor(ctx)
	}
	if e.ClientIP == "" {
		e.ClientIP = requestcontext.ClientIP(ctx)
	}
	if e.UserAgent == "" {
		e.UserAgent = requestcontext.UserAgent(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
}
