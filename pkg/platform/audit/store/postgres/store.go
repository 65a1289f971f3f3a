package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "vendorkyc/pkg/domain"
	audit "vendorkyc/pkg/platform/audit"
	txcontext "vendorkyc/pkg/platform/tx"
)

// Store implements audit.Store. Each Append writes the audit_log row and an
// outbox row in the caller's transaction; the outbox relay publishes the
// latter to Kafka.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// OutboxPayload is the JSON document published for each audit entry.
type OutboxPayload struct {
	ID        string         `json:"id"`
	RecordID  string         `json:"record_id"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Timestamp string         `json:"timestamp"`
	ClientIP  string         `json:"client_ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	payload, err := json.Marshal(OutboxPayload{
		ID:        entry.ID.String(),
		RecordID:  entry.RecordID.String(),
		Action:    entry.Action.String(),
		Actor:     entry.Actor,
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
		ClientIP:  entry.ClientIP,
		UserAgent: entry.UserAgent,
		RequestID: entry.RequestID,
		Details:   entry.Details,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	ex := s.execer(ctx)
	_, err = ex.ExecContext(ctx, `
		INSERT INTO kyc_audit_log (id, record_id, action, actor, occurred_at, client_ip, user_agent, request_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		entry.ID,
		uuid.UUID(entry.RecordID),
		entry.Action.String(),
		entry.Actor,
		entry.Timestamp,
		entry.ClientIP,
		entry.UserAgent,
		entry.RequestID,
		details,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		"identity_record",
		entry.RecordID.String(),
		entry.Action.String(),
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByRecord returns entries for a record, oldest first.
func (s *Store) ListByRecord(ctx context.Context, recordID id.RecordID) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, action, actor, occurred_at, client_ip, user_agent, request_id, details
		FROM kyc_audit_log
		WHERE record_id = $1
		ORDER BY occurred_at ASC, seq ASC
	`, uuid.UUID(recordID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e       audit.Entry
			rid     uuid.UUID
			action  string
			details []byte
		)
		if err := rows.Scan(&e.ID, &rid, &action, &e.Actor, &e.Timestamp, &e.ClientIP, &e.UserAgent, &e.RequestID, &details); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.RecordID = id.RecordID(rid)
		e.Action = audit.Action(action)
		if len(details) > 0 && string(details) != "null" {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
