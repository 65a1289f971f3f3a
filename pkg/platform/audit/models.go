package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "vendorkyc/pkg/domain"
)

// Action tags one state change of an identity record. Every transition writes
// exactly one entry with one of these actions.
type Action string

const (
	ActionDocumentUploaded Action = "document_uploaded"
	ActionSubmitted        Action = "submitted"
	ActionVerified         Action = "verified"
	ActionRejected         Action = "rejected"
	ActionOverridden       Action = "overridden"
)

var validActions = map[Action]struct{}{
	ActionDocumentUploaded: {},
	ActionSubmitted:        {},
	ActionVerified:         {},
	ActionRejected:         {},
	ActionOverridden:       {},
}

func (a Action) IsValid() bool {
	_, ok := validActions[a]
	return ok
}

func (a Action) String() string { return string(a) }

// SystemActor is recorded when no authenticated principal drove the change.
const SystemActor = "system"

// Entry is an immutable audit log row. Entries are appended, never edited or
// deleted, and form the admissible trail of who changed a record and when.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	RecordID  id.RecordID    `json:"record_id"`
	Action    Action         `json:"action"`
	Actor     string         `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	ClientIP  string         `json:"client_ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Store persists audit entries. Append must join the ambient transaction in
// ctx when the implementation supports one.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByRecord(ctx context.Context, recordID id.RecordID) ([]Entry, error)
}
