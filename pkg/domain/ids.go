package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "vendorkyc/pkg/domain-errors"
)

// Typed identifiers keep vendor, record and reviewer IDs from being mixed up
// at compile time.
type (
	VendorID   uuid.UUID
	RecordID   uuid.UUID
	ReviewerID uuid.UUID
)

func (id VendorID) String() string   { return uuid.UUID(id).String() }
func (id RecordID) String() string   { return uuid.UUID(id).String() }
func (id ReviewerID) String() string { return uuid.UUID(id).String() }

// MarshalText renders IDs as canonical UUID strings in JSON.
func (id VendorID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id RecordID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id ReviewerID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *VendorID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RecordID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ReviewerID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id VendorID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ReviewerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewRecordID returns a random record identifier.
func NewRecordID() RecordID {
	return RecordID(uuid.New())
}

func ParseVendorID(s string) (VendorID, error) {
	u, err := parseUUID(s, "vendor id")
	return VendorID(u), err
}

func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s, "record id")
	return RecordID(u), err
}

func ParseReviewerID(s string) (ReviewerID, error) {
	u, err := parseUUID(s, "reviewer id")
	return ReviewerID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return u, nil
}
