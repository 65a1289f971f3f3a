package record

import (
	"context"
	"fmt"
	"sync"

	"vendorkyc/internal/verification/models"
	id "vendorkyc/pkg/domain"
	"vendorkyc/pkg/platform/sentinel"
)

// Error Contract:
//   - ErrNotFound when the record does not exist
//   - ErrConflict when a write would break an open-record, status or
//     approved-id-number constraint
//
// InMemoryStore keeps records in memory for tests and local development.
// Records are cloned on the way in and out.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.IdentityRecord
	// creation order per vendor, newest last
	byVendor map[id.VendorID][]id.RecordID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records:  make(map[id.RecordID]*models.IdentityRecord),
		byVendor: make(map[id.VendorID][]id.RecordID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, rec *models.IdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("record %s exists: %w", rec.ID, sentinel.ErrConflict)
	}
	for _, rid := range s.byVendor[rec.VendorID] {
		if !s.records[rid].Status.IsTerminal() {
			return fmt.Errorf("vendor has an open record: %w", sentinel.ErrConflict)
		}
	}
	s.records[rec.ID] = rec.Clone()
	s.byVendor[rec.VendorID] = append(s.byVendor[rec.VendorID], rec.ID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, recordID id.RecordID) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, fmt.Errorf("record not found: %w", sentinel.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) Latest(_ context.Context, vendorID id.VendorID) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byVendor[vendorID]
	if len(ids) == 0 {
		return nil, fmt.Errorf("no record for vendor: %w", sentinel.ErrNotFound)
	}
	return s.records[ids[len(ids)-1]].Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, rec *models.IdentityRecord, expected models.RecordStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[rec.ID]
	if !ok {
		return fmt.Errorf("record not found: %w", sentinel.ErrNotFound)
	}
	if current.Status != expected {
		return fmt.Errorf("record is %s, expected %s: %w", current.Status, expected, sentinel.ErrConflict)
	}
	if current.Status == models.StatusApproved && !reviewerFieldsOnly(current, rec) {
		return fmt.Errorf("approved record is immutable: %w", sentinel.ErrInvalidState)
	}
	if rec.Status == models.StatusApproved && current.Status != models.StatusApproved {
		for _, other := range s.records {
			if other.ID != rec.ID && other.Status == models.StatusApproved && other.IDNumber == rec.IDNumber {
				return fmt.Errorf("id number already approved: %w", sentinel.ErrConflict)
			}
		}
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *InMemoryStore) FindApprovedByIDNumber(_ context.Context, idNumber string, exclude id.VendorID) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.Status == models.StatusApproved && rec.IDNumber == idNumber && rec.VendorID != exclude {
			return rec.Clone(), nil
		}
	}
	return nil, fmt.Errorf("no approved record: %w", sentinel.ErrNotFound)
}

// reviewerFieldsOnly reports whether next differs from current only in the
// reviewer attribution fields.
func reviewerFieldsOnly(current, next *models.IdentityRecord) bool {
	a, b := current, next
	switch {
	case a.ID != b.ID, a.VendorID != b.VendorID, a.IDType != b.IDType, a.IDNumber != b.IDNumber,
		a.ExtractedName != b.ExtractedName, a.DocumentFrontRef != b.DocumentFrontRef,
		a.DocumentBackRef != b.DocumentBackRef, a.SelfieRef != b.SelfieRef,
		a.FaceMatchStatus != b.FaceMatchStatus, a.DocumentValid != b.DocumentValid,
		a.IsLiveSelfie != b.IsLiveSelfie, a.Status != b.Status, a.RejectionReason != b.RejectionReason:
		return false
	}
	return equalFloat(a.FaceMatchScore, b.FaceMatchScore) && equalFloat(a.RiskScore, b.RiskScore)
}

func equalFloat(x, y *float64) bool {
	if x == nil || y == nil {
		return x == y
	}
	return *x == *y
}
