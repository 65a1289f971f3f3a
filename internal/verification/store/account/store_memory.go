package account

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vendorkyc/internal/verification/models"
	id "vendorkyc/pkg/domain"
	"vendorkyc/pkg/platform/sentinel"
)

// InMemoryStore keeps vendor accounts in memory for tests and local
// development.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.VendorID]*models.Account
	now      func() time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[id.VendorID]*models.Account),
		now:      time.Now,
	}
}

// Upsert provisions or replaces an account.
func (s *InMemoryStore) Upsert(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *a
	if c.Tier == "" {
		c.Tier = models.TierFree
	}
	if existing, ok := s.accounts[a.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	s.accounts[a.ID] = &c
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, accountID id.VendorID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (s *InMemoryStore) SetVerified(_ context.Context, accountID id.VendorID, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	if a.IsVerified != verified {
		a.IsVerified = verified
		a.UpdatedAt = s.now()
	}
	return nil
}

func (s *InMemoryStore) SetPromotionalTier(_ context.Context, accountID id.VendorID, grant models.PromotionalGrant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return false, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	return a.ApplyGrant(grant, s.now()), nil
}

func (s *InMemoryStore) ListTrialsEnding(_ context.Context, now time.Time, lead time.Duration) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Account
	for _, a := range s.accounts {
		if a.TrialEndingWithin(now, lead) {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PromotionalExpiresAt.Before(*out[j].PromotionalExpiresAt)
	})
	return out, nil
}

func (s *InMemoryStore) MarkReminderSent(_ context.Context, accountID id.VendorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	a.ReminderSent = true
	a.UpdatedAt = s.now()
	return nil
}
