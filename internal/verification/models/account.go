package models

import (
	"time"

	id "vendorkyc/pkg/domain"
)

const TierFree = "free"

// Account is the vendor account the pipeline marks verified and upgrades to a
// promotional tier on approval.
type Account struct {
	ID                   id.VendorID  `json:"id"`
	Email                string       `json:"email"`
	DisplayName          string       `json:"display_name"`
	IsVerified           bool         `json:"is_verified"`
	Tier                 string       `json:"tier"`
	PromotionalExpiresAt *time.Time   `json:"promotional_expires_at,omitempty"`
	PromotionalRecordID  *id.RecordID `json:"-"`
	ReminderSent         bool         `json:"-"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// PromotionalGrant is an idempotent tier upgrade keyed by the approving record.
// Applying the same grant twice leaves the expiry unchanged.
type PromotionalGrant struct {
	RecordID  id.RecordID
	Tier      string
	ExpiresAt time.Time
}

// ApplyGrant applies g and reports whether anything changed. A grant from the
// record that already produced the current promotion is a no-op.
func (a *Account) ApplyGrant(g PromotionalGrant, now time.Time) bool {
	if a.PromotionalRecordID != nil && *a.PromotionalRecordID == g.RecordID {
		return false
	}
	rid := g.RecordID
	exp := g.ExpiresAt
	a.PromotionalRecordID = &rid
	a.PromotionalExpiresAt = &exp
	a.Tier = g.Tier
	a.ReminderSent = false
	a.UpdatedAt = now
	return true
}

// TrialEndingWithin reports whether the promotion ends in (now, now+lead] and
// no reminder has been sent.
func (a *Account) TrialEndingWithin(now time.Time, lead time.Duration) bool {
	if a.PromotionalExpiresAt == nil || a.ReminderSent {
		return false
	}
	exp := *a.PromotionalExpiresAt
	return exp.After(now) && !exp.After(now.Add(lead))
}
