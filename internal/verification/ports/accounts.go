package ports

import (
	"context"
	"time"

	"vendorkyc/internal/verification/models"
	id "vendorkyc/pkg/domain"
)

// AccountStore manages the vendor account side effects of a decision. Both
// mutations are idempotent; SetPromotionalTier reports whether the grant
// changed anything.
type AccountStore interface {
	Get(ctx context.Context, accountID id.VendorID) (*models.Account, error)
	SetVerified(ctx context.Context, accountID id.VendorID, verified bool) error
	SetPromotionalTier(ctx context.Context, accountID id.VendorID, grant models.PromotionalGrant) (bool, error)
	// ListTrialsEnding returns accounts whose promotion ends in (now, now+lead]
	// without a reminder sent.
	ListTrialsEnding(ctx context.Context, now time.Time, lead time.Duration) ([]*models.Account, error)
	MarkReminderSent(ctx context.Context, accountID id.VendorID) error
}

// AccountProvisioner creates or refreshes an account's contact details.
// Tier, verification and promotion state are left untouched on update.
type AccountProvisioner interface {
	Upsert(ctx context.Context, account *models.Account) error
}
