package ports

import (
	"context"

	"vendorkyc/internal/verification/models"
	id "vendorkyc/pkg/domain"
)

// RecordStore persists identity records. Implementations join the ambient
// transaction when one is present in ctx.
type RecordStore interface {
	// Create inserts a new pending record. It fails with sentinel.ErrConflict
	// when the vendor already has a non-terminal record.
	Create(ctx context.Context, rec *models.IdentityRecord) error

	// Get returns the record. Inside a transaction SQL implementations lock
	// the row until commit.
	Get(ctx context.Context, recordID id.RecordID) (*models.IdentityRecord, error)

	// Latest returns the vendor's most recently created record.
	Latest(ctx context.Context, vendorID id.VendorID) (*models.IdentityRecord, error)

	// Update writes rec only if the stored status still equals expected.
	// A mismatch, or a second approved record for the same id number, fails
	// with sentinel.ErrConflict.
	Update(ctx context.Context, rec *models.IdentityRecord, expected models.RecordStatus) error

	// FindApprovedByIDNumber returns an approved record for idNumber owned by
	// a vendor other than exclude, or sentinel.ErrNotFound.
	FindApprovedByIDNumber(ctx context.Context, idNumber string, exclude id.VendorID) (*models.IdentityRecord, error)
}

// TxRunner runs fn atomically. Stores used inside fn with the provided ctx
// take part in the same unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
