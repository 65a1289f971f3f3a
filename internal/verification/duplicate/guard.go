// Package duplicate rejects submissions whose id number is already approved
// on another vendor account.
package duplicate

import (
	"context"
	"errors"
	"log/slog"

	"vendorkyc/internal/verification/models"
	"vendorkyc/internal/verification/ports"
	id "vendorkyc/pkg/domain"
	dErrors "vendorkyc/pkg/domain-errors"
	"vendorkyc/pkg/platform/sentinel"
)

// ErrDuplicateMessage is the client-facing text of a duplicate rejection.
const ErrDuplicateMessage = "this ID is already linked to another registered account"

type Guard struct {
	records ports.RecordStore
	logger  *slog.Logger
}

func New(records ports.RecordStore, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{records: records, logger: logger}
}

// CheckDuplicate returns a CodeDuplicateIdentity error when another vendor
// holds an approved record with the same normalized id number. The vendor's
// own approved records never count. Store failures surface as
// CodeProviderUnavailable so the caller retries instead of rejecting.
func (g *Guard) CheckDuplicate(ctx context.Context, idNumber string, vendorID id.VendorID) error {
	normalized := models.NormalizeIDNumber(idNumber)
	if normalized == "" {
		return nil
	}
	existing, err := g.records.FindApprovedByIDNumber(ctx, normalized, vendorID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "duplicate check unavailable, try again")
	}
	g.logger.WarnContext(ctx, "duplicate identity detected",
		"vendor_id", vendorID.String(),
		"holder_record_id", existing.ID.String(),
	)
	return dErrors.New(dErrors.CodeDuplicateIdentity, ErrDuplicateMessage)
}
