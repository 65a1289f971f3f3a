package service

import (
	"context"
	"errors"
	"strings"

	"vendorkyc/internal/verification/models"
	id "vendorkyc/pkg/domain"
	dErrors "vendorkyc/pkg/domain-errors"
	audit "vendorkyc/pkg/platform/audit"
	"vendorkyc/pkg/platform/sentinel"
	"vendorkyc/pkg/requestcontext"
)

// Status returns the vendor's most recent record.
func (s *Service) Status(ctx context.Context, vendorID id.VendorID) (*models.IdentityRecord, error) {
	rec, err := s.deps.Records.Latest(ctx, vendorID)
	if err != nil {
		return nil, translate(err, "no verification record")
	}
	return rec, nil
}

// Record returns one record by id for reviewers.
func (s *Service) Record(ctx context.Context, recordID id.RecordID) (*models.IdentityRecord, error) {
	rec, err := s.deps.Records.Get(ctx, recordID)
	if err != nil {
		return nil, translate(err, "verification record not found")
	}
	return rec, nil
}

// AuditTrail returns the record's audit entries, oldest first.
func (s *Service) AuditTrail(ctx context.Context, recordID id.RecordID) ([]audit.Entry, error) {
	if _, err := s.deps.Records.Get(ctx, recordID); err != nil {
		return nil, translate(err, "verification record not found")
	}
	entries, err := s.deps.Audit.List(ctx, recordID)
	if err != nil {
		return nil, translate(err, "failed to load audit trail")
	}
	return entries, nil
}

// Override applies a reviewer action. Annotations are allowed on any record;
// rejection only on records that are not yet decided.
func (s *Service) Override(ctx context.Context, recordID id.RecordID, o models.Override) (*models.IdentityRecord, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	var updated *models.IdentityRecord
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		rec, err := s.deps.Records.Get(ctx, recordID)
		if err != nil {
			return err
		}
		previous := rec.Status
		switch o.Action {
		case models.OverrideAnnotate:
			rec.ApplyReview(o.Reviewer, strings.TrimSpace(o.Note), now)
		case models.OverrideReject:
			if err := rec.RejectByReviewer(o.Reviewer, strings.TrimSpace(o.Note), now); err != nil {
				return err
			}
		}
		if err := s.deps.Records.Update(ctx, rec, previous); err != nil {
			return err
		}
		updated = rec
		return s.deps.Audit.Emit(ctx, audit.Entry{
			RecordID: rec.ID,
			Action:   audit.ActionOverridden,
			Actor:    o.Reviewer,
			Details: map[string]any{
				"override":        string(o.Action),
				"note":            o.Note,
				"previous_status": string(previous),
				"status":          string(rec.Status),
			},
		})
	})
	if err != nil {
		return nil, translate(err, "verification record not found")
	}
	if o.Action == models.OverrideReject {
		s.metrics.IncDecision(string(models.StatusRejected))
	}
	s.logger.InfoContext(ctx, "reviewer override applied",
		"record_id", recordID,
		"action", o.Action,
		"reviewer", o.Reviewer,
	)
	return updated, nil
}

// ProvisionAccount creates or refreshes the vendor account that approvals
// mark verified.
func (s *Service) ProvisionAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account == nil || account.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "account id is required")
	}
	if err := s.deps.Provisioner.Upsert(ctx, account); err != nil {
		return nil, translate(err, "failed to provision account")
	}
	stored, err := s.deps.Accounts.Get(ctx, account.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "account vanished after provisioning")
		}
		return nil, translate(err, "failed to load account")
	}
	return stored, nil
}
