package service

import (
	"context"
	"time"

	"vendorkyc/internal/verification/duplicate"
	"vendorkyc/internal/verification/models"
	"vendorkyc/internal/verification/ports"
	"vendorkyc/internal/verification/risk"
	dErrors "vendorkyc/pkg/domain-errors"
	audit "vendorkyc/pkg/platform/audit"
	"vendorkyc/pkg/requestcontext"
)

// commitResult is what the decision transaction produced.
type commitResult struct {
	record    *models.IdentityRecord
	duplicate bool
	granted   *models.PromotionalGrant
}

// decide moves the record to its terminal state in one transaction:
// compare-and-swap on processing, duplicate re-check for approvals, account
// side effects and the audit entry. The trial notification goes out after
// commit.
func (s *Service) decide(ctx context.Context, rec *models.IdentityRecord, outcome models.Outcome, details map[string]any) (*models.IdentityRecord, error) {
	var res commitResult
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.commitDecision(ctx, rec, outcome, details)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to commit decision",
			"record_id", rec.ID,
			"error", err,
		)
		return nil, translate(err, "failed to record decision")
	}

	s.metrics.IncDecision(string(res.record.Status))
	s.logger.InfoContext(ctx, "verification decided",
		"record_id", res.record.ID,
		"status", res.record.Status,
		"risk_score", derefFloat(res.record.RiskScore),
	)

	if res.duplicate {
		s.metrics.IncDuplicate()
		return res.record, dErrors.New(dErrors.CodeDuplicateIdentity, duplicate.ErrDuplicateMessage)
	}
	if res.granted != nil {
		s.notifyTrialStarted(ctx, res.record, *res.granted)
	}
	return res.record, nil
}

func (s *Service) commitDecision(ctx context.Context, rec *models.IdentityRecord, outcome models.Outcome, details map[string]any) (commitResult, error) {
	now := requestcontext.Now(ctx)
	fresh, err := s.deps.Records.Get(ctx, rec.ID)
	if err != nil {
		return commitResult{}, err
	}
	if fresh.Status != models.StatusProcessing {
		return commitResult{}, dErrors.New(dErrors.CodeConcurrentModification, "record was decided concurrently")
	}

	isDuplicate := false
	if outcome.Approved {
		// The lock is advisory; the store is the source of truth.
		if err := s.deps.Duplicates.CheckDuplicate(ctx, fresh.IDNumber, fresh.VendorID); err != nil {
			if !dErrors.HasCode(err, dErrors.CodeDuplicateIdentity) {
				return commitResult{}, err
			}
			outcome, details = duplicateOutcome()
			isDuplicate = true
		}
	} else if outcome.Reason == risk.MsgDuplicateIdentity {
		isDuplicate = true
	}

	if err := fresh.ApplyDecision(outcome, now); err != nil {
		return commitResult{}, err
	}
	if err := fresh.CheckApprovedInvariant(s.cfg.ApprovalThreshold); err != nil {
		return commitResult{}, err
	}
	if err := s.deps.Records.Update(ctx, fresh, models.StatusProcessing); err != nil {
		return commitResult{}, err
	}

	res := commitResult{record: fresh, duplicate: isDuplicate}
	action := audit.ActionRejected
	if fresh.Status == models.StatusApproved {
		action = audit.ActionVerified
		grant := models.PromotionalGrant{
			RecordID:  fresh.ID,
			Tier:      s.cfg.PromotionalTier,
			ExpiresAt: fresh.DecidedAt.Add(s.cfg.PromotionalPeriod),
		}
		if err := s.deps.Accounts.SetVerified(ctx, fresh.VendorID, true); err != nil {
			return commitResult{}, err
		}
		changed, err := s.deps.Accounts.SetPromotionalTier(ctx, fresh.VendorID, grant)
		if err != nil {
			return commitResult{}, err
		}
		if changed {
			res.granted = &grant
		}
		details["promotional_tier"] = grant.Tier
		details["promotional_expires_at"] = grant.ExpiresAt.Format(time.RFC3339)
	} else {
		details["rejection_reason"] = fresh.RejectionReason
	}

	if err := s.deps.Audit.Emit(ctx, audit.Entry{
		RecordID:  fresh.ID,
		Action:    action,
		Actor:     audit.SystemActor,
		Timestamp: now,
		Details:   details,
	}); err != nil {
		return commitResult{}, err
	}
	return res, nil
}

// rejectDuplicate terminates the record without running any provider check.
func (s *Service) rejectDuplicate(ctx context.Context, rec *models.IdentityRecord) (*models.IdentityRecord, error) {
	outcome, details := duplicateOutcome()
	s.logger.WarnContext(ctx, "duplicate identity detected",
		"record_id", rec.ID,
		"vendor_id", rec.VendorID,
	)
	return s.decide(ctx, rec, outcome, details)
}

func duplicateOutcome() (models.Outcome, map[string]any) {
	assessment := risk.DuplicateAssessment()
	return models.Outcome{
			RiskScore: assessment.Risk,
			Reason:    assessment.Recommendation,
		}, map[string]any{
			"risk_score":     assessment.Risk,
			"recommendation": assessment.Recommendation,
			"penalties":      assessment.Penalties,
			"duplicate":      true,
		}
}

func (s *Service) notifyTrialStarted(ctx context.Context, rec *models.IdentityRecord, grant models.PromotionalGrant) {
	account, err := s.deps.Accounts.Get(ctx, rec.VendorID)
	if err != nil {
		s.logger.WarnContext(ctx, "trial notification skipped, account unavailable",
			"record_id", rec.ID,
			"error", err,
		)
		return
	}
	err = s.deps.Notifier.Send(ctx, account.Email, ports.TemplateTrialStarted, map[string]string{
		"display_name": account.DisplayName,
		"tier":         grant.Tier,
		"expires_at":   grant.ExpiresAt.Format("2 January 2006"),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "trial notification failed",
			"record_id", rec.ID,
			"error", err,
		)
	}
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
