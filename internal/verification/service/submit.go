package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"vendorkyc/internal/verification/authenticity"
	"vendorkyc/internal/verification/biometric"
	"vendorkyc/internal/verification/liveness"
	"vendorkyc/internal/verification/models"
	"vendorkyc/internal/verification/risk"
	id "vendorkyc/pkg/domain"
	dErrors "vendorkyc/pkg/domain-errors"
	audit "vendorkyc/pkg/platform/audit"
	"vendorkyc/pkg/platform/sentinel"
	"vendorkyc/pkg/requestcontext"
)

// Submit confirms the extracted fields and runs the verification checks.
//
// A processing record (left behind by an outage or deadline) is processed
// again with its stored fields. An approved record is returned unchanged.
func (s *Service) Submit(ctx context.Context, vendorID id.VendorID, sub models.Submission) (*models.IdentityRecord, error) {
	if vendorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "vendor required")
	}

	latest, err := s.deps.Records.Latest(ctx, vendorID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeInvalidSubmission, "upload your documents before submitting")
	}
	if err != nil {
		return nil, translate(err, "failed to load verification record")
	}

	switch latest.Status {
	case models.StatusApproved:
		return latest, nil
	case models.StatusRejected:
		return nil, dErrors.New(dErrors.CodeInvalidSubmission, "verification was rejected, upload new documents to try again")
	case models.StatusProcessing:
		s.logger.InfoContext(ctx, "resuming processing",
			"record_id", latest.ID,
		)
		return s.process(ctx, latest)
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	var submitted *models.IdentityRecord
	err = s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		fresh, err := s.deps.Records.Get(ctx, latest.ID)
		if err != nil {
			return err
		}
		if err := fresh.ApplySubmission(sub, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.deps.Records.Update(ctx, fresh, models.StatusPending); err != nil {
			return err
		}
		submitted = fresh
		return s.deps.Audit.Emit(ctx, audit.Entry{
			RecordID: fresh.ID,
			Action:   audit.ActionSubmitted,
			Details: map[string]any{
				"id_type": string(fresh.IDType),
			},
		})
	})
	if err != nil {
		return nil, translate(err, "failed to submit verification")
	}
	return s.process(ctx, submitted)
}

// checkResults gathers the outputs of the concurrent checks.
type checkResults struct {
	authenticity authenticity.Result
	biometric    biometric.Result
	liveness     liveness.Result
}

// process takes a processing record to a decision. It returns an error with
// CodeProviderUnavailable, leaving the record processing, when the checks
// could not produce a trustworthy answer.
func (s *Service) process(ctx context.Context, rec *models.IdentityRecord) (*models.IdentityRecord, error) {
	ctx, span := s.tracer.Start(ctx, "verification.process")
	defer span.End()
	span.SetAttributes(attribute.String("record_id", rec.ID.String()))
	start := time.Now()
	defer func() { s.metrics.ObserveProcessing(time.Since(start)) }()

	rec, err := s.refreshImageRefs(ctx, rec)
	if err != nil {
		span.SetStatus(codes.Error, "refresh image refs")
		return nil, err
	}

	if err := s.deps.Duplicates.CheckDuplicate(ctx, rec.IDNumber, rec.VendorID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeDuplicateIdentity) {
			span.SetAttributes(attribute.Bool("duplicate", true))
			return s.rejectDuplicate(ctx, rec)
		}
		s.metrics.IncDeferred("duplicate_check")
		return nil, err
	}

	lease, err := s.deps.Locker.Acquire(ctx, rec.IDNumber, rec.ID.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) {
			return nil, dErrors.Wrap(err, dErrors.CodeConcurrentModification, "another verification for this ID number is in progress")
		}
		s.metrics.IncDeferred("lock")
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, errTryAgain)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release id number lock",
				"record_id", rec.ID,
				"error", err,
			)
		}
	}()

	results, err := s.runChecks(ctx, rec)
	if err != nil {
		span.SetStatus(codes.Error, "checks deferred")
		return nil, err
	}

	assessment := risk.Score(risk.Input{
		Authenticity: results.authenticity,
		Biometric:    results.biometric,
		Liveness:     results.liveness,
		IDNumber:     rec.IDNumber,
	})
	approved := results.authenticity.IsValid &&
		results.biometric.IsMatch &&
		results.liveness.IsLive &&
		assessment.Risk <= s.cfg.ApprovalThreshold

	score := results.biometric.AggregateScore
	outcome := models.Outcome{
		Approved:       approved,
		FaceMatchScore: &score,
		FaceMatched:    results.biometric.IsMatch,
		DocumentValid:  results.authenticity.IsValid,
		IsLiveSelfie:   results.liveness.IsLive,
		RiskScore:      assessment.Risk,
		Reason:         assessment.Recommendation,
	}
	details := map[string]any{
		"risk_score":              assessment.Risk,
		"recommendation":          assessment.Recommendation,
		"penalties":               assessment.Penalties,
		"authenticity_confidence": results.authenticity.Confidence,
		"per_method_scores":       results.biometric.PerMethodScores,
		"biometric_degraded":      results.biometric.Degraded,
		"biometric_no_face":       results.biometric.NoFace,
		"liveness_checks":         results.liveness.Checks,
		"liveness_confidence":     results.liveness.Confidence,
	}
	if len(results.biometric.Errors) > 0 {
		details["comparator_errors"] = results.biometric.Errors
	}
	span.SetAttributes(
		attribute.Bool("approved", approved),
		attribute.Float64("risk", assessment.Risk),
	)
	return s.decide(ctx, rec, outcome, details)
}

// runChecks runs authenticity, biometric and liveness concurrently under the
// outer deadline. Each check fetches its own image copies.
func (s *Service) runChecks(ctx context.Context, rec *models.IdentityRecord) (checkResults, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OuterDeadline)
	defer cancel()

	var (
		authRes authenticity.Result
		bioRes  biometric.Result
		liveRes liveness.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		authRes = s.deps.Authenticity.Check(gctx, rec.DocumentFrontRef, rec.DocumentBackRef)
		return nil
	})
	g.Go(func() error {
		bioRes = s.deps.Biometric.Compare(gctx, rec.DocumentFrontRef, rec.SelfieRef)
		return nil
	})
	g.Go(func() error {
		liveRes = s.deps.Liveness.Check(gctx, rec.SelfieRef)
		return nil
	})

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	// Results computed after the deadline reflect cancelled calls, not the
	// applicant, so they are discarded.
	if ctx.Err() != nil {
		s.metrics.IncDeferred("deadline")
		s.logger.WarnContext(ctx, "verification deadline exceeded, record stays processing",
			"record_id", rec.ID,
			"deadline", s.cfg.OuterDeadline,
		)
		return checkResults{}, dErrors.Wrap(ctx.Err(), dErrors.CodeProviderUnavailable, errTryAgain)
	}
	if bioRes.NoComparator {
		s.metrics.IncDeferred("no_comparator")
		s.logger.WarnContext(ctx, "no face comparator answered, record stays processing",
			"record_id", rec.ID,
			"errors", bioRes.Errors,
		)
		return checkResults{}, dErrors.New(dErrors.CodeProviderUnavailable, errTryAgain)
	}
	return checkResults{authenticity: authRes, biometric: bioRes, liveness: liveRes}, nil
}

// refreshImageRefs re-signs image URLs that would expire during processing
// and persists the new refs.
func (s *Service) refreshImageRefs(ctx context.Context, rec *models.IdentityRecord) (*models.IdentityRecord, error) {
	horizon := requestcontext.Now(ctx).Add(s.cfg.OuterDeadline + s.cfg.URLRefreshWindow)
	fresh := map[models.ImageKind]string{}
	for _, kind := range []models.ImageKind{models.ImageFront, models.ImageBack, models.ImageSelfie} {
		ref := rec.ImageRef(kind)
		if ref == "" || !s.deps.Objects.Expired(ref, horizon) {
			continue
		}
		resigned, err := s.deps.Objects.Resign(ctx, ref)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to re-sign image url",
				"record_id", rec.ID,
				"kind", kind,
				"error", err,
			)
			return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "stored images are unavailable, try again")
		}
		fresh[kind] = resigned
	}
	if len(fresh) == 0 {
		return rec, nil
	}

	var updated *models.IdentityRecord
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.deps.Records.Get(ctx, rec.ID)
		if err != nil {
			return err
		}
		for kind, ref := range fresh {
			cur.ReplaceImageRef(kind, ref)
		}
		cur.UpdatedAt = requestcontext.Now(ctx)
		if err := s.deps.Records.Update(ctx, cur, models.StatusProcessing); err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to refresh image refs")
	}
	s.logger.InfoContext(ctx, "image urls re-signed",
		"record_id", rec.ID,
		"count", len(fresh),
	)
	return updated, nil
}
