package service

import (
	"context"
	"errors"
	"strings"

	"vendorkyc/internal/verification/extraction"
	"vendorkyc/internal/verification/models"
	id "vendorkyc/pkg/domain"
	dErrors "vendorkyc/pkg/domain-errors"
	audit "vendorkyc/pkg/platform/audit"
	"vendorkyc/pkg/platform/sentinel"
	"vendorkyc/pkg/requestcontext"
)

// UploadResult is returned for every upload. Suggestion is set only for the
// document front and may be empty when text detection was unavailable.
type UploadResult struct {
	Record     *models.IdentityRecord `json:"record"`
	Suggestion *extraction.Extraction `json:"suggestion,omitempty"`
}

// UploadDocument stores one image and attaches it to the vendor's open
// record, creating a pending record on the first upload or after a
// rejection.
func (s *Service) UploadDocument(ctx context.Context, vendorID id.VendorID, req models.UploadRequest) (*UploadResult, error) {
	if vendorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "vendor required")
	}
	if len(req.Data) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "image is empty")
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		return nil, dErrors.New(dErrors.CodeValidation, "file must be an image")
	}

	rec, err := s.openRecord(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	ref, err := s.deps.Objects.Store(ctx, req.Data, req.Kind.Purpose(), vendorID.String())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to store image",
			"record_id", rec.ID,
			"kind", req.Kind,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "image storage unavailable")
	}

	var updated *models.IdentityRecord
	err = s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		fresh, err := s.deps.Records.Get(ctx, rec.ID)
		if err != nil {
			return err
		}
		if err := fresh.AttachImage(req.Kind, ref, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.deps.Records.Update(ctx, fresh, models.StatusPending); err != nil {
			return err
		}
		updated = fresh
		return s.deps.Audit.Emit(ctx, audit.Entry{
			RecordID: fresh.ID,
			Action:   audit.ActionDocumentUploaded,
			Details: map[string]any{
				"kind":         string(req.Kind),
				"content_type": req.ContentType,
				"bytes":        len(req.Data),
			},
		})
	})
	if err != nil {
		return nil, translate(err, "failed to attach image")
	}

	s.logger.InfoContext(ctx, "document uploaded",
		"record_id", updated.ID,
		"kind", req.Kind,
	)

	result := &UploadResult{Record: updated}
	if req.Kind == models.ImageFront {
		result.Suggestion = s.suggest(ctx, updated.ID, ref)
	}
	return result, nil
}

// openRecord returns the vendor's pending record, creating one if the vendor
// has none or the latest was rejected.
func (s *Service) openRecord(ctx context.Context, vendorID id.VendorID) (*models.IdentityRecord, error) {
	latest, err := s.deps.Records.Latest(ctx, vendorID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
	case err != nil:
		return nil, translate(err, "failed to load verification record")
	case latest.Status == models.StatusPending:
		return latest, nil
	case latest.Status == models.StatusProcessing:
		return nil, dErrors.New(dErrors.CodeInvalidSubmission, "verification is in progress")
	case latest.Status == models.StatusApproved:
		return nil, dErrors.New(dErrors.CodeInvalidSubmission, "vendor is already verified")
	}

	rec, err := models.NewIdentityRecord(id.NewRecordID(), vendorID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.deps.Records.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent upload opened the record first.
			latest, lerr := s.deps.Records.Latest(ctx, vendorID)
			if lerr == nil && latest.Status == models.StatusPending {
				return latest, nil
			}
		}
		return nil, translate(err, "failed to open verification record")
	}
	return rec, nil
}

func (s *Service) suggest(ctx context.Context, recordID id.RecordID, ref string) *extraction.Extraction {
	ext, err := s.deps.Extractor.Extract(ctx, ref)
	if err != nil {
		s.metrics.IncExtraction("unavailable")
		s.logger.WarnContext(ctx, "extraction unavailable, returning empty suggestion",
			"record_id", recordID,
			"error", err,
		)
		return &extraction.Extraction{}
	}
	s.metrics.IncExtraction("ok")
	return &ext
}
