package models

import (
	"fmt"
	"strings"
	"time"

	id "vendorkyc/pkg/domain"
	dErrors "vendorkyc/pkg/domain-errors"
)

// IdentityRecord is the aggregate root of one verification attempt by a vendor.
//
// Invariants:
//   - Approved ⇒ FaceMatchStatus=verified ∧ DocumentValid ∧ IsLiveSelfie ∧
//     RiskScore ≤ approval threshold (see CheckApprovedInvariant)
//   - RejectionReason is set iff Status is rejected
//   - Status transitions: pending → processing → {approved, rejected}
//   - Approved records change only in reviewer fields
//   - Image refs are URLs into object storage, never image bytes
type IdentityRecord struct {
	ID                   id.RecordID     `json:"id"`
	VendorID             id.VendorID     `json:"vendor_id"`
	IDType               IDType          `json:"id_type,omitempty"`
	IDNumber             string          `json:"id_number,omitempty"`
	ExtractedName        string          `json:"extracted_name,omitempty"`
	ExtractedDateOfBirth *time.Time      `json:"extracted_date_of_birth,omitempty"`
	DocumentFrontRef     string          `json:"document_front_ref,omitempty"`
	DocumentBackRef      string          `json:"document_back_ref,omitempty"`
	SelfieRef            string          `json:"selfie_ref,omitempty"`
	FaceMatchScore       *float64        `json:"face_match_score,omitempty"`
	FaceMatchStatus      FaceMatchStatus `json:"face_match_status"`
	DocumentValid        bool            `json:"document_valid"`
	IsLiveSelfie         bool            `json:"is_live_selfie"`
	RiskScore            *float64        `json:"risk_score,omitempty"`
	Status               RecordStatus    `json:"status"`
	RejectionReason      string          `json:"rejection_reason,omitempty"`
	ReviewedBy           string          `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time      `json:"reviewed_at,omitempty"`
	ReviewNote           string          `json:"review_note,omitempty"`
	DecidedAt            *time.Time      `json:"decided_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// NewIdentityRecord creates a pending record for a vendor's new attempt.
func NewIdentityRecord(recordID id.RecordID, vendorID id.VendorID, now time.Time) (*IdentityRecord, error) {
	if recordID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record id cannot be nil")
	}
	if vendorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "vendor id cannot be nil")
	}
	return &IdentityRecord{
		ID:              recordID,
		VendorID:        vendorID,
		FaceMatchStatus: FaceMatchPending,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (r *IdentityRecord) Clone() *IdentityRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.ExtractedDateOfBirth = cloneTime(r.ExtractedDateOfBirth)
	c.FaceMatchScore = cloneFloat(r.FaceMatchScore)
	c.RiskScore = cloneFloat(r.RiskScore)
	c.ReviewedAt = cloneTime(r.ReviewedAt)
	c.DecidedAt = cloneTime(r.DecidedAt)
	return &c
}

// ImageRef returns the stored ref for kind.
func (r *IdentityRecord) ImageRef(kind ImageKind) string {
	switch kind {
	case ImageFront:
		return r.DocumentFrontRef
	case ImageBack:
		return r.DocumentBackRef
	case ImageSelfie:
		return r.SelfieRef
	}
	return ""
}

// AttachImage records an uploaded image ref. Only pending records accept
// uploads; a later upload of the same kind replaces the earlier ref.
func (r *IdentityRecord) AttachImage(kind ImageKind, ref string, now time.Time) error {
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvalidSubmission, fmt.Sprintf("record is %s and no longer accepts uploads", r.Status))
	}
	if ref == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "image ref cannot be empty")
	}
	switch kind {
	case ImageFront:
		r.DocumentFrontRef = ref
	case ImageBack:
		r.DocumentBackRef = ref
	case ImageSelfie:
		r.SelfieRef = ref
	default:
		return dErrors.New(dErrors.CodeInvalidSubmission, "unknown image kind")
	}
	r.UpdatedAt = now
	return nil
}

// ReplaceImageRef swaps a ref after re-signing. Unlike AttachImage it is
// allowed while processing.
func (r *IdentityRecord) ReplaceImageRef(kind ImageKind, ref string) {
	switch kind {
	case ImageFront:
		r.DocumentFrontRef = ref
	case ImageBack:
		r.DocumentBackRef = ref
	case ImageSelfie:
		r.SelfieRef = ref
	}
}

// MissingImages lists the required images not yet uploaded. The back of the
// document is optional.
func (r *IdentityRecord) MissingImages() []ImageKind {
	var missing []ImageKind
	if r.DocumentFrontRef == "" {
		missing = append(missing, ImageFront)
	}
	if r.SelfieRef == "" {
		missing = append(missing, ImageSelfie)
	}
	return missing
}

// ApplySubmission copies user-confirmed fields and moves the record to
// processing.
func (r *IdentityRecord) ApplySubmission(sub Submission, now time.Time) error {
	if !r.Status.CanTransitionTo(StatusProcessing) {
		return dErrors.New(dErrors.CodeInvalidSubmission, fmt.Sprintf("record is %s and cannot be submitted", r.Status))
	}
	if missing := r.MissingImages(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = string(m)
		}
		return dErrors.New(dErrors.CodeInvalidSubmission, "missing required images: "+strings.Join(names, ", "))
	}
	r.IDType = sub.IDType
	r.IDNumber = NormalizeIDNumber(sub.IDNumber)
	r.ExtractedName = strings.TrimSpace(sub.FullName)
	r.ExtractedDateOfBirth = cloneTime(sub.DateOfBirth)
	r.Status = StatusProcessing
	r.UpdatedAt = now
	return nil
}

// Outcome is the decided result of processing applied to a record.
type Outcome struct {
	Approved       bool
	FaceMatchScore *float64
	FaceMatched    bool
	DocumentValid  bool
	IsLiveSelfie   bool
	RiskScore      float64
	Reason         string
}

// ApplyDecision moves a processing record to its terminal state.
func (r *IdentityRecord) ApplyDecision(o Outcome, now time.Time) error {
	target := StatusRejected
	if o.Approved {
		target = StatusApproved
	}
	if !r.Status.CanTransitionTo(target) {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("cannot move %s record to %s", r.Status, target))
	}
	r.FaceMatchScore = cloneFloat(o.FaceMatchScore)
	r.FaceMatchStatus = FaceMatchFailed
	if o.FaceMatched {
		r.FaceMatchStatus = FaceMatchVerified
	}
	r.DocumentValid = o.DocumentValid
	r.IsLiveSelfie = o.IsLiveSelfie
	risk := o.RiskScore
	r.RiskScore = &risk
	r.Status = target
	r.RejectionReason = ""
	if target == StatusRejected {
		r.RejectionReason = o.Reason
		if r.RejectionReason == "" {
			r.RejectionReason = "verification failed"
		}
	}
	decided := now
	r.DecidedAt = &decided
	r.UpdatedAt = now
	return nil
}

// ApplyReview sets reviewer attribution. It is the only mutation permitted on
// approved records.
func (r *IdentityRecord) ApplyReview(reviewer, note string, now time.Time) {
	r.ReviewedBy = reviewer
	reviewed := now
	r.ReviewedAt = &reviewed
	if note != "" {
		r.ReviewNote = note
	}
	r.UpdatedAt = now
}

// RejectByReviewer terminates a non-terminal record on a reviewer's call.
func (r *IdentityRecord) RejectByReviewer(reviewer, note string, now time.Time) error {
	if r.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeInvalidSubmission, fmt.Sprintf("record is already %s", r.Status))
	}
	r.Status = StatusRejected
	r.RejectionReason = "rejected by reviewer: " + note
	decided := now
	r.DecidedAt = &decided
	r.ApplyReview(reviewer, note, now)
	return nil
}

// CheckApprovedInvariant verifies the approved-state invariant. Non-approved
// records always pass.
func (r *IdentityRecord) CheckApprovedInvariant(approvalThreshold float64) error {
	if r.Status != StatusApproved {
		return nil
	}
	switch {
	case r.FaceMatchStatus != FaceMatchVerified:
		return dErrors.New(dErrors.CodeInvariantViolation, "approved record requires verified face match")
	case !r.DocumentValid:
		return dErrors.New(dErrors.CodeInvariantViolation, "approved record requires a valid document")
	case !r.IsLiveSelfie:
		return dErrors.New(dErrors.CodeInvariantViolation, "approved record requires a live selfie")
	case r.RiskScore == nil || *r.RiskScore > approvalThreshold:
		return dErrors.New(dErrors.CodeInvariantViolation, "approved record risk exceeds threshold")
	case r.RejectionReason != "":
		return dErrors.New(dErrors.CodeInvariantViolation, "approved record cannot carry a rejection reason")
	}
	return nil
}

// NormalizeIDNumber canonicalizes an id number for comparison: trimmed,
// upper-cased and without inner whitespace.
func NormalizeIDNumber(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
