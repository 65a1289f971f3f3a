package models

import (
	"strings"
	"time"

	dErrors "vendorkyc/pkg/domain-errors"
)

// IDType is the kind of government document submitted.
type IDType string

const (
	IDTypeNationalCard  IDType = "national_card"
	IDTypePassport      IDType = "passport"
	IDTypeDriverLicense IDType = "driver_license"
	IDTypeVoterID       IDType = "voter_id"
)

func (t IDType) IsValid() bool {
	switch t {
	case IDTypeNationalCard, IDTypePassport, IDTypeDriverLicense, IDTypeVoterID:
		return true
	}
	return false
}

func ParseIDType(s string) (IDType, error) {
	t := IDType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "id_type must be one of national_card, passport, driver_license, voter_id")
	}
	return t, nil
}

// RecordStatus is the verification state of an IdentityRecord.
type RecordStatus string

const (
	StatusPending    RecordStatus = "pending"
	StatusProcessing RecordStatus = "processing"
	StatusApproved   RecordStatus = "approved"
	StatusRejected   RecordStatus = "rejected"
)

func (s RecordStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo reports whether the state machine allows s → next.
func (s RecordStatus) CanTransitionTo(next RecordStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusApproved || next == StatusRejected
	default:
		return false
	}
}

type FaceMatchStatus string

const (
	FaceMatchPending  FaceMatchStatus = "pending"
	FaceMatchVerified FaceMatchStatus = "verified"
	FaceMatchFailed   FaceMatchStatus = "failed"
)

// ImageKind names one of the images a vendor uploads.
type ImageKind string

const (
	ImageFront  ImageKind = "front"
	ImageBack   ImageKind = "back"
	ImageSelfie ImageKind = "selfie"
)

func ParseImageKind(s string) (ImageKind, error) {
	k := ImageKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case ImageFront, ImageBack, ImageSelfie:
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "kind must be one of front, back, selfie")
}

// Purpose is the storage purpose label for the object store.
func (k ImageKind) Purpose() string {
	if k == ImageSelfie {
		return "kyc_selfie"
	}
	return "kyc_document_" + string(k)
}

// UploadRequest carries one image upload.
type UploadRequest struct {
	Kind        ImageKind
	Data        []byte
	ContentType string
}

// Submission holds the fields the vendor confirmed after reviewing the
// extraction suggestion.
type Submission struct {
	IDType      IDType
	IDNumber    string
	FullName    string
	DateOfBirth *time.Time
}

// Validate checks the submitted fields. Image presence is checked against the
// record by ApplySubmission.
func (s Submission) Validate() error {
	if !s.IDType.IsValid() {
		return dErrors.New(dErrors.CodeInvalidSubmission, "id_type is required")
	}
	if NormalizeIDNumber(s.IDNumber) == "" {
		return dErrors.New(dErrors.CodeInvalidSubmission, "id_number is required")
	}
	if strings.TrimSpace(s.FullName) == "" {
		return dErrors.New(dErrors.CodeInvalidSubmission, "full_name is required")
	}
	if s.DateOfBirth == nil {
		return dErrors.New(dErrors.CodeInvalidSubmission, "date_of_birth is required")
	}
	return nil
}

// OverrideAction is what a reviewer does to a record.
type OverrideAction string

const (
	OverrideAnnotate OverrideAction = "annotate"
	OverrideReject   OverrideAction = "reject"
)

// Override is a manual reviewer action.
type Override struct {
	Reviewer string
	Action   OverrideAction
	Note     string
}

func (o Override) Validate() error {
	if strings.TrimSpace(o.Reviewer) == "" {
		return dErrors.New(dErrors.CodeValidation, "reviewer is required")
	}
	switch o.Action {
	case OverrideAnnotate:
	case OverrideReject:
		if strings.TrimSpace(o.Note) == "" {
			return dErrors.New(dErrors.CodeValidation, "note is required when rejecting")
		}
	default:
		return dErrors.New(dErrors.CodeValidation, "action must be annotate or reject")
	}
	return nil
}
