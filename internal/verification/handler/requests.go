package handler

import (
	"strings"
	"time"

	"vendorkyc/internal/verification/models"
	id "vendorkyc/pkg/domain"
	dErrors "vendorkyc/pkg/domain-errors"
	"vendorkyc/pkg/email"
)

const dateLayout = "2006-01-02"

// SubmitRequest is the vendor's confirmation of the extracted fields.
type SubmitRequest struct {
	IDType      string `json:"id_type" validate:"required"`
	IDNumber    string `json:"id_number" validate:"required,max=64"`
	FullName    string `json:"full_name" validate:"required,max=200"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
}

func (r *SubmitRequest) Normalize() {
	r.IDType = strings.ToLower(strings.TrimSpace(r.IDType))
	r.IDNumber = strings.TrimSpace(r.IDNumber)
	r.FullName = strings.Join(strings.Fields(r.FullName), " ")
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
}

func (r *SubmitRequest) Validate() error {
	if _, err := models.ParseIDType(r.IDType); err != nil {
		return err
	}
	dob, err := time.Parse(dateLayout, r.DateOfBirth)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "date_of_birth must be YYYY-MM-DD")
	}
	if dob.After(time.Now()) {
		return dErrors.New(dErrors.CodeValidation, "date_of_birth is in the future")
	}
	return nil
}

// ToSubmission must only be called after Validate succeeded.
func (r *SubmitRequest) ToSubmission() models.Submission {
	dob, _ := time.Parse(dateLayout, r.DateOfBirth)
	return models.Submission{
		IDType:      models.IDType(r.IDType),
		IDNumber:    r.IDNumber,
		FullName:    r.FullName,
		DateOfBirth: &dob,
	}
}

type OverrideRequest struct {
	Action string `json:"action" validate:"required,oneof=annotate reject"`
	Note   string `json:"note" validate:"max=2000"`
}

func (r *OverrideRequest) Normalize() {
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	r.Note = strings.TrimSpace(r.Note)
}

// ProvisionAccountRequest registers the vendor account the pipeline upgrades
// on approval.
type ProvisionAccountRequest struct {
	VendorID    string `json:"vendor_id" validate:"required,uuid"`
	Email       string `json:"email" validate:"required,email,max=254"`
	DisplayName string `json:"display_name" validate:"max=200"`
}

func (r *ProvisionAccountRequest) Normalize() {
	r.VendorID = strings.TrimSpace(r.VendorID)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	if r.DisplayName == "" && r.Email != "" {
		r.DisplayName = email.DisplayName(r.Email)
	}
}

func (r *ProvisionAccountRequest) ToAccount() (*models.Account, error) {
	vendorID, err := id.ParseVendorID(r.VendorID)
	if err != nil {
		return nil, err
	}
	return &models.Account{ID: vendorID, Email: r.Email, DisplayName: r.DisplayName}, nil
}

type ReminderRunResponse struct {
	Sent int `json:"sent"`
}
