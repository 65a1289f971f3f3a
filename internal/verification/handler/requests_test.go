package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorkyc/internal/verification/models"
	dErrors "vendorkyc/pkg/domain-errors"
)

func TestSubmitRequestValidate(t *testing.T) {
	valid := func() SubmitRequest {
		return SubmitRequest{
			IDType:      " Passport ",
			IDNumber:    " G1234567 ",
			FullName:    "Kwame   Mensah",
			DateOfBirth: "1990-04-12",
		}
	}

	t.Run("normalized request converts to a submission", func(t *testing.T) {
		req := valid()
		req.Normalize()
		require.NoError(t, req.Validate())

		sub := req.ToSubmission()
		assert.Equal(t, models.IDTypePassport, sub.IDType)
		assert.Equal(t, "G1234567", sub.IDNumber)
		assert.Equal(t, "Kwame Mensah", sub.FullName)
		require.NotNil(t, sub.DateOfBirth)
		assert.Equal(t, time.April, sub.DateOfBirth.Month())
	})

	t.Run("unknown id type", func(t *testing.T) {
		req := valid()
		req.IDType = "library_card"
		req.Normalize()
		assert.Error(t, req.Validate())
	})

	t.Run("future birth date", func(t *testing.T) {
		req := valid()
		req.DateOfBirth = time.Now().AddDate(1, 0, 0).Format(dateLayout)
		req.Normalize()
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestProvisionAccountRequestNormalize(t *testing.T) {
	t.Run("display name derived from email", func(t *testing.T) {
		req := ProvisionAccountRequest{VendorID: "x", Email: " Ama.Owusu@Example.com "}
		req.Normalize()
		assert.Equal(t, "ama.owusu@example.com", req.Email)
		assert.Equal(t, "Ama Owusu", req.DisplayName)
	})

	t.Run("explicit display name kept", func(t *testing.T) {
		req := ProvisionAccountRequest{Email: "ama@example.com", DisplayName: " Ama's Shop "}
		req.Normalize()
		assert.Equal(t, "Ama's Shop", req.DisplayName)
	})
}
