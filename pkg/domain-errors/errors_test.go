package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	base := New(CodeDuplicateIdentity, "id number already verified")
	wrapped := fmt.Errorf("submit: %w", base)

	assert.Equal(t, CodeDuplicateIdentity, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, CodeDuplicateIdentity))
	assert.True(t, Is(wrapped, CodeDuplicateIdentity))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeProviderUnavailable, "ocr unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ocr unavailable: connection refused", err.Error())
	assert.Equal(t, "ocr unavailable", New(CodeProviderUnavailable, "ocr unavailable").Error())
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:             http.StatusBadRequest,
		CodeValidation:             http.StatusBadRequest,
		CodeInvalidInput:           http.StatusBadRequest,
		CodeInvalidSubmission:      http.StatusUnprocessableEntity,
		CodeUnauthorized:           http.StatusUnauthorized,
		CodeForbidden:              http.StatusForbidden,
		CodeNotFound:               http.StatusNotFound,
		CodeConflict:               http.StatusConflict,
		CodeDuplicateIdentity:      http.StatusConflict,
		CodeConcurrentModification: http.StatusConflict,
		CodeTimeout:                http.StatusGatewayTimeout,
		CodeProviderUnavailable:    http.StatusServiceUnavailable,
		CodeInternal:               http.StatusInternalServerError,
		CodeInvariantViolation:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}

func TestIsClientSafe(t *testing.T) {
	for _, code := range []Code{CodeInternal, CodeInvariantViolation, CodeProviderUnavailable, CodeTimeout} {
		assert.False(t, IsClientSafe(code), string(code))
	}
	for _, code := range []Code{CodeValidation, CodeDuplicateIdentity, CodeInvalidSubmission, CodeNotFound} {
		assert.True(t, IsClientSafe(code), string(code))
	}
}
