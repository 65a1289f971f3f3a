// Package httputil holds the JSON response and request decoding helpers
// shared by every HTTP handler.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "vendorkyc/pkg/domain-errors"
)

// maxBodyBytes bounds JSON request bodies. Multipart uploads set their own limit.
const maxBodyBytes = 1 << 20

const retryDescription = "verification is temporarily unavailable, please try again"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validatable is implemented by request types that check their own invariants
// after struct-tag validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that trim or canonicalize
// their fields before validation.
type Normalizable interface {
	Normalize()
}

// ErrorResponse is the JSON body for all error responses.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to an HTTP status and writes the error body. Descriptions
// of internal errors are never returned to the client.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	resp := ErrorResponse{Error: string(code)}
	switch {
	case dErrors.IsClientSafe(code):
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	case code == dErrors.CodeProviderUnavailable:
		resp.ErrorDescription = retryDescription
	}
	WriteJSON(w, status, resp)
}

// ValidateStruct runs struct-tag validation and converts the first failure
// into a validation error naming the offending field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return dErrors.New(dErrors.CodeValidation, strings.ToLower(fe.Field())+" failed "+fe.Tag()+" validation")
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
}

// DecodeAndPrepare decodes a JSON body into T, normalizes it, validates struct
// tags and then calls Validate when T implements Validatable. On failure the
// error response is already written and ok is false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return nil, false
	}

	if n, ok := any(&req).(Normalizable); ok {
		n.Normalize()
	}
	if err := ValidateStruct(&req); err != nil {
		WriteError(w, err)
		return nil, false
	}
	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err,
			)
			WriteError(w, err)
			return nil, false
		}
	}
	return &req, true
}
