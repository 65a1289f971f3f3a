package service

import (
	"errors"

	dErrors "vendorkyc/pkg/domain-errors"
	"vendorkyc/pkg/platform/sentinel"
)

const errTryAgain = "verification providers are unavailable, try again"

// translate maps store and lock sentinels onto domain codes. Errors that
// already carry a code pass through.
func translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrLocked):
		return dErrors.Wrap(err, dErrors.CodeConcurrentModification, "record was modified concurrently, retry the request")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, msg)
	case errors.Is(err, sentinel.ErrUnavailable), errors.Is(err, sentinel.ErrExpired):
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, errTryAgain)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
