package objectstore

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gabriel-vasile/mimetype"

	dErrors "vendorkyc/pkg/domain-errors"
	"vendorkyc/pkg/platform/httputil"
	"vendorkyc/pkg/platform/sentinel"
)

// Handler serves objects behind signed URLs. Mount it at the base URL's path.
func (s *LocalStore) Handler(logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		data, err := s.Fetch(ctx, r.URL.String())
		switch {
		case err == nil:
		case errors.Is(err, sentinel.ErrExpired):
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "link expired"))
			return
		case errors.Is(err, sentinel.ErrNotFound):
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "object not found"))
			return
		default:
			logger.ErrorContext(ctx, "failed to serve object", "error", err)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read object"))
			return
		}
		w.Header().Set("Content-Type", mimetype.Detect(data).String())
		w.Header().Set("Cache-Control", "private, no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}
