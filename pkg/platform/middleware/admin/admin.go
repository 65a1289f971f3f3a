package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "vendorkyc/pkg/domain-errors"
	"vendorkyc/pkg/platform/httputil"
	request "vendorkyc/pkg/platform/middleware/request"
	"vendorkyc/pkg/requestcontext"
)

// RequireAdminToken guards operational endpoints (manual job triggers) with a
// shared static token. Requests that pass run with actor "admin".
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, "admin")))
		})
	}
}
