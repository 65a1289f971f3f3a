// Package requesttime pins a single "now" for each HTTP request so audit
// timestamps and record timestamps written during the request agree.
package requesttime

import (
	"net/http"
	"time"

	"vendorkyc/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
