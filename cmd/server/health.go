package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"vendorkyc/pkg/platform/httputil"
)

// dependencyCheck is one backend probed by /readyz.
type dependencyCheck struct {
	name  string
	check func(ctx context.Context) error
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// readyHandler probes every dependency concurrently and answers 503 when any
// of them fails. With no dependencies configured the service is always ready.
func readyHandler(checks []dependencyCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		results := make([]error, len(checks))
		var g errgroup.Group
		for i, c := range checks {
			g.Go(func() error {
				results[i] = c.check(ctx)
				return nil
			})
		}
		_ = g.Wait()

		resp := readiness{Status: "ready", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for i, c := range checks {
			if results[i] != nil {
				logger.WarnContext(ctx, "readiness check failed", "dependency", c.name, "error", results[i])
				resp.Checks[c.name] = "unavailable"
				resp.Status = "not_ready"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
