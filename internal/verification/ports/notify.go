package ports

import "context"

// Notification template identifiers.
const (
	TemplateTrialStarted    = "trial_started"
	TemplateTrialEndingSoon = "trial_ending_soon"
)

// Notifier dispatches templated messages. Failures are logged by callers and
// never block the verification pipeline.
type Notifier interface {
	Send(ctx context.Context, address, templateID string, vars map[string]string) error
}
