package notify

import (
	"context"
	"log/slog"
)

// LogNotifier records notifications in the log instead of sending them. It is
// used when no SendGrid key is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, _ string, templateID string, vars map[string]string) error {
	n.logger.InfoContext(ctx, "notification (log only)",
		"template", templateID,
		"vars", len(vars),
	)
	return nil
}
