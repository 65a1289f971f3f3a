// Package notify delivers the onboarding notifications. Delivery is best
// effort: callers log failures and carry on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"vendorkyc/internal/verification/ports"
)

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier maps template identifiers onto SendGrid dynamic templates.
type SendGridNotifier struct {
	client    mailClient
	from      *mail.Email
	templates map[string]string
	sandbox   bool
	logger    *slog.Logger
}

type Option func(*SendGridNotifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *SendGridNotifier) { n.logger = logger }
}

// WithSandbox asks SendGrid to validate messages without delivering them.
func WithSandbox(enabled bool) Option {
	return func(n *SendGridNotifier) { n.sandbox = enabled }
}

// NewSendGrid builds a notifier. templates maps ports.Template* identifiers to
// SendGrid template IDs.
func NewSendGrid(apiKey, fromAddress, fromName string, templates map[string]string, opts ...Option) *SendGridNotifier {
	n := &SendGridNotifier{
		client:    sendgrid.NewSendClient(apiKey),
		from:      mail.NewEmail(fromName, fromAddress),
		templates: templates,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *SendGridNotifier) Send(ctx context.Context, address, templateID string, vars map[string]string) error {
	tmpl, ok := n.templates[templateID]
	if !ok || tmpl == "" {
		return fmt.Errorf("notify: no sendgrid template for %q", templateID)
	}

	m := mail.NewV3Mail()
	m.SetFrom(n.from)
	m.SetTemplateID(tmpl)
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", address))
	for k, v := range vars {
		p.SetDynamicTemplateData(k, v)
	}
	m.AddPersonalizations(p)
	if n.sandbox {
		settings := mail.NewMailSettings()
		settings.SetSandboxMode(mail.NewSetting(true))
		m.SetMailSettings(settings)
	}

	resp, err := n.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notify: sendgrid status %d", resp.StatusCode)
	}
	n.logger.InfoContext(ctx, "notification sent",
		"template", templateID,
		"status", resp.StatusCode,
	)
	return nil
}

var _ ports.Notifier = (*SendGridNotifier)(nil)
