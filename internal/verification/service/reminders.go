package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"vendorkyc/internal/verification/ports"
	"vendorkyc/pkg/requestcontext"
)

// SendTrialReminders sends one trial_ending_soon message to every account
// whose promotion ends within the lead time. A failed send leaves the
// reminder flag unset so the next run retries it.
func (s *Service) SendTrialReminders(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	accounts, err := s.deps.Accounts.ListTrialsEnding(ctx, now, s.cfg.ReminderLeadTime)
	if err != nil {
		return 0, translate(err, "failed to list ending trials")
	}

	sent := 0
	for _, a := range accounts {
		err := s.deps.Notifier.Send(ctx, a.Email, ports.TemplateTrialEndingSoon, map[string]string{
			"display_name": a.DisplayName,
			"tier":         a.Tier,
			"expires_at":   a.PromotionalExpiresAt.Format("2 January 2006"),
		})
		if err != nil {
			s.logger.WarnContext(ctx, "trial reminder failed",
				"account_id", a.ID,
				"error", err,
			)
			continue
		}
		if err := s.deps.Accounts.MarkReminderSent(ctx, a.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark reminder sent",
				"account_id", a.ID,
				"error", err,
			)
			continue
		}
		s.metrics.IncReminderSent()
		sent++
	}
	s.logger.InfoContext(ctx, "trial reminders processed",
		"candidates", len(accounts),
		"sent", sent,
	)
	return sent, nil
}

// ReminderScheduler runs SendTrialReminders on a cron schedule.
type ReminderScheduler struct {
	cron *cron.Cron
}

func NewReminderScheduler(svc *Service, schedule string, logger *slog.Logger) (*ReminderScheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx := requestcontext.WithActor(context.Background(), "scheduler")
		if _, err := svc.SendTrialReminders(ctx); err != nil {
			logger.ErrorContext(ctx, "trial reminder run failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	return &ReminderScheduler{cron: c}, nil
}

func (r *ReminderScheduler) Start() {
	r.cron.Start()
}

// Stop waits for a running job to finish or ctx to end.
func (r *ReminderScheduler) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
