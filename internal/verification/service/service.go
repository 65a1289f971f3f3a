// Package service orchestrates an identity verification attempt from the
// first upload to the final decision and its account side effects.
//
// Every state change is written together with its audit entry in one unit of
// work (ports.TxRunner). Provider outages never produce a rejection: the
// record stays processing and the caller is told to try again.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"vendorkyc/internal/verification/authenticity"
	"vendorkyc/internal/verification/biometric"
	"vendorkyc/internal/verification/extraction"
	"vendorkyc/internal/verification/idlock"
	"vendorkyc/internal/verification/liveness"
	"vendorkyc/internal/verification/metrics"
	"vendorkyc/internal/verification/ports"
	id "vendorkyc/pkg/domain"
	audit "vendorkyc/pkg/platform/audit"
)

type Extractor interface {
	Extract(ctx context.Context, imageRef string) (extraction.Extraction, error)
}

type AuthenticityChecker interface {
	Check(ctx context.Context, frontRef, backRef string) authenticity.Result
}

type FaceMatcher interface {
	Compare(ctx context.Context, idPhotoRef, selfieRef string) biometric.Result
}

type LivenessChecker interface {
	Check(ctx context.Context, selfieRef string) liveness.Result
}

type DuplicateGuard interface {
	CheckDuplicate(ctx context.Context, idNumber string, vendorID id.VendorID) error
}

// AuditPublisher persists audit entries fail-closed. Emit joins the ambient
// transaction in ctx.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
	List(ctx context.Context, recordID id.RecordID) ([]audit.Entry, error)
}

// Deps are the collaborators of the Service. All are required.
type Deps struct {
	Records      ports.RecordStore
	Accounts     ports.AccountStore
	Provisioner  ports.AccountProvisioner
	Objects      ports.ObjectStore
	Tx           ports.TxRunner
	Locker       idlock.Locker
	Audit        AuditPublisher
	Notifier     ports.Notifier
	Extractor    Extractor
	Authenticity AuthenticityChecker
	Biometric    FaceMatcher
	Liveness     LivenessChecker
	Duplicates   DuplicateGuard
}

// Config holds the decision policy.
type Config struct {
	ApprovalThreshold float64
	OuterDeadline     time.Duration
	PromotionalTier   string
	PromotionalPeriod time.Duration
	// URLRefreshWindow re-signs image URLs that expire within this window
	// before processing starts.
	URLRefreshWindow time.Duration
	ReminderLeadTime time.Duration
}

func DefaultConfig() Config {
	return Config{
		ApprovalThreshold: 0.5,
		OuterDeadline:     30 * time.Second,
		PromotionalTier:   "premium_trial",
		PromotionalPeriod: 30 * 24 * time.Hour,
		URLRefreshWindow:  time.Hour,
		ReminderLeadTime:  48 * time.Hour,
	}
}

type Service struct {
	deps    Deps
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(deps Deps, cfg Config, opts ...Option) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &Service{
		deps:   deps,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer("vendorkyc/verification/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (d Deps) validate() error {
	var errs []error
	check := func(ok bool, name string) {
		if !ok {
			errs = append(errs, errors.New("service: missing dependency "+name))
		}
	}
	check(d.Records != nil, "Records")
	check(d.Accounts != nil, "Accounts")
	check(d.Provisioner != nil, "Provisioner")
	check(d.Objects != nil, "Objects")
	check(d.Tx != nil, "Tx")
	check(d.Locker != nil, "Locker")
	check(d.Audit != nil, "Audit")
	check(d.Notifier != nil, "Notifier")
	check(d.Extractor != nil, "Extractor")
	check(d.Authenticity != nil, "Authenticity")
	check(d.Biometric != nil, "Biometric")
	check(d.Liveness != nil, "Liveness")
	check(d.Duplicates != nil, "Duplicates")
	return errors.Join(errs...)
}
