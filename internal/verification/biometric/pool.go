// Package biometric fans a document photo and a selfie out to every
// configured face comparator and averages whatever scores come back.
package biometric

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vendorkyc/internal/verification/metrics"
	"vendorkyc/internal/verification/ports"
	"vendorkyc/internal/verification/providers"
	"vendorkyc/pkg/platform/circuit"
)

const (
	DefaultThreshold = 0.75
	DefaultTimeout   = 12 * time.Second

	// A comparator failing this many times in a row is skipped until a probe
	// succeeds.
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30 * time.Second
)

// Kind classifies a pool result for the risk engine.
type Kind string

const (
	KindComplete    Kind = "complete"
	KindDegraded    Kind = "degraded"
	KindHardFailure Kind = "hard_failure"
	// KindNoFace means every comparator that answered found no face in one
	// of the images. It is a verdict on the applicant, not an outage.
	KindNoFace Kind = "no_face"
)

// Result is the pool output. PerMethodScores holds only the methods that
// answered; Errors holds the rest keyed by method name.
type Result struct {
	AggregateScore  float64            `json:"aggregate_score"`
	IsMatch         bool               `json:"is_match"`
	PerMethodScores map[string]float64 `json:"per_method_scores"`
	Degraded        bool               `json:"degraded"`
	NoComparator    bool               `json:"no_comparator"`
	NoFace          bool               `json:"no_face"`
	Kind            Kind               `json:"kind"`
	Errors          map[string]string  `json:"errors,omitempty"`
}

type Pool struct {
	registry  *providers.ComparatorRegistry
	store     ports.ObjectStore
	threshold float64
	timeout   time.Duration
	breakers  map[string]*circuit.Breaker
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	breakerFailures int
	breakerCooldown time.Duration
}

type Option func(*Pool)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

func WithThreshold(threshold float64) Option {
	return func(p *Pool) { p.threshold = threshold }
}

// WithTimeout sets the per-method timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Pool) { p.timeout = d }
}

// WithBreaker tunes the per-comparator circuit breakers.
func WithBreaker(failures int, cooldown time.Duration) Option {
	return func(p *Pool) {
		p.breakerFailures = failures
		p.breakerCooldown = cooldown
	}
}

// New builds a pool over the registry. A registry without comparators is a
// startup error.
func New(registry *providers.ComparatorRegistry, store ports.ObjectStore, opts ...Option) (*Pool, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, providers.ErrNoComparators
	}
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	p := &Pool{
		registry:  registry,
		store:     store,
		threshold: DefaultThreshold,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
		tracer:    otel.Tracer("vendorkyc/verification/biometric"),

		breakerFailures: DefaultBreakerFailures,
		breakerCooldown: DefaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.breakers = make(map[string]*circuit.Breaker, registry.Len())
	for _, c := range registry.All() {
		p.breakers[c.Name()] = circuit.New(c.Name(),
			circuit.WithFailureThreshold(p.breakerFailures),
			circuit.WithSuccessThreshold(1),
			circuit.WithCooldown(p.breakerCooldown),
		)
	}
	return p, nil
}

type methodResult struct {
	name  string
	score float64
	err   error
}

// Compare runs every comparator concurrently. Each method gets its own
// timeout and is abandoned when it expires, so a provider that ignores ctx
// cannot hold the pool past that bound.
func (p *Pool) Compare(ctx context.Context, idPhotoRef, selfieRef string) Result {
	ctx, span := p.tracer.Start(ctx, "biometric.compare")
	defer span.End()

	idPhoto, err := p.store.Fetch(ctx, idPhotoRef)
	if err != nil {
		return p.hardFailure(ctx, span, map[string]string{"fetch_id_photo": err.Error()})
	}
	selfie, err := p.store.Fetch(ctx, selfieRef)
	if err != nil {
		return p.hardFailure(ctx, span, map[string]string{"fetch_selfie": err.Error()})
	}

	comparators := p.registry.All()
	results := make(chan methodResult, len(comparators))
	for _, c := range comparators {
		if b := p.breakers[c.Name()]; b != nil && !b.Allow() {
			p.metrics.ObserveComparator(c.Name(), "skipped", 0)
			results <- methodResult{
				name: c.Name(),
				err:  providers.NewProviderError(providers.ErrorProviderOutage, c.Name(), "circuit open", nil),
			}
			continue
		}
		go func(c providers.FaceComparator) {
			results <- p.runMethod(ctx, c, bytes.Clone(idPhoto), bytes.Clone(selfie))
		}(c)
	}

	scores := make(map[string]float64, len(comparators))
	failures := make(map[string]string)
	faceless := 0
	for range comparators {
		r := <-results
		if r.err != nil {
			failures[r.name] = r.err.Error()
			if isNoFace(r.err) {
				faceless++
			}
			continue
		}
		scores[r.name] = r.score
	}

	if len(scores) == 0 {
		if faceless > 0 && faceless == len(failures) {
			return p.noFace(ctx, span, failures)
		}
		return p.hardFailure(ctx, span, failures)
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	res := Result{
		AggregateScore:  sum / float64(len(scores)),
		PerMethodScores: scores,
		Kind:            KindComplete,
	}
	res.IsMatch = res.AggregateScore >= p.threshold
	if len(failures) > 0 {
		res.Degraded = true
		res.Kind = KindDegraded
		res.Errors = failures
		p.logger.WarnContext(ctx, "biometric pool degraded",
			"answered", len(scores),
			"failed", len(failures),
		)
	}
	span.SetAttributes(
		attribute.Float64("biometric.aggregate", res.AggregateScore),
		attribute.Bool("biometric.match", res.IsMatch),
		attribute.Bool("biometric.degraded", res.Degraded),
	)
	return res
}

func (p *Pool) runMethod(ctx context.Context, c providers.FaceComparator, idPhoto, selfie []byte) methodResult {
	name := c.Name()
	ctx, span := p.tracer.Start(ctx, "biometric.comparator", trace.WithAttributes(attribute.String("method", name)))
	defer span.End()

	mctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan methodResult, 1)
	go func() {
		score, err := c.Compare(mctx, idPhoto, selfie)
		done <- methodResult{name: name, score: score, err: err}
	}()

	var r methodResult
	select {
	case r = <-done:
	case <-mctx.Done():
		r = methodResult{
			name: name,
			err:  providers.NewProviderError(providers.ErrorTimeout, name, "comparator did not answer in time", mctx.Err()),
		}
	}
	if r.err == nil && (math.IsNaN(r.score) || r.score < 0 || r.score > 1) {
		r.err = providers.NewProviderError(providers.ErrorContractMismatch, name,
			fmt.Sprintf("score %v outside 0..1", r.score), nil)
	}

	outcome := "ok"
	if r.err != nil {
		outcome = "error"
		if providers.GetCategory(r.err) == providers.ErrorTimeout {
			outcome = "timeout"
		}
		span.SetStatus(codes.Error, string(providers.GetCategory(r.err)))
	}
	p.metrics.ObserveComparator(name, outcome, time.Since(start))
	p.recordOutcome(ctx, name, r.err)
	return r
}

// recordOutcome feeds the comparator's breaker. Input problems such as a
// missing face say nothing about the provider's health and are not counted.
func (p *Pool) recordOutcome(ctx context.Context, name string, err error) {
	b := p.breakers[name]
	if b == nil {
		return
	}
	if err == nil {
		if _, change := b.RecordSuccess(); change.Closed {
			p.logger.InfoContext(ctx, "comparator circuit closed", "method", name)
		}
		return
	}
	if isNoFace(err) || providers.GetCategory(err) == providers.ErrorBadData {
		return
	}
	if _, change := b.RecordFailure(); change.Opened {
		p.logger.WarnContext(ctx, "comparator circuit opened", "method", name, "error", err)
	}
}

func isNoFace(err error) bool {
	return errors.Is(err, providers.ErrNoFaceDetected) || providers.GetCategory(err) == providers.ErrorNoFace
}

// noFace is a non-match: the images were compared and one of them has no
// face, so retrying the same images cannot change the answer.
func (p *Pool) noFace(ctx context.Context, span trace.Span, failures map[string]string) Result {
	p.logger.InfoContext(ctx, "no face detected by any comparator", "errors", failures)
	span.SetAttributes(attribute.Bool("biometric.no_face", true))
	return Result{
		PerMethodScores: map[string]float64{},
		NoFace:          true,
		Kind:            KindNoFace,
		Errors:          failures,
	}
}

func (p *Pool) hardFailure(ctx context.Context, span trace.Span, failures map[string]string) Result {
	p.logger.ErrorContext(ctx, "no biometric comparator available", "errors", failures)
	span.SetStatus(codes.Error, "no comparator available")
	return Result{
		PerMethodScores: map[string]float64{},
		NoComparator:    true,
		Kind:            KindHardFailure,
		Errors:          failures,
	}
}
