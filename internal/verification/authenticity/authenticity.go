// Package authenticity scores whether uploaded document images look like a
// printed identity document, using text-structure detection as the signal.
package authenticity

import (
	"context"
	"log/slog"

	"vendorkyc/internal/verification/ports"
)

// DefaultMinConfidence is the mean line confidence a document must exceed.
const DefaultMinConfidence = 80.0

// Result is the checker output. Confidence is on the provider's 0..100 scale.
type Result struct {
	IsValid    bool           `json:"is_valid"`
	Confidence float64        `json:"confidence"`
	Signals    map[string]any `json:"signals"`
}

type Checker struct {
	store         ports.ObjectStore
	detector      ports.TextDetector
	minConfidence float64
	languageHint  string
	logger        *slog.Logger
}

type Option func(*Checker)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

func WithMinConfidence(min float64) Option {
	return func(c *Checker) { c.minConfidence = min }
}

func WithLanguageHint(hint string) Option {
	return func(c *Checker) { c.languageHint = hint }
}

func New(store ports.ObjectStore, detector ports.TextDetector, opts ...Option) *Checker {
	c := &Checker{
		store:         store,
		detector:      detector,
		minConfidence: DefaultMinConfidence,
		languageHint:  "en",
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check inspects the front and, when present, the back of the document.
// Any storage or provider error fails closed: IsValid=false, Confidence=0 and
// the error text under Signals["error"].
func (c *Checker) Check(ctx context.Context, frontRef, backRef string) Result {
	sides := []struct {
		name string
		ref  string
	}{{"front", frontRef}, {"back", backRef}}

	signals := map[string]any{"back_present": backRef != ""}
	var lines []ports.TextLine
	for _, side := range sides {
		if side.ref == "" {
			continue
		}
		n, err := c.detect(ctx, side.ref, &lines)
		if err != nil {
			c.logger.WarnContext(ctx, "authenticity check failed closed",
				"side", side.name,
				"error", err,
			)
			return Result{
				Signals: map[string]any{"error": err.Error(), "failed_side": side.name},
			}
		}
		signals[side.name+"_lines"] = n
	}

	mean := 0.0
	if len(lines) > 0 {
		var sum float64
		for _, l := range lines {
			sum += l.Confidence
		}
		mean = sum / float64(len(lines))
	}
	hasText := len(lines) > 0
	signals["has_printed_text"] = hasText
	signals["mean_line_confidence"] = mean

	return Result{
		IsValid:    hasText && mean > c.minConfidence,
		Confidence: mean,
		Signals:    signals,
	}
}

func (c *Checker) detect(ctx context.Context, ref string, into *[]ports.TextLine) (int, error) {
	img, err := c.store.Fetch(ctx, ref)
	if err != nil {
		return 0, err
	}
	det, err := c.detector.DetectText(ctx, img, c.languageHint)
	if err != nil {
		return 0, err
	}
	if det == nil {
		return 0, nil
	}
	*into = append(*into, det.Lines...)
	return len(det.Lines), nil
}
