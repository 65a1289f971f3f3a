// Package liveness runs passive checks on a selfie.
//
// The checks are passive only. They reject blurry, badly lit, distant or
// multi-face selfies but cannot detect a high quality printed photo or a
// screen held in front of the camera. Treat IsLive as "plausibly a live
// capture", never as proof of presence.
package liveness

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"vendorkyc/internal/verification/ports"
	"vendorkyc/internal/verification/providers"
)

// Confidence labels.
const (
	ConfidenceHigh = "high"
	ConfidenceLow  = "low"
)

// Check names reported in Result.Checks.
const (
	CheckSingleFace   = "single_face"
	CheckSharpness    = "sharpness"
	CheckBrightness   = "brightness"
	CheckFaceFraction = "face_fraction"
)

// highConfidenceFace is the detector confidence needed for a "high" label.
const highConfidenceFace = 90.0

// maxSampleSide bounds the grid used for the sharpness and brightness maths.
const maxSampleSide = 512

type Thresholds struct {
	BlurThreshold   float64
	MinBrightness   float64
	MaxBrightness   float64
	MinFaceFraction float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		BlurThreshold:   100,
		MinBrightness:   40,
		MaxBrightness:   220,
		MinFaceFraction: 0.1,
	}
}

type Result struct {
	IsLive     bool            `json:"is_live"`
	Confidence string          `json:"confidence"`
	Checks     map[string]bool `json:"checks"`
	Sharpness  float64         `json:"sharpness"`
	Brightness float64         `json:"brightness"`
	Error      string          `json:"error,omitempty"`
}

type Analyzer struct {
	store      ports.ObjectStore
	faces      ports.FaceDetector
	thresholds Thresholds
	logger     *slog.Logger
}

type Option func(*Analyzer)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

func WithThresholds(t Thresholds) Option {
	return func(a *Analyzer) { a.thresholds = t }
}

func New(store ports.ObjectStore, faces ports.FaceDetector, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:      store,
		faces:      faces,
		thresholds: DefaultThresholds(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Check runs the four checks on the selfie; IsLive is their conjunction.
// Storage and provider failures fail closed.
func (a *Analyzer) Check(ctx context.Context, selfieRef string) Result {
	res := Result{
		Confidence: ConfidenceLow,
		Checks: map[string]bool{
			CheckSingleFace:   false,
			CheckSharpness:    false,
			CheckBrightness:   false,
			CheckFaceFraction: false,
		},
	}

	data, err := a.store.Fetch(ctx, selfieRef)
	if err != nil {
		res.Error = err.Error()
		a.logger.WarnContext(ctx, "liveness selfie unavailable", "error", err)
		return res
	}

	faces, err := a.faces.DetectFaces(ctx, data)
	if err != nil && !errors.Is(err, providers.ErrNoFaceDetected) && providers.GetCategory(err) != providers.ErrorNoFace {
		res.Error = err.Error()
		a.logger.WarnContext(ctx, "liveness face detection failed", "error", err)
		return res
	}

	if len(faces) == 1 {
		res.Checks[CheckSingleFace] = true
		res.Checks[CheckFaceFraction] = faces[0].Area() >= a.thresholds.MinFaceFraction
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		res.Error = "selfie could not be decoded: " + err.Error()
	} else {
		gray := grayscale(img)
		res.Sharpness = laplacianVariance(gray)
		res.Brightness = gray.mean()
		res.Checks[CheckSharpness] = res.Sharpness >= a.thresholds.BlurThreshold
		res.Checks[CheckBrightness] = res.Brightness >= a.thresholds.MinBrightness &&
			res.Brightness <= a.thresholds.MaxBrightness
	}

	res.IsLive = true
	for _, ok := range res.Checks {
		res.IsLive = res.IsLive && ok
	}
	if res.IsLive && faces[0].Confidence >= highConfidenceFace {
		res.Confidence = ConfidenceHigh
	}
	return res
}

// grayGrid is a luminance raster on 0..255.
type grayGrid struct {
	w, h int
	px   []float64
}

func (g grayGrid) at(x, y int) float64 { return g.px[y*g.w+x] }

func (g grayGrid) mean() float64 {
	if len(g.px) == 0 {
		return 0
	}
	var sum float64
	for _, v := range g.px {
		sum += v
	}
	return sum / float64(len(g.px))
}

// grayscale samples img onto a grid no larger than maxSampleSide per side.
func grayscale(img image.Image) grayGrid {
	b := img.Bounds()
	step := 1
	for b.Dx()/step > maxSampleSide || b.Dy()/step > maxSampleSide {
		step++
	}
	g := grayGrid{w: b.Dx() / step, h: b.Dy() / step}
	g.px = make([]float64, 0, g.w*g.h)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			r, gr, bl, _ := img.At(b.Min.X+x*step, b.Min.Y+y*step).RGBA()
			// Rec. 601 luma, scaled from 16-bit channels
			l := (0.299*float64(r) + 0.587*float64(gr) + 0.114*float64(bl)) / 257
			g.px = append(g.px, l)
		}
	}
	return g
}

// laplacianVariance is the variance of the 4-neighbour Laplacian, a standard
// focus measure: blurred images have little high-frequency energy.
func laplacianVariance(g grayGrid) float64 {
	if g.w < 3 || g.h < 3 {
		return 0
	}
	var sum, sumSq float64
	n := 0
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			v := g.at(x-1, y) + g.at(x+1, y) + g.at(x, y-1) + g.at(x, y+1) - 4*g.at(x, y)
			sum += v
			sumSq += v * v
			n++
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}
