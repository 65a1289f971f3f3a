package liveness

//go:generate mockgen -source=../ports/recognition.go -destination=../ports/mocks/recognition_mocks.go -package=mocks

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vendorkyc/internal/verification/ports"
	"vendorkyc/internal/verification/ports/mocks"
	"vendorkyc/internal/verification/providers"
)

// checker renders a one-pixel checkerboard alternating between lo and hi.
func checker(t *testing.T, lo, hi uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := lo
			if (x+y)%2 == 0 {
				v = hi
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func face(size, conf float64) ports.FaceBox {
	return ports.FaceBox{Left: 0.3, Top: 0.2, Width: size, Height: size, Confidence: conf}
}

type AnalyzerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	store    *mocks.MockObjectStore
	faces    *mocks.MockFaceDetector
	analyzer *Analyzer
}

func TestAnalyzerSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerSuite))
}

func (s *AnalyzerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockObjectStore(s.ctrl)
	s.faces = mocks.NewMockFaceDetector(s.ctrl)
	s.analyzer = New(s.store, s.faces, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *AnalyzerSuite) run(img []byte, boxes []ports.FaceBox, detectErr error) Result {
	s.store.EXPECT().Fetch(gomock.Any(), "selfie").Return(img, nil)
	s.faces.EXPECT().DetectFaces(gomock.Any(), img).Return(boxes, detectErr)
	return s.analyzer.Check(context.Background(), "selfie")
}

func (s *AnalyzerSuite) TestCheck() {
	sharp := checker(s.T(), 40, 215)

	s.Run("clear single face is live with high confidence", func() {
		res := s.run(sharp, []ports.FaceBox{face(0.4, 97)}, nil)
		s.True(res.IsLive)
		s.Equal(ConfidenceHigh, res.Confidence)
		s.InDelta(127.5, res.Brightness, 0.5)
		s.Greater(res.Sharpness, 100.0)
	})

	s.Run("weak detector confidence lowers the label only", func() {
		res := s.run(sharp, []ports.FaceBox{face(0.4, 80)}, nil)
		s.True(res.IsLive)
		s.Equal(ConfidenceLow, res.Confidence)
	})

	s.Run("two faces fail", func() {
		res := s.run(sharp, []ports.FaceBox{face(0.4, 97), face(0.3, 90)}, nil)
		s.False(res.IsLive)
		s.False(res.Checks[CheckSingleFace])
	})

	s.Run("distant face fails", func() {
		res := s.run(sharp, []ports.FaceBox{face(0.2, 97)}, nil)
		s.False(res.IsLive)
		s.True(res.Checks[CheckSingleFace])
		s.False(res.Checks[CheckFaceFraction])
	})

	s.Run("flat image fails sharpness", func() {
		res := s.run(checker(s.T(), 128, 128), []ports.FaceBox{face(0.4, 97)}, nil)
		s.False(res.IsLive)
		s.False(res.Checks[CheckSharpness])
		s.True(res.Checks[CheckBrightness])
	})

	s.Run("dark image fails brightness", func() {
		res := s.run(checker(s.T(), 0, 60), []ports.FaceBox{face(0.4, 97)}, nil)
		s.False(res.IsLive)
		s.True(res.Checks[CheckSharpness])
		s.False(res.Checks[CheckBrightness])
	})

	s.Run("no face reported by provider", func() {
		noFace := providers.NewProviderError(providers.ErrorNoFace, "face_detect", "no face", nil)
		res := s.run(sharp, nil, noFace)
		s.False(res.IsLive)
		s.False(res.Checks[CheckSingleFace])
		s.Empty(res.Error)
	})

	s.Run("detector outage fails closed", func() {
		res := s.run(sharp, nil, errors.New("connection refused"))
		s.False(res.IsLive)
		s.Equal("connection refused", res.Error)
	})

	s.Run("undecodable selfie fails", func() {
		res := s.run([]byte("not an image"), []ports.FaceBox{face(0.4, 97)}, nil)
		s.False(res.IsLive)
		s.False(res.Checks[CheckSharpness])
		s.NotEmpty(res.Error)
	})
}
