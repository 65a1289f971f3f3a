package ports

import "context"

// TextLine is one line of machine-printed text found in an image.
// Confidence is on the provider's 0..100 scale; Top is the line's vertical
// position as a fraction of image height (0 = top edge).
type TextLine struct {
	Text       string
	Confidence float64
	Top        float64
}

// TextDetection is the raw OCR output. The provider guarantees no schema for
// structured fields; all parsing happens in the extraction adapter.
type TextDetection struct {
	RawText string
	Lines   []TextLine
}

// TextDetector runs OCR / text-structure detection on an image.
type TextDetector interface {
	DetectText(ctx context.Context, image []byte, languageHint string) (*TextDetection, error)
}

// FaceBox is a detected face. Geometry is expressed as fractions of the
// image dimensions; Confidence is 0..100.
type FaceBox struct {
	Left       float64
	Top        float64
	Width      float64
	Height     float64
	Confidence float64
}

// Area returns the fraction of the frame covered by the box.
func (b FaceBox) Area() float64 {
	return b.Width * b.Height
}

// FaceDetector locates faces in an image.
type FaceDetector interface {
	DetectFaces(ctx context.Context, image []byte) ([]FaceBox, error)
}
