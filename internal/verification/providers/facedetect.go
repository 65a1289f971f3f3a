package providers

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"vendorkyc/internal/verification/ports"
)

// FaceDetectClient calls the face detection service used by liveness.
type FaceDetectClient struct {
	id     string
	client *resty.Client
}

func NewFaceDetectClient(baseURL, apiKey string, timeout time.Duration) *FaceDetectClient {
	return &FaceDetectClient{id: "face_detect", client: newHTTPClient(baseURL, apiKey, timeout)}
}

type faceDetectResponse struct {
	Faces []struct {
		Left       float64 `json:"left"`
		Top        float64 `json:"top"`
		Width      float64 `json:"width"`
		Height     float64 `json:"height"`
		Confidence float64 `json:"confidence"`
	} `json:"faces"`
}

func (c *FaceDetectClient) DetectFaces(ctx context.Context, image []byte) ([]ports.FaceBox, error) {
	var out faceDetectResponse
	if err := postJSON(ctx, c.client, c.id, "/v1/faces:detect", map[string]string{"image": encodeImage(image)}, &out); err != nil {
		return nil, err
	}
	boxes := make([]ports.FaceBox, 0, len(out.Faces))
	for _, f := range out.Faces {
		boxes = append(boxes, ports.FaceBox{
			Left:       f.Left,
			Top:        f.Top,
			Width:      f.Width,
			Height:     f.Height,
			Confidence: f.Confidence,
		})
	}
	return boxes, nil
}
