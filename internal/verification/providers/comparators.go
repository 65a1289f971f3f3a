package providers

import (
	"context"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
)

// EmbeddingComparator requests a face embedding for each image and scores the
// pair locally by cosine similarity. Negative similarity counts as 0.
type EmbeddingComparator struct {
	client *resty.Client
}

func NewEmbeddingComparator(baseURL, apiKey string, timeout time.Duration) *EmbeddingComparator {
	return &EmbeddingComparator{client: newHTTPClient(baseURL, apiKey, timeout)}
}

func (c *EmbeddingComparator) Name() string { return "embedding" }

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (c *EmbeddingComparator) Compare(ctx context.Context, idPhoto, selfie []byte) (float64, error) {
	a, err := c.embed(ctx, idPhoto)
	if err != nil {
		return 0, err
	}
	b, err := c.embed(ctx, selfie)
	if err != nil {
		return 0, err
	}
	sim, ok := cosine(a, b)
	if !ok {
		return 0, NewProviderError(ErrorContractMismatch, c.Name(), "embedding dimensions differ or are empty", nil)
	}
	return clamp01(sim), nil
}

func (c *EmbeddingComparator) embed(ctx context.Context, image []byte) ([]float64, error) {
	var out embeddingResponse
	if err := postJSON(ctx, c.client, c.Name(), "/v1/embed", map[string]string{"image": encodeImage(image)}, &out); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

func cosine(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// DeepVerifyComparator calls a face verification model that reports a cosine
// distance. Similarity is 1 - distance.
type DeepVerifyComparator struct {
	client *resty.Client
}

func NewDeepVerifyComparator(baseURL, apiKey string, timeout time.Duration) *DeepVerifyComparator {
	return &DeepVerifyComparator{client: newHTTPClient(baseURL, apiKey, timeout)}
}

func (c *DeepVerifyComparator) Name() string { return "deep_verify" }

type deepVerifyResponse struct {
	Verified bool     `json:"verified"`
	Distance *float64 `json:"distance"`
}

func (c *DeepVerifyComparator) Compare(ctx context.Context, idPhoto, selfie []byte) (float64, error) {
	var out deepVerifyResponse
	if err := postJSON(ctx, c.client, c.Name(), "/verify", map[string]string{
		"img1": encodeImage(idPhoto),
		"img2": encodeImage(selfie),
	}, &out); err != nil {
		return 0, err
	}
	if out.Distance == nil {
		return 0, NewProviderError(ErrorContractMismatch, c.Name(), "response missing distance", nil)
	}
	return clamp01(1 - *out.Distance), nil
}

// CloudCompareComparator calls a hosted face comparison API that reports
// similarity on a 0..100 scale. No matching face scores 0.
type CloudCompareComparator struct {
	client *resty.Client
}

func NewCloudCompareComparator(baseURL, apiKey string, timeout time.Duration) *CloudCompareComparator {
	return &CloudCompareComparator{client: newHTTPClient(baseURL, apiKey, timeout)}
}

func (c *CloudCompareComparator) Name() string { return "cloud_compare" }

type cloudCompareRequest struct {
	SourceImage         string  `json:"source_image"`
	TargetImage         string  `json:"target_image"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

type cloudCompareResponse struct {
	SourceFaceFound *bool `json:"source_face_found"`
	FaceMatches     []struct {
		Similarity float64 `json:"similarity"`
	} `json:"face_matches"`
}

func (c *CloudCompareComparator) Compare(ctx context.Context, idPhoto, selfie []byte) (float64, error) {
	var out cloudCompareResponse
	if err := postJSON(ctx, c.client, c.Name(), "/v1/faces:compare", cloudCompareRequest{
		SourceImage: encodeImage(idPhoto),
		TargetImage: encodeImage(selfie),
	}, &out); err != nil {
		return 0, err
	}
	if out.SourceFaceFound != nil && !*out.SourceFaceFound {
		return 0, NewProviderError(ErrorNoFace, c.Name(), "no face on document", ErrNoFaceDetected)
	}
	best := 0.0
	for _, m := range out.FaceMatches {
		best = math.Max(best, m.Similarity)
	}
	return clamp01(best / 100), nil
}
