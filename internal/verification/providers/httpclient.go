package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// newHTTPClient builds a resty client for one provider. Resty retries are left
// at zero; the pipeline never retries provider calls on its own.
func newHTTPClient(baseURL, apiKey string, timeout time.Duration) *resty.Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return c
}

// errorBody is the error envelope the recognition services return.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// postJSON sends body to path and decodes a 2xx JSON response into out.
// Failures come back as *ProviderError.
func postJSON(ctx context.Context, c *resty.Client, providerID, path string, body, out any) error {
	resp, err := c.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return TransportError(providerID, err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		var eb errorBody
		if json.Unmarshal(resp.Body(), &eb) == nil && eb.Code == "no_face" {
			return NewProviderError(ErrorNoFace, providerID, "no face detected", ErrNoFaceDetected)
		}
		return StatusError(providerID, resp.StatusCode(), resp.String())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return NewProviderError(ErrorContractMismatch, providerID, "decode response", err)
	}
	return nil
}

func encodeImage(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
