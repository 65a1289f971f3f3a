package providers

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"vendorkyc/internal/verification/ports"
)

// OCRClient calls the text detection service.
type OCRClient struct {
	id     string
	client *resty.Client
}

func NewOCRClient(baseURL, apiKey string, timeout time.Duration) *OCRClient {
	return &OCRClient{id: "ocr", client: newHTTPClient(baseURL, apiKey, timeout)}
}

type ocrRequest struct {
	Image        string `json:"image"`
	LanguageHint string `json:"language_hint,omitempty"`
}

type ocrResponse struct {
	Text  string `json:"text"`
	Lines []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		Top        float64 `json:"top"`
		Type       string  `json:"type"`
	} `json:"lines"`
}

// DetectText returns printed text lines. Word-level detections are dropped;
// only LINE entries (or untyped entries) are kept.
func (c *OCRClient) DetectText(ctx context.Context, image []byte, languageHint string) (*ports.TextDetection, error) {
	var out ocrResponse
	if err := postJSON(ctx, c.client, c.id, "/v1/text:detect", ocrRequest{
		Image:        encodeImage(image),
		LanguageHint: languageHint,
	}, &out); err != nil {
		return nil, err
	}

	det := &ports.TextDetection{RawText: out.Text}
	var raw []string
	for _, l := range out.Lines {
		if l.Type != "" && !strings.EqualFold(l.Type, "LINE") {
			continue
		}
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		det.Lines = append(det.Lines, ports.TextLine{Text: text, Confidence: l.Confidence, Top: l.Top})
		raw = append(raw, text)
	}
	if det.RawText == "" {
		det.RawText = strings.Join(raw, "\n")
	}
	return det, nil
}
