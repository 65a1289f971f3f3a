package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOCRClient(t *testing.T) {
	t.Run("keeps line entries only", func(t *testing.T) {
		srv := jsonServer(t, http.StatusOK, map[string]any{
			"lines": []map[string]any{
				{"text": "REPUBLIC OF GHANA", "confidence": 98.5, "top": 0.05, "type": "LINE"},
				{"text": "GHANA", "confidence": 99.1, "top": 0.05, "type": "WORD"},
				{"text": "  ", "confidence": 50, "top": 0.2},
				{"text": "KWAME MENSAH", "confidence": 93, "top": 0.2},
			},
		})
		det, err := NewOCRClient(srv.URL, "", time.Second).DetectText(context.Background(), []byte("img"), "en")
		require.NoError(t, err)
		require.Len(t, det.Lines, 2)
		assert.Equal(t, "REPUBLIC OF GHANA\nKWAME MENSAH", det.RawText)
	})

	t.Run("server error is an outage", func(t *testing.T) {
		srv := jsonServer(t, http.StatusBadGateway, map[string]string{"message": "upstream"})
		_, err := NewOCRClient(srv.URL, "", time.Second).DetectText(context.Background(), []byte("img"), "en")
		require.Error(t, err)
		assert.Equal(t, ErrorProviderOutage, GetCategory(err))
		assert.True(t, IsRetryable(err))
	})

	t.Run("garbage body is a contract mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}))
		defer srv.Close()
		_, err := NewOCRClient(srv.URL, "", time.Second).DetectText(context.Background(), []byte("img"), "en")
		assert.Equal(t, ErrorContractMismatch, GetCategory(err))
	})
}

func TestComparatorNormalization(t *testing.T) {
	t.Run("cloud compare scales 0..100", func(t *testing.T) {
		srv := jsonServer(t, http.StatusOK, map[string]any{
			"source_face_found": true,
			"face_matches":      []map[string]any{{"similarity": 72.0}, {"similarity": 91.0}},
		})
		score, err := NewCloudCompareComparator(srv.URL, "k", time.Second).Compare(context.Background(), []byte("a"), []byte("b"))
		require.NoError(t, err)
		assert.InDelta(t, 0.91, score, 1e-9)
	})

	t.Run("cloud compare without source face", func(t *testing.T) {
		srv := jsonServer(t, http.StatusOK, map[string]any{"source_face_found": false})
		_, err := NewCloudCompareComparator(srv.URL, "k", time.Second).Compare(context.Background(), []byte("a"), []byte("b"))
		assert.Equal(t, ErrorNoFace, GetCategory(err))
		assert.ErrorIs(t, err, ErrNoFaceDetected)
	})

	t.Run("deep verify maps distance", func(t *testing.T) {
		srv := jsonServer(t, http.StatusOK, map[string]any{"verified": true, "distance": 0.18})
		score, err := NewDeepVerifyComparator(srv.URL, "", time.Second).Compare(context.Background(), []byte("a"), []byte("b"))
		require.NoError(t, err)
		assert.InDelta(t, 0.82, score, 1e-9)
	})

	t.Run("no face error envelope", func(t *testing.T) {
		srv := jsonServer(t, http.StatusUnprocessableEntity, map[string]string{"code": "no_face", "message": "Face could not be detected"})
		_, err := NewDeepVerifyComparator(srv.URL, "", time.Second).Compare(context.Background(), []byte("a"), []byte("b"))
		assert.Equal(t, ErrorNoFace, GetCategory(err))
		assert.False(t, IsRetryable(err))
	})

	t.Run("embedding cosine", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			vec := []float64{1, 0}
			if calls == 2 {
				vec = []float64{1, 1}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
		}))
		defer srv.Close()
		score, err := NewEmbeddingComparator(srv.URL, "", time.Second).Compare(context.Background(), []byte("a"), []byte("b"))
		require.NoError(t, err)
		assert.InDelta(t, 0.7071, score, 1e-3)
	})
}

func TestTimeoutIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewDeepVerifyComparator(srv.URL, "", 20*time.Millisecond).Compare(context.Background(), []byte("a"), []byte("b"))
	require.Error(t, err)
	assert.Equal(t, ErrorTimeout, GetCategory(err))
}

func TestStatusError(t *testing.T) {
	assert.Equal(t, ErrorAuthentication, StatusError("p", 401, "").Category)
	assert.Equal(t, ErrorRateLimited, StatusError("p", 429, "").Category)
	assert.Equal(t, ErrorBadData, StatusError("p", 400, "").Category)
}

type namedComparator string

func (n namedComparator) Name() string { return string(n) }
func (n namedComparator) Compare(context.Context, []byte, []byte) (float64, error) {
	return 1, nil
}

func TestComparatorRegistry(t *testing.T) {
	reg := NewComparatorRegistry()
	require.NoError(t, reg.Register(namedComparator("embedding")))
	require.NoError(t, reg.Register(namedComparator("cloud_compare")))
	require.Error(t, reg.Register(namedComparator("embedding")), "duplicate names rejected")
	require.Error(t, reg.Register(namedComparator("")))

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "cloud_compare", all[0].Name())
	_, ok := reg.Get("embedding")
	assert.True(t, ok)
	assert.Equal(t, 2, reg.Len())
}
