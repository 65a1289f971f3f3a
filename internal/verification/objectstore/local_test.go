package objectstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorkyc/pkg/platform/sentinel"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newStore(t *testing.T) (*LocalStore, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	s, err := NewLocal(t.TempDir(), "http://localhost:8080/objects", []byte("test-key"), WithClock(c.now))
	require.NoError(t, err)
	return s, c
}

func TestStoreAndFetch(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	ref, err := s.Store(ctx, []byte("front-bytes"), "kyc_document_front", "vendor/../1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "http://localhost:8080/objects/kyc_document_front/vendor____1/"))

	data, err := s.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "front-bytes", string(data))
}

func TestExpiryAndResign(t *testing.T) {
	ctx := context.Background()
	s, c := newStore(t)
	ref, err := s.Store(ctx, []byte("selfie"), "kyc_selfie", "v1")
	require.NoError(t, err)

	assert.False(t, s.Expired(ref, c.t.Add(6*24*time.Hour)))
	assert.True(t, s.Expired(ref, c.t.Add(DefaultTTL)))

	c.t = c.t.Add(8 * 24 * time.Hour)
	_, err = s.Fetch(ctx, ref)
	assert.ErrorIs(t, err, sentinel.ErrExpired)

	fresh, err := s.Resign(ctx, ref)
	require.NoError(t, err)
	assert.NotEqual(t, ref, fresh)
	data, err := s.Fetch(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, "selfie", string(data))
}

func TestTamperedURL(t *testing.T) {
	ctx := context.Background()
	s, c := newStore(t)
	ref, err := s.Store(ctx, []byte("x"), "kyc_selfie", "v1")
	require.NoError(t, err)

	u, err := url.Parse(ref)
	require.NoError(t, err)
	q := u.Query()
	q.Set("expires", "9999999999")
	u.RawQuery = q.Encode()

	_, err = s.Fetch(ctx, u.String())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.True(t, s.Expired(u.String(), c.t))

	_, err = s.Fetch(ctx, "https://elsewhere.example/objects/a")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestHandler(t *testing.T) {
	s, c := newStore(t)
	ref, err := s.Store(context.Background(), []byte("\x89PNG\r\n\x1a\nrest"), "kyc_selfie", "v1")
	require.NoError(t, err)
	u, err := url.Parse(ref)
	require.NoError(t, err)
	h := s.Handler(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	c.t = c.t.Add(DefaultTTL)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
