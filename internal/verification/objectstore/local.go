// Package objectstore keeps uploaded images on local disk and hands out
// signed, time-limited URLs for them. Only the URL is ever persisted on an
// identity record.
package objectstore

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"vendorkyc/pkg/platform/sentinel"
)

const DefaultTTL = 7 * 24 * time.Hour

// LocalStore implements ports.ObjectStore on a directory. URLs look like
// {base}/{purpose}/{owner}/{object}?expires={unix}&sig={mac}; the MAC covers
// the object key and expiry.
type LocalStore struct {
	dir  string
	base *url.URL
	key  []byte
	ttl  time.Duration
	now  func() time.Time
}

type Option func(*LocalStore)

func WithTTL(ttl time.Duration) Option {
	return func(s *LocalStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for signing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *LocalStore) { s.now = now }
}

func NewLocal(dir, baseURL string, signingKey []byte, opts ...Option) (*LocalStore, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("objectstore: signing key is required")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("objectstore: parse base url: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("objectstore: create dir: %w", err)
	}
	sum := blake2b.Sum256(signingKey)
	s := &LocalStore{dir: dir, base: base, key: sum[:], ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *LocalStore) Store(ctx context.Context, data []byte, purpose, ownerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("objectstore: empty object")
	}
	key := path.Join(segment(purpose), segment(ownerID), uuid.NewString())
	full := s.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return "", fmt.Errorf("objectstore: create dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("objectstore: write object: %w", err)
	}
	return s.sign(key, s.now().Add(s.ttl)), nil
}

func (s *LocalStore) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, expires, err := s.verify(rawURL)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(expires) {
		return nil, fmt.Errorf("objectstore: url expired at %s: %w", expires.Format(time.RFC3339), sentinel.ErrExpired)
	}
	return s.read(key)
}

// Expired also reports true for URLs this store did not sign.
func (s *LocalStore) Expired(rawURL string, at time.Time) bool {
	_, expires, err := s.verify(rawURL)
	if err != nil {
		return true
	}
	return !at.Before(expires)
}

// Resign accepts expired URLs as long as the signature is genuine.
func (s *LocalStore) Resign(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, _, err := s.verify(rawURL)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(s.path(key)); err != nil {
		return "", translate(err)
	}
	return s.sign(key, s.now().Add(s.ttl)), nil
}

func (s *LocalStore) sign(key string, expires time.Time) string {
	u := *s.base
	u.Path = path.Join(u.Path, key)
	q := url.Values{}
	exp := strconv.FormatInt(expires.Unix(), 10)
	q.Set("expires", exp)
	q.Set("sig", s.mac(key, exp))
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *LocalStore) mac(key, expires string) string {
	h, _ := blake2b.New256(s.key)
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write([]byte(expires))
	return hex.EncodeToString(h.Sum(nil))
}

// verify checks the signature and returns the object key and expiry. Any
// malformed or forged URL is reported as not found.
func (s *LocalStore) verify(rawURL string) (string, time.Time, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("objectstore: malformed url: %w", sentinel.ErrNotFound)
	}
	prefix := strings.TrimRight(s.base.Path, "/") + "/"
	key, ok := strings.CutPrefix(u.Path, prefix)
	if !ok || key == "" || strings.Contains(key, "..") {
		return "", time.Time{}, fmt.Errorf("objectstore: foreign url: %w", sentinel.ErrNotFound)
	}
	q := u.Query()
	exp := q.Get("expires")
	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("objectstore: missing expiry: %w", sentinel.ErrNotFound)
	}
	want := s.mac(key, exp)
	if subtle.ConstantTimeCompare([]byte(want), []byte(q.Get("sig"))) != 1 {
		return "", time.Time{}, fmt.Errorf("objectstore: bad signature: %w", sentinel.ErrNotFound)
	}
	return key, time.Unix(unix, 0), nil
}

func (s *LocalStore) read(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, translate(err)
	}
	return data, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

func translate(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("objectstore: object missing: %w", sentinel.ErrNotFound)
	}
	return fmt.Errorf("objectstore: %w", err)
}

// segment makes a caller supplied label safe to use as one path element.
func segment(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "misc"
	}
	return b.String()
}
