package ports

import (
	"context"
	"time"
)

// ObjectStore persists uploaded images privately and hands out time-limited
// fetch URLs. Callers keep only the URL.
type ObjectStore interface {
	// Store saves data and returns a signed URL valid for the store's TTL.
	Store(ctx context.Context, data []byte, purpose, ownerID string) (string, error)

	// Fetch returns the bytes behind a signed URL. Expired or tampered URLs
	// fail with sentinel.ErrExpired or sentinel.ErrNotFound.
	Fetch(ctx context.Context, url string) ([]byte, error)

	// Expired reports whether url stops being fetchable at or before at.
	Expired(url string, at time.Time) bool

	// Resign issues a fresh URL for the same object.
	Resign(ctx context.Context, url string) (string, error)
}
