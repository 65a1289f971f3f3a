// Package idlock serializes processing of submissions that carry the same
// id number, so two vendors racing with one document cannot both be
// evaluated at once.
package idlock

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"vendorkyc/pkg/platform/sentinel"
)

// Locker grants an advisory lease on an id number. Acquire fails with
// sentinel.ErrLocked when another owner holds it.
type Locker interface {
	Acquire(ctx context.Context, idNumber, owner string) (Lease, error)
}

// Lease releases the lock. Releasing an expired or stolen lease is a no-op.
type Lease interface {
	Release(ctx context.Context) error
}

// Hasher maps id numbers to opaque lock keys so raw numbers never leave the
// process.
type Hasher struct {
	key [32]byte
}

func NewHasher(secret []byte) Hasher {
	return Hasher{key: blake2b.Sum256(secret)}
}

func (h Hasher) Key(idNumber string) string {
	mac, _ := blake2b.New256(h.key[:])
	mac.Write([]byte(idNumber))
	return hex.EncodeToString(mac.Sum(nil))
}

// MemoryLocker is the single-process Locker used when Redis is not
// configured.
type MemoryLocker struct {
	mu     sync.Mutex
	hasher Hasher
	ttl    time.Duration
	held   map[string]memoryHold
	now    func() time.Time
}

type memoryHold struct {
	owner   string
	expires time.Time
}

func NewMemoryLocker(hasher Hasher, ttl time.Duration) *MemoryLocker {
	return &MemoryLocker{
		hasher: hasher,
		ttl:    ttl,
		held:   make(map[string]memoryHold),
		now:    time.Now,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, idNumber, owner string) (Lease, error) {
	key := l.hasher.Key(idNumber)
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if h, ok := l.held[key]; ok && h.owner != owner && now.Before(h.expires) {
		return nil, sentinel.ErrLocked
	}
	l.held[key] = memoryHold{owner: owner, expires: now.Add(l.ttl)}
	return &memoryLease{locker: l, key: key, owner: owner}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	owner  string
}

func (m *memoryLease) Release(context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if h, ok := m.locker.held[m.key]; ok && h.owner == m.owner {
		delete(m.locker.held, m.key)
	}
	return nil
}
