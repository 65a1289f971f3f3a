package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// FaceComparator compares the face on an identity document with a selfie.
// Compare returns a similarity normalized to 0..1 or a *ProviderError.
type FaceComparator interface {
	Name() string
	Compare(ctx context.Context, idPhoto, selfie []byte) (float64, error)
}

// ComparatorRegistry holds the comparators configured at startup. The set is
// populated once from configuration; reads are safe for concurrent use.
type ComparatorRegistry struct {
	mu          sync.RWMutex
	comparators map[string]FaceComparator
}

func NewComparatorRegistry() *ComparatorRegistry {
	return &ComparatorRegistry{
		comparators: make(map[string]FaceComparator),
	}
}

// Register adds a comparator. Names must be unique.
func (r *ComparatorRegistry) Register(c FaceComparator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.Name()
	if name == "" {
		return fmt.Errorf("comparator name cannot be empty")
	}
	if _, exists := r.comparators[name]; exists {
		return fmt.Errorf("comparator %s already registered", name)
	}
	r.comparators[name] = c
	return nil
}

func (r *ComparatorRegistry) Get(name string) (FaceComparator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.comparators[name]
	return c, ok
}

// All returns the registered comparators ordered by name.
func (r *ComparatorRegistry) All() []FaceComparator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]FaceComparator, 0, len(r.comparators))
	for _, c := range r.comparators {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *ComparatorRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.comparators)
}
