package featureflags

import (
	"context"
	"sync"
)

// InMemoryRepository keeps flags for the life of the process.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]Flag
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates a repository seeded with flags.
func NewInMemoryRepository(seed ...*Flag) *InMemoryRepository {
	r := &InMemoryRepository{flags: make(map[string]Flag, len(seed))}
	for _, f := range seed {
		r.flags[f.Key] = *f
	}
	return r
}

func (r *InMemoryRepository) GetFlag(_ context.Context, key string) (*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flags[key]
	if !ok {
		return nil, ErrFlagNotFound
	}
	return &f, nil
}

func (r *InMemoryRepository) GetAllFlags(_ context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Flag, len(r.flags))
	for k, f := range r.flags {
		out[k] = &f
	}
	return out, nil
}

func (r *InMemoryRepository) SetFlag(_ context.Context, flag *Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[flag.Key] = *flag
	return nil
}
