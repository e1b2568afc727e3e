package engine

import (
	"sync"

	"github.com/sevigo/patch-warden/internal/core"
)

// Registry tracks which files belong to in-flight batches. A batch whose
// target files intersect a running one is refused outright; the engine never
// interleaves edits to the same file.
type Registry struct {
	mu    sync.Mutex
	inUse map[string]string // file path -> batch id
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{inUse: make(map[string]string)}
}

// Claim reserves every path for batchID, or returns core.ErrFilesBusy without
// reserving anything if any path is already claimed.
func (r *Registry) Claim(batchID string, paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range paths {
		if _, busy := r.inUse[p]; busy {
			return core.ErrFilesBusy
		}
	}
	for _, p := range paths {
		r.inUse[p] = batchID
	}
	return nil
}

// Release frees every path owned by batchID.
func (r *Registry) Release(batchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for p, owner := range r.inUse {
		if owner == batchID {
			delete(r.inUse, p)
		}
	}
}
