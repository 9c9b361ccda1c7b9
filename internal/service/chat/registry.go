package chat

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Registry maps workspace handles (one per browser) to their session stores.
// Workspaces idle for longer than the TTL, or pushed out by the size bound,
// are dropped; their handle starts over with a fresh store.
type Registry struct {
	mu         sync.Mutex
	workspaces *expirable.LRU[string, *workspace]
	opts       []Option
}

type workspace struct {
	mu    sync.Mutex
	store *Store
}

// NewRegistry bootstraps an unbounded registry whose workspaces never expire.
// opts are applied to every store it creates.
func NewRegistry(opts ...Option) *Registry {
	return NewBoundedRegistry(0, 0, opts...)
}

// NewBoundedRegistry keeps at most maxWorkspaces workspaces and drops any not
// acquired within idleTTL. Zero disables the respective limit.
func NewBoundedRegistry(maxWorkspaces int, idleTTL time.Duration, opts ...Option) *Registry {
	return &Registry{
		workspaces: expirable.NewLRU[string, *workspace](maxWorkspaces, nil, idleTTL),
		opts:       opts,
	}
}

// Acquire returns the store for handle, creating it with a fresh current
// session on first use or after eviction. The store is locked until release
// is called.
func (r *Registry) Acquire(handle string) (*Store, func()) {
	r.mu.Lock()
	ws, ok := r.workspaces.Get(handle)
	if !ok {
		ws = &workspace{store: NewStoreWithSession(r.opts...)}
	}
	// Re-adding restarts the idle clock.
	r.workspaces.Add(handle, ws)
	r.mu.Unlock()

	ws.mu.Lock()
	var once sync.Once
	return ws.store, func() { once.Do(ws.mu.Unlock) }
}

// Len reports how many workspaces are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workspaces.Len()
}
