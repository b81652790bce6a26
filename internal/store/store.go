// Package store holds client-side state over the REST and realtime clients.
// Every store is safe for concurrent use and hands out copies.
package store

import (
	"context"
	"sync"

	"socialnet/internal/observability"
)

// base carries the loading flag and the last error shared by every store.
// Stores guard their own fields with the same mutex.
type base struct {
	mu      sync.RWMutex
	loading bool
	err     string
	log     *observability.StoreLogger
}

func newBase(name string) base {
	return base{log: observability.NewStoreLogger(name)}
}

// Loading reports whether an action is in flight.
func (b *base) Loading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loading
}

// Err returns the last error message, or "" when none.
func (b *base) Err() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

// ClearError forgets the last error.
func (b *base) ClearError() {
	b.mu.Lock()
	b.err = ""
	b.mu.Unlock()
}

// start marks an action as loading and clears the last error. It returns the
// func that clears the flag again.
func (b *base) start() func() {
	b.mu.Lock()
	b.loading = true
	b.err = ""
	b.mu.Unlock()
	return b.finish
}

// tryStart is start for actions that are skipped while another is loading.
// ok is false when the flag was already set.
func (b *base) tryStart() (finish func(), ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loading {
		return nil, false
	}
	b.loading = true
	b.err = ""
	return b.finish, true
}

func (b *base) finish() {
	b.mu.Lock()
	b.loading = false
	b.mu.Unlock()
}

// fail records and logs err. It returns err unchanged.
func (b *base) fail(ctx context.Context, action string, err error) error {
	b.mu.Lock()
	b.err = err.Error()
	b.mu.Unlock()
	b.log.LogError(ctx, err, action)
	return err
}

func (b *base) done(ctx context.Context, action string, fields map[string]interface{}) {
	b.log.LogAction(ctx, action, fields)
}
