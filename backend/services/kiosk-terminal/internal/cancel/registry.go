// Package cancel keeps at most one outstanding request per key. Starting a request under a key
// cancels the previous one, and late responses of superseded requests are recognised and dropped.
package cancel

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded marks a response that lost to a newer request under the same key. Callers treat it
// as "nothing happened": it is neither shown to the customer nor retried.
var ErrSuperseded = errors.New("cancel: superseded")

// Request keys.
const (
	KeySessionGet        = "session:get"
	KeySessionCreate     = "session:create"
	KeySessionRenew      = "session:renew"
	KeySessionStoreOrder = "session:store-order"
	KeySessionRemove     = "session:remove"
	KeyOrderPlace        = "order:place"
	KeyOrderDiscard      = "order:discard"
)

// KeyPaymentQR is the key of a QR fetch for provider.
func KeyPaymentQR(provider string) string {
	return "payment:qr:" + provider
}

type entry struct {
	gen    uint64
	cancel context.CancelFunc
}

// Registry tracks the latest request per key.
type Registry struct {
	mu      sync.Mutex
	seq     uint64
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Token identifies one request issued under a key.
type Token struct {
	registry *Registry
	key      string
	gen      uint64
	cancel   context.CancelFunc
}

// Begin cancels the outstanding request under key, if any, and registers a new one. The returned
// context is cancelled when the request is superseded or released.
func (r *Registry) Begin(ctx context.Context, key string) (context.Context, *Token) {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.entries[key]; ok {
		prev.cancel()
	}
	r.seq++
	r.entries[key] = entry{gen: r.seq, cancel: cancel}
	return ctx, &Token{registry: r, key: key, gen: r.seq, cancel: cancel}
}

// Cancel supersedes the outstanding request under key without starting a new one.
func (r *Registry) Cancel(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.entries[key]; ok {
		prev.cancel()
		delete(r.entries, key)
	}
}

// CancelAll supersedes every outstanding request.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.entries {
		e.cancel()
		delete(r.entries, key)
	}
}

// Outstanding reports whether a request is registered under key.
func (r *Registry) Outstanding(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// Key returns the key the token was issued under.
func (t *Token) Key() string {
	return t.key
}

// Current reports whether the token is still the latest request for its key.
func (t *Token) Current() bool {
	t.registry.mu.Lock()
	defer t.registry.mu.Unlock()
	e, ok := t.registry.entries[t.key]
	return ok && e.gen == t.gen
}

// Done releases the token. Safe to call more than once.
func (t *Token) Done() {
	t.registry.mu.Lock()
	if e, ok := t.registry.entries[t.key]; ok && e.gen == t.gen {
		delete(t.registry.entries, t.key)
	}
	t.registry.mu.Unlock()
	t.cancel()
}

// Guard returns ErrSuperseded when the token lost its key, else err unchanged.
func (t *Token) Guard(err error) error {
	if !t.Current() {
		return ErrSuperseded
	}
	return err
}
