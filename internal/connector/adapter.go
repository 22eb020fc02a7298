package connector

import (
	"context"
	"errors"

	"github.com/ppiankov/onesource/internal/model"
)

// ErrRateLimited is the reserved sentinel an adapter returns when the
// upstream service throttled the call. The hub records the flag and
// contributes zero candidates; the sentinel never reaches Fusion.
var ErrRateLimited = errors.New("provider rate limited")

// Adapter is the contract every provider implements. Search is stateless
// from the hub's perspective and must be safely invocable repeatedly.
// A missing credential means zero candidates, not an error.
type Adapter interface {
	// Source returns the provider identifier this adapter contributes under.
	Source() model.Source

	// Search returns candidates for the query. limit bounds the adapter's
	// own work; the hub never truncates the merged set with it.
	Search(ctx context.Context, userID string, query string, limit int) ([]model.Candidate, error)
}

// Registry holds the adapters registered for the current process.
// Registration order is the hub's merge order, which keeps ranking
// tie-breaks reproducible across identical runs.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{adapters: make([]Adapter, 0)}
}

// Register appends an adapter. Adapters that cannot be configured
// (no token, no scope) are simply never registered.
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.adapters)
}
