package trigger

import (
	"context"

	"github.com/roach88/vacatrack/internal/store"
)

// Registry persists registrations, so a restart keeps them.
type Registry struct {
	store *store.Store
}

// NewRegistry creates a Registry backed by st.
func NewRegistry(st *store.Store) *Registry {
	return &Registry{store: st}
}

// Register records tag. Registering the same tag again is a no-op.
func (r *Registry) Register(ctx context.Context, tag string) error {
	return r.store.RegisterSync(ctx, tag)
}

// Pending lists registered tags.
func (r *Registry) Pending(ctx context.Context) ([]string, error) {
	return r.store.SyncRegistrations(ctx)
}

// Clear drops the registration for tag.
func (r *Registry) Clear(ctx context.Context, tag string) error {
	return r.store.ClearSync(ctx, tag)
}
