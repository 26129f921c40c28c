package tierq

import (
	"context"
)

// UpdateStore persists which geospatial models need retraining. It backs
// the model-update producer so that needs-update flags survive process
// restarts. Implementations must be thread-safe and support concurrent
// operations.
type UpdateStore interface {
	// MarkNeedsUpdate flags the model identified by key as needing
	// retraining. Marking an already-flagged model is a no-op that keeps
	// the original mark time.
	MarkNeedsUpdate(ctx context.Context, key RegionKey) error

	// ClearNeedsUpdate removes the flag. Clearing an absent flag is a
	// no-op.
	ClearNeedsUpdate(ctx context.Context, key RegionKey) error

	// NeedsUpdate reports whether the flag is currently set.
	NeedsUpdate(ctx context.Context, key RegionKey) (bool, error)

	// ListNeedsUpdate returns every flagged key, ordered finest depth
	// first and by region within a depth. The ordering makes the first
	// element the producer's default selection.
	ListNeedsUpdate(ctx context.Context) ([]RegionKey, error)

	// Close closes the store.
	Close() error
}
