package journal

import (
	"context"

	"github.com/xraph/tradefin/id"
)

// Store is append-only: entries are never updated or removed.
type Store interface {
	AppendEntries(ctx context.Context, entries ...*Entry) error
	// ListEntries returns an entity's entries newest first.
	ListEntries(ctx context.Context, entityID id.EntityID, opts ListOpts) ([]*Entry, error)
	// ListEntriesByReference returns entries sharing a reference, newest first.
	ListEntriesByReference(ctx context.Context, ref Reference, opts ListOpts) ([]*Entry, error)
	// EntityTotals sums an entity's entries; an entity without entries has zero totals.
	EntityTotals(ctx context.Context, entityID id.EntityID) (Totals, error)
}

// DefaultLimit applies when ListOpts.Limit is not positive.
const DefaultLimit = 100

type ListOpts struct {
	Limit  int
	Offset int
}

// Normalize returns opts with defaults applied.
func (o ListOpts) Normalize() ListOpts {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
