package interfaces

import (
	"context"

	"liveclass/pkg/types"
)

// Store is the document store every synchronizer talks to. It is the only
// shared mutable resource in the system: single-document writes, no
// transactions, last write wins.
type Store interface {
	// Put creates or fully replaces a document. types.ServerTimestamp
	// sentinel values in fields are resolved to the store clock at write
	// time.
	Put(ctx context.Context, collection, id string, fields map[string]any) error

	// Get reads one document by ID. Returns ErrDocumentNotFound when the
	// document does not exist.
	Get(ctx context.Context, collection, id string) (types.Document, error)

	// Query is a one-shot read of the documents currently matching all
	// equality filters.
	Query(ctx context.Context, collection string, filters []types.Filter) ([]types.Document, error)

	// Update merges partial fields into an existing document. Returns
	// ErrDocumentNotFound when the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document. Deleting a missing document is not an
	// error.
	Delete(ctx context.Context, collection, id string) error

	// Subscribe opens a live query: fn receives the full current result
	// set once the subscription is established and again after every
	// change to the collection. Within one subscription, snapshots arrive
	// in store order; no ordering is guaranteed across subscriptions. The
	// returned disposer stops all future deliveries and is safe to invoke
	// more than once.
	Subscribe(collection string, filters []types.Filter, fn func([]types.Document)) (types.Disposer, error)
}
