// Package liveview is the one subscription-bookkeeping implementation every
// feature synchronizer composes. A ViewSet tracks named live views so that
// re-opening a view replaces the previous subscription instead of stacking a
// second renderer onto the same target, and teardown closes everything
// exactly once.
package liveview

import (
	"sync"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// ViewSet holds the open live views of one synchronizer.
type ViewSet struct {
	store interfaces.Store
	mu    sync.Mutex
	views map[string]types.Disposer
}

// NewViewSet creates an empty view set over the store.
func NewViewSet(store interfaces.Store) *ViewSet {
	return &ViewSet{
		store: store,
		views: make(map[string]types.Disposer),
	}
}

// Open starts the named live view. The render callback receives the full
// current result set on every emission and must be idempotent and total:
// rendering the same set twice produces the same output. If a view with the
// same name is already open, its subscription is closed first, so at most
// one renderer ever races on a target.
func (s *ViewSet) Open(name, collection string, filters []types.Filter, render func([]types.Document)) error {
	disposer, err := s.store.Subscribe(collection, filters, render)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prior := s.views[name]
	s.views[name] = disposer
	s.mu.Unlock()

	if prior != nil {
		prior()
	}
	return nil
}

// Close stops the named view. Unknown names are a no-op.
func (s *ViewSet) Close(name string) {
	s.mu.Lock()
	disposer := s.views[name]
	delete(s.views, name)
	s.mu.Unlock()

	if disposer != nil {
		disposer()
	}
}

// CloseAll invokes every held disposer exactly once and clears the set.
// Safe to call when the set is already empty; the set stays usable for
// re-opening views afterwards.
func (s *ViewSet) CloseAll() {
	s.mu.Lock()
	disposers := make([]types.Disposer, 0, len(s.views))
	for _, d := range s.views {
		disposers = append(disposers, d)
	}
	s.views = make(map[string]types.Disposer)
	s.mu.Unlock()

	for _, d := range disposers {
		d()
	}
}

// OpenCount returns the number of currently open views.
func (s *ViewSet) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}
