package feature

import (
	"context"
	"sync"
	"testing"
	"time"

	"liveclass/internal/identity"
	"liveclass/internal/session"
	"liveclass/internal/store"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

const testRoomCode = "123456"

// mockStore is an in-memory document store with synchronous subscription
// delivery: every mutation re-runs matching subscriptions before the write
// call returns, so tests never need to poll.
type mockStore struct {
	mu   sync.Mutex
	docs map[string]map[string]map[string]any
	subs []*mockSub

	putErr error
}

type mockSub struct {
	collection string
	filters    []types.Filter
	fn         func([]types.Document)
	active     bool
}

func newMockStore() *mockStore {
	return &mockStore{
		docs: make(map[string]map[string]map[string]any),
	}
}

func (m *mockStore) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	if m.putErr != nil {
		return m.putErr
	}

	m.mu.Lock()
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]map[string]any)
	}
	m.docs[collection][id] = types.ResolveServerTimestamps(fields, time.Now().UTC())
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

func (m *mockStore) Get(ctx context.Context, collection, id string) (types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, exists := m.docs[collection][id]
	if !exists {
		return types.Document{}, interfaces.ErrDocumentNotFound
	}
	return types.Document{ID: id, Fields: fields}, nil
}

func (m *mockStore) Query(ctx context.Context, collection string, filters []types.Filter) ([]types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matching(collection, filters), nil
}

func (m *mockStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	existing, exists := m.docs[collection][id]
	if !exists {
		m.mu.Unlock()
		return interfaces.ErrDocumentNotFound
	}
	for k, v := range types.ResolveServerTimestamps(fields, time.Now().UTC()) {
		existing[k] = v
	}
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

func (m *mockStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	_, existed := m.docs[collection][id]
	delete(m.docs[collection], id)
	m.mu.Unlock()

	if existed {
		m.notify(collection)
	}
	return nil
}

func (m *mockStore) Subscribe(collection string, filters []types.Filter, fn func([]types.Document)) (types.Disposer, error) {
	m.mu.Lock()
	sub := &mockSub{collection: collection, filters: filters, fn: fn, active: true}
	m.subs = append(m.subs, sub)
	initial := m.matching(collection, filters)
	m.mu.Unlock()

	fn(initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			sub.active = false
			m.mu.Unlock()
		})
	}, nil
}

func (m *mockStore) notify(collection string) {
	m.mu.Lock()
	type delivery struct {
		fn   func([]types.Document)
		docs []types.Document
	}
	var deliveries []delivery
	for _, sub := range m.subs {
		if sub.active && sub.collection == collection {
			deliveries = append(deliveries, delivery{sub.fn, m.matching(collection, sub.filters)})
		}
	}
	m.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.docs)
	}
}

// matching is called with m.mu held.
func (m *mockStore) matching(collection string, filters []types.Filter) []types.Document {
	var docs []types.Document
	for id, fields := range m.docs[collection] {
		if store.MatchesFilters(fields, filters) {
			docs = append(docs, types.Document{ID: id, Fields: fields})
		}
	}
	return docs
}

// teacherSession returns a session context bound to the test room as owner.
func teacherSession() *session.Context {
	sess := session.NewContext()
	sess.Enter(session.RoleOwner, testRoomCode)
	return sess
}

// confirmedStudent joins the test room and confirms a name, returning the
// session and identity plus the generated participant ID.
func confirmedStudent(t *testing.T, store *mockStore, name string) (*session.Context, *identity.Manager) {
	t.Helper()

	sess := session.NewContext()
	sess.Enter(session.RoleParticipant, testRoomCode)

	ident := identity.NewManager(store, sess)
	if err := ident.ConfirmName(context.Background(), name); err != nil {
		t.Fatalf("Failed to confirm name %q: %v", name, err)
	}
	return sess, ident
}
