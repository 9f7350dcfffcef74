package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// mockStore covers the three operations the identity manager uses.
type mockStore struct {
	mu     sync.Mutex
	docs   map[string]map[string]any
	putErr error
	delErr error
}

func newMockStore() *mockStore {
	return &mockStore{docs: make(map[string]map[string]any)}
}

func (m *mockStore) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = fields
	return nil
}

func (m *mockStore) Get(ctx context.Context, collection, id string) (types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, exists := m.docs[id]
	if !exists {
		return types.Document{}, interfaces.ErrDocumentNotFound
	}
	return types.Document{ID: id, Fields: fields}, nil
}

func (m *mockStore) Query(ctx context.Context, collection string, filters []types.Filter) ([]types.Document, error) {
	return nil, nil
}

func (m *mockStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return nil
}

func (m *mockStore) Delete(ctx context.Context, collection, id string) error {
	if m.delErr != nil {
		return m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *mockStore) Subscribe(collection string, filters []types.Filter, fn func([]types.Document)) (types.Disposer, error) {
	return func() {}, nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func inRoomManager(store interfaces.Store) *Manager {
	sess := session.NewContext()
	sess.Enter(session.RoleParticipant, "123456")
	return NewManager(store, sess)
}

func TestConfirmName(t *testing.T) {
	store := newMockStore()
	manager := inRoomManager(store)

	if err := manager.ConfirmName(context.Background(), "  Maria Silva  "); err != nil {
		t.Fatalf("ConfirmName failed: %v", err)
	}

	if manager.Name() != "Maria Silva" {
		t.Errorf("Expected trimmed name 'Maria Silva', got %q", manager.Name())
	}
	if !manager.Confirmed() {
		t.Error("Expected manager confirmed")
	}
	if !strings.HasPrefix(manager.ID(), "student_") {
		t.Errorf("Expected student_ prefixed ID, got %q", manager.ID())
	}

	doc, err := store.Get(context.Background(), types.CollectionParticipants, manager.ID())
	if err != nil {
		t.Fatalf("Participant document missing: %v", err)
	}
	if doc.Fields["name"] != "Maria Silva" || doc.Fields["roomCode"] != "123456" {
		t.Errorf("Unexpected participant fields: %v", doc.Fields)
	}
	if doc.Fields["isPresent"] != false || doc.Fields["raisedHand"] != false {
		t.Errorf("Expected fresh participant flags false: %v", doc.Fields)
	}
}

func TestConfirmNameValidation(t *testing.T) {
	manager := inRoomManager(newMockStore())

	for _, name := range []string{"", " ", "A", "  B  "} {
		if err := manager.ConfirmName(context.Background(), name); err != types.ErrInvalidName {
			t.Errorf("ConfirmName(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
	if manager.Confirmed() {
		t.Error("Expected no confirmation after invalid names")
	}
}

func TestConfirmNameOncePerSession(t *testing.T) {
	manager := inRoomManager(newMockStore())

	if err := manager.ConfirmName(context.Background(), "Maria"); err != nil {
		t.Fatalf("First confirm failed: %v", err)
	}
	if err := manager.ConfirmName(context.Background(), "Outra"); err != ErrAlreadyConfirmed {
		t.Errorf("Expected ErrAlreadyConfirmed, got %v", err)
	}
	if manager.Name() != "Maria" {
		t.Errorf("Expected name unchanged, got %q", manager.Name())
	}
}

func TestConfirmNameRequiresRoom(t *testing.T) {
	manager := NewManager(newMockStore(), session.NewContext())

	if err := manager.ConfirmName(context.Background(), "Maria"); err != session.ErrNoActiveRoom {
		t.Errorf("Expected ErrNoActiveRoom, got %v", err)
	}
}

func TestConfirmNameWriteFailureLeavesNoState(t *testing.T) {
	store := newMockStore()
	store.putErr = errors.New("write refused")
	manager := inRoomManager(store)

	if err := manager.ConfirmName(context.Background(), "Maria"); err == nil {
		t.Fatal("Expected error from failed write")
	}

	if manager.Confirmed() || manager.Name() != "" || manager.ID() != "" {
		t.Error("Expected no cached identity after failed write")
	}

	// A retry after the failure is a fresh confirm, not ErrAlreadyConfirmed.
	store.putErr = nil
	if err := manager.ConfirmName(context.Background(), "Maria"); err != nil {
		t.Errorf("Expected retry to succeed, got %v", err)
	}
}

func TestLeave(t *testing.T) {
	store := newMockStore()
	manager := inRoomManager(store)

	if err := manager.ConfirmName(context.Background(), "Maria"); err != nil {
		t.Fatalf("ConfirmName failed: %v", err)
	}

	if err := manager.Leave(context.Background()); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	if manager.Confirmed() {
		t.Error("Expected cache cleared after leave")
	}
	if store.count() != 0 {
		t.Errorf("Expected participant document deleted, %d remain", store.count())
	}
}

func TestLeaveBeforeConfirmIsNoop(t *testing.T) {
	manager := inRoomManager(newMockStore())

	if err := manager.Leave(context.Background()); err != nil {
		t.Errorf("Expected no-op leave to succeed, got %v", err)
	}
}

func TestLeaveClearsCacheDespiteDeleteFailure(t *testing.T) {
	store := newMockStore()
	manager := inRoomManager(store)

	if err := manager.ConfirmName(context.Background(), "Maria"); err != nil {
		t.Fatalf("ConfirmName failed: %v", err)
	}

	store.delErr = errors.New("delete refused")
	if err := manager.Leave(context.Background()); err == nil {
		t.Error("Expected error from failed delete")
	}

	if manager.Confirmed() {
		t.Error("Expected cache cleared even when delete fails")
	}
}
