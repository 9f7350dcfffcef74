// Package identity issues and holds the local participant's identity for
// one session. Identity is session-scoped: nothing survives a restart, and
// rejoining is equivalent to a first-time join.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Manager binds a display name and a generated participant ID to the
// current room. The local cache commits only after the remote write
// succeeds, so a failed confirm leaves no partial state behind.
type Manager struct {
	store   interfaces.Store
	session *session.Context
	mu      sync.RWMutex
	name    string
	id      string
}

// NewManager creates an identity manager bound to the session context.
func NewManager(store interfaces.Store, sess *session.Context) *Manager {
	return &Manager{
		store:   store,
		session: sess,
	}
}

// ConfirmName validates the display name, writes the participant document,
// and caches name and ID locally. It succeeds at most once per session.
func (m *Manager) ConfirmName(ctx context.Context, name string) error {
	trimmed := strings.TrimSpace(name)
	if !types.IsValidParticipantName(trimmed) {
		return types.ErrInvalidName
	}

	m.mu.RLock()
	confirmed := m.id != ""
	m.mu.RUnlock()
	if confirmed {
		return ErrAlreadyConfirmed
	}

	roomCode := m.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	// Time-based plus random suffix: locally unique, collision probability
	// negligible but not guaranteed.
	id := fmt.Sprintf("student_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])

	fields := map[string]any{
		"name":       trimmed,
		"roomCode":   roomCode,
		"joinedAt":   types.ServerTimestamp,
		"isPresent":  false,
		"raisedHand": false,
	}
	if err := m.store.Put(ctx, types.CollectionParticipants, id, fields); err != nil {
		return fmt.Errorf("failed to register participant: %w", err)
	}

	m.mu.Lock()
	m.name = trimmed
	m.id = id
	m.mu.Unlock()

	return nil
}

// Name returns the confirmed display name, empty before confirmation.
func (m *Manager) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

// ID returns the generated participant ID, empty before confirmation.
func (m *Manager) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

// Confirmed reports whether a name has been confirmed this session.
func (m *Manager) Confirmed() bool {
	return m.ID() != ""
}

// Leave deletes the participant document if one exists, then clears the
// local cache regardless of the delete outcome: a failed delete never
// blocks local logout.
func (m *Manager) Leave(ctx context.Context) error {
	m.mu.Lock()
	id := m.id
	m.name = ""
	m.id = ""
	m.mu.Unlock()

	if id == "" {
		return nil
	}

	if err := m.store.Delete(ctx, types.CollectionParticipants, id); err != nil {
		return fmt.Errorf("failed to remove participant %s: %w", id, err)
	}
	return nil
}
