package session

import "sync"

// Role is this client's relationship to the current room. It is local state,
// never persisted: the room code plus this flag are the system's entire
// authorization model.
type Role int

const (
	RoleNone Role = iota
	RoleOwner
	RoleParticipant
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleParticipant:
		return "participant"
	default:
		return "none"
	}
}

// Context is the session context every synchronizer receives at
// construction: the local role and the room code scoping all live views.
// One owner creates it at session start and clears it at session end.
type Context struct {
	mu       sync.RWMutex
	role     Role
	roomCode string
}

// NewContext returns an empty session context.
func NewContext() *Context {
	return &Context{}
}

// Enter records the local role and room code after a successful create or
// join.
func (c *Context) Enter(role Role, roomCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = role
	c.roomCode = roomCode
}

// Clear resets the context to its out-of-room state.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = RoleNone
	c.roomCode = ""
}

// Role returns the local role.
func (c *Context) Role() Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// RoomCode returns the current room code, empty when out of room.
func (c *Context) RoomCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode
}

// InRoom reports whether this client is currently bound to a room. Async
// completion handlers re-check this before touching any render target: the
// room may have been left while their round-trip was in flight.
func (c *Context) InRoom() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role != RoleNone && c.roomCode != ""
}
