package gateway

import (
	"log"
	"sync"
)

// Registry tracks live connections so shutdown can close them and the
// health endpoint can report them. Pure connection tracking, no session
// logic.
type Registry struct {
	mu          sync.RWMutex
	connections map[*Connection]struct{}
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[*Connection]struct{}),
	}
}

// Register adds a connection. Idempotent.
func (r *Registry) Register(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[conn] = struct{}{}
}

// Unregister removes a connection. Idempotent.
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, conn)
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// CloseAll closes every live connection. Used at shutdown; each read pump
// unregisters itself as its socket dies.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	connections := make([]*Connection, 0, len(r.connections))
	for conn := range r.connections {
		connections = append(connections, conn)
	}
	r.mu.RUnlock()

	for _, conn := range connections {
		if err := conn.Close(); err != nil {
			log.Printf("Failed to close connection during shutdown: %v", err)
		}
	}
}
