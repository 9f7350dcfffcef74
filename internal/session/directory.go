package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"liveclass/internal/liveview"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// roomCodeAttempts bounds the uniqueness retry loop at creation. Six random
// digits collide only when many rooms are simultaneously active, so a small
// budget is plenty.
const roomCodeAttempts = 5

// participantCountView is the directory's one named live view.
const participantCountView = "participant-count"

// ParticipantRemover removes the local participant document on leave. The
// identity manager implements it; the directory only needs this one
// operation, declared here so the dependency is explicit at construction.
type ParticipantRemover interface {
	Leave(ctx context.Context) error
}

// Directory owns room lifecycle: code generation, room document creation,
// join validation, termination, and the owner's participant-count view.
type Directory struct {
	store      interfaces.Store
	session    *Context
	views      *liveview.ViewSet
	ownerLabel string
	onCount    func(int)
}

// NewDirectory creates a room directory. onCount is the render step for the
// owner's connected-participants counter; nil disables that view.
func NewDirectory(store interfaces.Store, session *Context, ownerLabel string, onCount func(int)) *Directory {
	return &Directory{
		store:      store,
		session:    session,
		views:      liveview.NewViewSet(store),
		ownerLabel: ownerLabel,
		onCount:    onCount,
	}
}

// GenerateRoomCode returns a 6-digit code, uniformly distributed per digit,
// as a string so leading zeros survive.
func GenerateRoomCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = byte('0' + rand.Intn(10))
	}
	return string(code)
}

// CreateRoom generates a code that no currently-active room holds, writes
// the room document, marks this client as owner, and starts the
// participant-count observation.
func (d *Directory) CreateRoom(ctx context.Context) (string, error) {
	code, err := d.uniqueActiveCode(ctx)
	if err != nil {
		return "", err
	}

	fields := map[string]any{
		"code":          code,
		"teacher":       d.ownerLabel,
		"createdAt":     types.ServerTimestamp,
		"isActive":      true,
		"studentsCount": 0,
	}
	if err := d.store.Put(ctx, types.CollectionRooms, code, fields); err != nil {
		return "", fmt.Errorf("failed to create room: %w", err)
	}

	d.session.Enter(RoleOwner, code)

	if err := d.observeParticipantCount(code); err != nil {
		log.Printf("Participant count view failed to open: room=%s: %v", code, err)
	}

	log.Printf("Room created: code=%s", code)
	return code, nil
}

// uniqueActiveCode retries generation until the code resolves to no active
// room. Inactive rooms keep their codes; only active ones block reuse.
func (d *Directory) uniqueActiveCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code := GenerateRoomCode()

		doc, err := d.store.Get(ctx, types.CollectionRooms, code)
		if err != nil {
			if errors.Is(err, interfaces.ErrDocumentNotFound) {
				return code, nil
			}
			return "", fmt.Errorf("failed to check room code: %w", err)
		}

		room, err := types.DecodeRoom(doc)
		if err != nil {
			return "", fmt.Errorf("failed to decode room %s: %w", doc.ID, err)
		}
		if !room.IsActive {
			return code, nil
		}
	}
	return "", ErrRoomCodeExhausted
}

// observeParticipantCount opens the live view backing the owner's connected
// count. The callback re-checks the session before rendering: a snapshot in
// flight while the room ends must not touch the target.
func (d *Directory) observeParticipantCount(code string) error {
	filters := []types.Filter{{Field: "roomCode", Value: code}}
	return d.views.Open(participantCountView, types.CollectionParticipants, filters,
		func(docs []types.Document) {
			if d.session.RoomCode() != code {
				return
			}
			if d.onCount != nil {
				d.onCount(len(docs))
			}
		})
}

// JoinRoom validates the code against the store and marks this client as a
// participant. Identity confirmation is a separate, deferred step owned by
// the identity manager.
func (d *Directory) JoinRoom(ctx context.Context, code string) (*types.Room, error) {
	if !types.IsValidRoomCode(code) {
		return nil, types.ErrInvalidRoomCode
	}

	doc, err := d.store.Get(ctx, types.CollectionRooms, code)
	if err != nil {
		if errors.Is(err, interfaces.ErrDocumentNotFound) {
			return nil, ErrRoomNotFoundOrInactive
		}
		return nil, fmt.Errorf("failed to read room %s: %w", code, err)
	}

	room, err := types.DecodeRoom(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode room %s: %w", code, err)
	}
	if !room.IsActive {
		return nil, ErrRoomNotFoundOrInactive
	}

	d.session.Enter(RoleParticipant, code)

	log.Printf("Joined room: code=%s", code)
	return room, nil
}

// EndRoom soft-closes the room: isActive flips to false, every view this
// client holds is disposed, and the local session clears. Only the owner may
// end a room. Feature documents are left orphaned but inert; no client
// queries that code once everyone leaves.
func (d *Directory) EndRoom(ctx context.Context) error {
	if d.session.Role() != RoleOwner {
		return ErrNotOwner
	}
	code := d.session.RoomCode()
	if code == "" {
		return ErrNoActiveRoom
	}

	if err := d.store.Update(ctx, types.CollectionRooms, code, map[string]any{"isActive": false}); err != nil {
		return fmt.Errorf("failed to end room %s: %w", code, err)
	}

	d.views.CloseAll()
	d.session.Clear()

	log.Printf("Room ended: code=%s", code)
	return nil
}

// LeaveRoom removes the local participant document (best effort, delegated
// to the identity manager), disposes views, and clears the session.
// Participant-only.
func (d *Directory) LeaveRoom(ctx context.Context, remover ParticipantRemover) error {
	if d.session.Role() != RoleParticipant {
		return ErrNotParticipant
	}
	code := d.session.RoomCode()

	if remover != nil {
		if err := remover.Leave(ctx); err != nil {
			log.Printf("Participant removal failed on leave: room=%s: %v", code, err)
		}
	}

	d.views.CloseAll()
	d.session.Clear()

	log.Printf("Left room: code=%s", code)
	return nil
}

// Detach disposes views and clears the session without touching the room
// document. Used on owner disconnect: the room stays active for a later
// reconnect.
func (d *Directory) Detach() {
	d.views.CloseAll()
	d.session.Clear()
}

// OpenViews returns the number of live views the directory currently holds.
func (d *Directory) OpenViews() int {
	return d.views.OpenCount()
}
