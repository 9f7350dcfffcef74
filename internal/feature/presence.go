package feature

import (
	"context"
	"fmt"

	"liveclass/internal/identity"
	"liveclass/internal/liveview"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

const attendanceView = "attendance"

// AttendanceRoster is the teacher's derived aggregate: the full roster,
// name-sorted, with the present/absent split.
type AttendanceRoster struct {
	Participants []*types.Participant
	PresentCount int
	AbsentCount  int
}

// PresenceSync synchronizes attendance state on participant documents.
type PresenceSync struct {
	store    interfaces.Store
	session  *session.Context
	identity *identity.Manager
	views    *liveview.ViewSet
}

// NewPresenceSync creates a presence synchronizer.
func NewPresenceSync(store interfaces.Store, sess *session.Context, ident *identity.Manager) *PresenceSync {
	return &PresenceSync{
		store:    store,
		session:  sess,
		identity: ident,
		views:    liveview.NewViewSet(store),
	}
}

// MarkPresent flags the local participant as present, stamping the moment
// with the store clock.
func (s *PresenceSync) MarkPresent(ctx context.Context) error {
	if !s.identity.Confirmed() {
		return identity.ErrNotConfirmed
	}

	fields := map[string]any{
		"isPresent":        true,
		"presenceMarkedAt": types.ServerTimestamp,
	}
	if err := s.store.Update(ctx, types.CollectionParticipants, s.identity.ID(), fields); err != nil {
		return fmt.Errorf("failed to mark presence: %w", err)
	}
	return nil
}

// OpenRoster starts the teacher's live attendance view over the whole room.
func (s *PresenceSync) OpenRoster(render func(AttendanceRoster)) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	filters := []types.Filter{{Field: "roomCode", Value: roomCode}}
	return s.views.Open(attendanceView, types.CollectionParticipants, filters,
		func(docs []types.Document) {
			if s.session.RoomCode() != roomCode {
				return
			}
			render(buildRoster(docs))
		})
}

// Cleanup disposes every open view. Idempotent.
func (s *PresenceSync) Cleanup() {
	s.views.CloseAll()
}

func buildRoster(docs []types.Document) AttendanceRoster {
	roster := AttendanceRoster{Participants: decodeParticipantsByName(docs)}
	for _, p := range roster.Participants {
		if p.IsPresent {
			roster.PresentCount++
		} else {
			roster.AbsentCount++
		}
	}
	return roster
}
