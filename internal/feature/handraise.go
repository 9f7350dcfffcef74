package feature

import (
	"context"
	"fmt"
	"log"
	"sort"

	"liveclass/internal/identity"
	"liveclass/internal/liveview"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

const raisedHandsView = "raised-hands"

// HandRaiseSync synchronizes the raised-hand flag on participant documents.
// Two tabs toggling the same participant race last-write-wins with no
// version check; that is the documented store-wide policy, not a bug to fix
// here.
type HandRaiseSync struct {
	store    interfaces.Store
	session  *session.Context
	identity *identity.Manager
	views    *liveview.ViewSet
}

// NewHandRaiseSync creates a hand-raise synchronizer.
func NewHandRaiseSync(store interfaces.Store, sess *session.Context, ident *identity.Manager) *HandRaiseSync {
	return &HandRaiseSync{
		store:    store,
		session:  sess,
		identity: ident,
		views:    liveview.NewViewSet(store),
	}
}

// Toggle flips the local participant's raised-hand flag and returns the new
// state.
func (s *HandRaiseSync) Toggle(ctx context.Context) (bool, error) {
	if !s.identity.Confirmed() {
		return false, identity.ErrNotConfirmed
	}
	id := s.identity.ID()

	doc, err := s.store.Get(ctx, types.CollectionParticipants, id)
	if err != nil {
		return false, fmt.Errorf("failed to read participant %s: %w", id, err)
	}
	participant, err := types.DecodeParticipant(doc)
	if err != nil {
		return false, fmt.Errorf("failed to decode participant %s: %w", id, err)
	}

	raised := !participant.HandRaised
	if err := s.store.Update(ctx, types.CollectionParticipants, id,
		map[string]any{"raisedHand": raised}); err != nil {
		return false, fmt.Errorf("failed to update raised hand: %w", err)
	}
	return raised, nil
}

// Acknowledge lowers one participant's hand. Teacher action.
func (s *HandRaiseSync) Acknowledge(ctx context.Context, participantID string) error {
	if err := s.store.Update(ctx, types.CollectionParticipants, participantID,
		map[string]any{"raisedHand": false}); err != nil {
		return fmt.Errorf("failed to acknowledge hand: %w", err)
	}
	return nil
}

// LowerAll lowers every raised hand in the room, one document at a time.
func (s *HandRaiseSync) LowerAll(ctx context.Context) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	docs, err := s.store.Query(ctx, types.CollectionParticipants, raisedHandFilters(roomCode))
	if err != nil {
		return fmt.Errorf("failed to list raised hands: %w", err)
	}

	for _, doc := range docs {
		if err := s.store.Update(ctx, types.CollectionParticipants, doc.ID,
			map[string]any{"raisedHand": false}); err != nil {
			return fmt.Errorf("failed to lower hand of %s: %w", doc.ID, err)
		}
	}
	return nil
}

// OpenRaisedView starts the teacher's live view over participants with a
// raised hand, name-sorted for a stable render.
func (s *HandRaiseSync) OpenRaisedView(render func([]*types.Participant)) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	return s.views.Open(raisedHandsView, types.CollectionParticipants, raisedHandFilters(roomCode),
		func(docs []types.Document) {
			if s.session.RoomCode() != roomCode {
				return
			}
			render(decodeParticipantsByName(docs))
		})
}

// Cleanup disposes every open view. Idempotent.
func (s *HandRaiseSync) Cleanup() {
	s.views.CloseAll()
}

func raisedHandFilters(roomCode string) []types.Filter {
	return []types.Filter{
		{Field: "roomCode", Value: roomCode},
		{Field: "raisedHand", Value: true},
	}
}

func decodeParticipantsByName(docs []types.Document) []*types.Participant {
	participants := make([]*types.Participant, 0, len(docs))
	for _, doc := range docs {
		p, err := types.DecodeParticipant(doc)
		if err != nil {
			log.Printf("Skipping undecodable participant %s: %v", doc.ID, err)
			continue
		}
		participants = append(participants, p)
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].Name < participants[j].Name
	})
	return participants
}
