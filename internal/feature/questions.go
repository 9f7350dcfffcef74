package feature

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"
	"liveclass/internal/identity"
	"liveclass/internal/liveview"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// View names within the questions synchronizer.
const (
	teacherQuestionsView = "teacher-questions"
	ownQuestionsView     = "own-questions"
)

// QuestionBoard is the teacher's derived aggregate: the room's questions in
// render order plus the pending count that drives the notification badge.
type QuestionBoard struct {
	Questions    []*types.Question
	PendingCount int
}

// QuestionsSync synchronizes student-submitted questions.
type QuestionsSync struct {
	store    interfaces.Store
	session  *session.Context
	identity *identity.Manager
	views    *liveview.ViewSet
}

// NewQuestionsSync creates a questions synchronizer.
func NewQuestionsSync(store interfaces.Store, sess *session.Context, ident *identity.Manager) *QuestionsSync {
	return &QuestionsSync{
		store:    store,
		session:  sess,
		identity: ident,
		views:    liveview.NewViewSet(store),
	}
}

// Submit writes a new pending question authored by the local participant.
func (s *QuestionsSync) Submit(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyQuestion
	}

	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}
	if !s.identity.Confirmed() {
		return identity.ErrNotConfirmed
	}

	fields := map[string]any{
		"text":        trimmed,
		"studentId":   s.identity.ID(),
		"studentName": s.identity.Name(),
		"roomCode":    roomCode,
		"status":      types.QuestionStatusPending,
		"createdAt":   types.ServerTimestamp,
	}
	if err := s.store.Put(ctx, types.CollectionQuestions, uuid.New().String(), fields); err != nil {
		return fmt.Errorf("failed to submit question: %w", err)
	}
	return nil
}

// MarkAnswered flips a question to the answered state. Teacher action.
func (s *QuestionsSync) MarkAnswered(ctx context.Context, questionID string) error {
	fields := map[string]any{"status": types.QuestionStatusAnswered}
	if err := s.store.Update(ctx, types.CollectionQuestions, questionID, fields); err != nil {
		return fmt.Errorf("failed to mark question answered: %w", err)
	}
	return nil
}

// Delete removes one question. Teacher action.
func (s *QuestionsSync) Delete(ctx context.Context, questionID string) error {
	if err := s.store.Delete(ctx, types.CollectionQuestions, questionID); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return nil
}

// ClearAll removes every question in the current room, one document at a
// time; there are no multi-document transactions to lean on.
func (s *QuestionsSync) ClearAll(ctx context.Context) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	docs, err := s.store.Query(ctx, types.CollectionQuestions,
		[]types.Filter{{Field: "roomCode", Value: roomCode}})
	if err != nil {
		return fmt.Errorf("failed to list questions: %w", err)
	}

	for _, doc := range docs {
		if err := s.store.Delete(ctx, types.CollectionQuestions, doc.ID); err != nil {
			return fmt.Errorf("failed to delete question %s: %w", doc.ID, err)
		}
	}
	return nil
}

// OpenTeacherBoard starts the teacher's live view over all of the room's
// questions. Pending questions sort before answered ones; the secondary
// sort is stable on creation time because the store guarantees no element
// order across snapshots.
func (s *QuestionsSync) OpenTeacherBoard(render func(QuestionBoard)) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	filters := []types.Filter{{Field: "roomCode", Value: roomCode}}
	return s.views.Open(teacherQuestionsView, types.CollectionQuestions, filters,
		func(docs []types.Document) {
			if s.session.RoomCode() != roomCode {
				return
			}
			render(buildQuestionBoard(docs))
		})
}

// OpenOwn starts the student's live view over their own submitted
// questions, keyed by the stable participant ID.
func (s *QuestionsSync) OpenOwn(render func([]*types.Question)) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}
	if !s.identity.Confirmed() {
		return identity.ErrNotConfirmed
	}

	filters := []types.Filter{
		{Field: "roomCode", Value: roomCode},
		{Field: "studentId", Value: s.identity.ID()},
	}
	return s.views.Open(ownQuestionsView, types.CollectionQuestions, filters,
		func(docs []types.Document) {
			if s.session.RoomCode() != roomCode {
				return
			}
			render(decodeQuestions(docs))
		})
}

// Cleanup disposes every open view. Idempotent.
func (s *QuestionsSync) Cleanup() {
	s.views.CloseAll()
}

// OpenViews returns the number of live views currently held.
func (s *QuestionsSync) OpenViews() int {
	return s.views.OpenCount()
}

func decodeQuestions(docs []types.Document) []*types.Question {
	questions := make([]*types.Question, 0, len(docs))
	for _, doc := range docs {
		q, err := types.DecodeQuestion(doc)
		if err != nil {
			log.Printf("Skipping undecodable question %s: %v", doc.ID, err)
			continue
		}
		questions = append(questions, q)
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].CreatedAt.Before(questions[j].CreatedAt)
	})
	return questions
}

func buildQuestionBoard(docs []types.Document) QuestionBoard {
	questions := decodeQuestions(docs)

	pending := 0
	for _, q := range questions {
		if q.Status == types.QuestionStatusPending {
			pending++
		}
	}

	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Status == types.QuestionStatusPending &&
			questions[j].Status != types.QuestionStatusPending
	})

	return QuestionBoard{Questions: questions, PendingCount: pending}
}
