package feature

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"liveclass/internal/identity"
	"liveclass/internal/liveview"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

const (
	activeQuizView  = "active-quiz"
	studentQuizView = "student-quiz"
)

// QuizDraft is the teacher's create form. Exactly four non-empty options
// and one marked correct answer.
type QuizDraft struct {
	Title         string   `validate:"required"`
	Question      string   `validate:"required"`
	Options       []string `validate:"len=4,dive,required"`
	CorrectOption int      `validate:"gte=0,lte=3"`
}

// QuizResults is the teacher's derived aggregate over the response set.
type QuizResults struct {
	Quiz             *types.Quiz
	Responses        []*types.QuizResponse
	TotalStudents    int
	CorrectAnswers   int
	IncorrectAnswers int
}

// QuizPrompt is what the student's render step receives: the active quiz,
// or nil when none, plus the already-responded gate that decides between
// the answer form and the read-only view.
type QuizPrompt struct {
	Quiz             *types.Quiz
	AlreadyResponded bool
}

// QuizSync is the teacher side: create/end the room's quiz, observe the
// active one, tally results.
type QuizSync struct {
	store   interfaces.Store
	session *session.Context
	views   *liveview.ViewSet
}

// NewQuizSync creates the teacher-side quiz synchronizer.
func NewQuizSync(store interfaces.Store, sess *session.Context) *QuizSync {
	return &QuizSync{
		store:   store,
		session: sess,
		views:   liveview.NewViewSet(store),
	}
}

// Create validates the draft and writes a new active quiz. At most one
// active quiz per room is a client convention, not a store constraint, so
// Create refuses while this room already has one; rendering still resolves
// any racing duplicates to the most recently created quiz.
func (s *QuizSync) Create(ctx context.Context, draft QuizDraft) (string, error) {
	if err := validate.Struct(draft); err != nil {
		return "", fmt.Errorf("invalid quiz draft: %w", err)
	}

	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return "", session.ErrNoActiveRoom
	}

	active, err := s.activeQuiz(ctx, roomCode)
	if err != nil {
		return "", err
	}
	if active != nil {
		return "", ErrQuizAlreadyActive
	}

	id := uuid.New().String()
	fields := map[string]any{
		"title":         draft.Title,
		"question":      draft.Question,
		"options":       draft.Options,
		"correctAnswer": draft.CorrectOption,
		"roomCode":      roomCode,
		"isActive":      true,
		"createdAt":     types.ServerTimestamp,
	}
	if err := s.store.Put(ctx, types.CollectionQuizzes, id, fields); err != nil {
		return "", fmt.Errorf("failed to create quiz: %w", err)
	}
	return id, nil
}

// End deactivates the room's active quiz.
func (s *QuizSync) End(ctx context.Context) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	active, err := s.activeQuiz(ctx, roomCode)
	if err != nil {
		return err
	}
	if active == nil {
		return ErrNoActiveQuiz
	}

	fields := map[string]any{"isActive": false}
	if err := s.store.Update(ctx, types.CollectionQuizzes, active.ID, fields); err != nil {
		return fmt.Errorf("failed to end quiz: %w", err)
	}
	return nil
}

// OpenActiveView observes the room's active quiz. The render step receives
// nil when no quiz is active.
func (s *QuizSync) OpenActiveView(render func(*types.Quiz)) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	filters := activeQuizFilters(roomCode)
	return s.views.Open(activeQuizView, types.CollectionQuizzes, filters,
		func(docs []types.Document) {
			if s.session.RoomCode() != roomCode {
				return
			}
			render(resolveActiveQuiz(docs))
		})
}

// Results tallies the response set of the active quiz: per-student rows
// plus the correct/incorrect split.
func (s *QuizSync) Results(ctx context.Context) (*QuizResults, error) {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return nil, session.ErrNoActiveRoom
	}

	quiz, err := s.activeQuiz(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, ErrNoActiveQuiz
	}

	docs, err := s.store.Query(ctx, types.CollectionQuizResponses,
		[]types.Filter{
			{Field: "roomCode", Value: roomCode},
			{Field: "quizId", Value: quiz.ID},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz responses: %w", err)
	}

	results := &QuizResults{Quiz: quiz}
	for _, doc := range docs {
		resp, err := types.DecodeQuizResponse(doc)
		if err != nil {
			log.Printf("Skipping undecodable quiz response %s: %v", doc.ID, err)
			continue
		}
		results.Responses = append(results.Responses, resp)
		if resp.IsCorrect {
			results.CorrectAnswers++
		} else {
			results.IncorrectAnswers++
		}
	}
	results.TotalStudents = len(results.Responses)

	sort.SliceStable(results.Responses, func(i, j int) bool {
		return results.Responses[i].SubmittedAt.Before(results.Responses[j].SubmittedAt)
	})
	return results, nil
}

// Cleanup disposes every open view. Idempotent.
func (s *QuizSync) Cleanup() {
	s.views.CloseAll()
}

func (s *QuizSync) activeQuiz(ctx context.Context, roomCode string) (*types.Quiz, error) {
	docs, err := s.store.Query(ctx, types.CollectionQuizzes, activeQuizFilters(roomCode))
	if err != nil {
		return nil, fmt.Errorf("failed to query active quiz: %w", err)
	}
	return resolveActiveQuiz(docs), nil
}

// QuizStudentSync is the student side: observe the active quiz, gate on a
// prior response, submit an answer.
type QuizStudentSync struct {
	store    interfaces.Store
	session  *session.Context
	identity *identity.Manager
	views    *liveview.ViewSet
}

// NewQuizStudentSync creates the student-side quiz synchronizer.
func NewQuizStudentSync(store interfaces.Store, sess *session.Context, ident *identity.Manager) *QuizStudentSync {
	return &QuizStudentSync{
		store:    store,
		session:  sess,
		identity: ident,
		views:    liveview.NewViewSet(store),
	}
}

// OpenPrompt observes the active quiz and feeds the render step a prompt
// carrying the already-responded flag, so an answered quiz renders
// read-only instead of as a form.
func (s *QuizStudentSync) OpenPrompt(render func(QuizPrompt)) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	filters := activeQuizFilters(roomCode)
	return s.views.Open(studentQuizView, types.CollectionQuizzes, filters,
		func(docs []types.Document) {
			if s.session.RoomCode() != roomCode {
				return
			}

			quiz := resolveActiveQuiz(docs)
			prompt := QuizPrompt{Quiz: quiz}
			if quiz != nil {
				responded, err := s.hasResponded(context.Background(), roomCode, quiz.ID)
				if err != nil {
					log.Printf("Response lookup failed for quiz %s: %v", quiz.ID, err)
					return
				}
				prompt.AlreadyResponded = responded
			}
			render(prompt)
		})
}

// SubmitAnswer records the participant's answer to the active quiz.
// Correctness is computed against the quiz read at submit time; the
// (quiz, participant) pair may answer only once.
func (s *QuizStudentSync) SubmitAnswer(ctx context.Context, selected int) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}
	if !s.identity.Confirmed() {
		return identity.ErrNotConfirmed
	}

	docs, err := s.store.Query(ctx, types.CollectionQuizzes, activeQuizFilters(roomCode))
	if err != nil {
		return fmt.Errorf("failed to query active quiz: %w", err)
	}
	quiz := resolveActiveQuiz(docs)
	if quiz == nil {
		return ErrNoActiveQuiz
	}
	if selected < 0 || selected >= len(quiz.Options) {
		return types.ErrInvalidOptionIndex
	}

	responded, err := s.hasResponded(ctx, roomCode, quiz.ID)
	if err != nil {
		return err
	}
	if responded {
		return ErrAlreadyResponded
	}

	fields := map[string]any{
		"quizId":         quiz.ID,
		"roomCode":       roomCode,
		"studentId":      s.identity.ID(),
		"studentName":    s.identity.Name(),
		"selectedOption": selected,
		"isCorrect":      selected == quiz.CorrectOption,
		"submittedAt":    types.ServerTimestamp,
	}
	if err := s.store.Put(ctx, types.CollectionQuizResponses, uuid.New().String(), fields); err != nil {
		return fmt.Errorf("failed to submit quiz answer: %w", err)
	}
	return nil
}

// Cleanup disposes every open view. Idempotent.
func (s *QuizStudentSync) Cleanup() {
	s.views.CloseAll()
}

// hasResponded is the duplicate-submission gate, keyed by the stable
// participant ID rather than the display name.
func (s *QuizStudentSync) hasResponded(ctx context.Context, roomCode, quizID string) (bool, error) {
	docs, err := s.store.Query(ctx, types.CollectionQuizResponses,
		[]types.Filter{
			{Field: "roomCode", Value: roomCode},
			{Field: "quizId", Value: quizID},
			{Field: "studentId", Value: s.identity.ID()},
		})
	if err != nil {
		return false, fmt.Errorf("failed to query existing response: %w", err)
	}
	return len(docs) > 0, nil
}

func activeQuizFilters(roomCode string) []types.Filter {
	return []types.Filter{
		{Field: "roomCode", Value: roomCode},
		{Field: "isActive", Value: true},
	}
}

// resolveActiveQuiz picks the rendered quiz from a snapshot. The store does
// not prevent two active quizzes from racing into existence; the most
// recently created one wins.
func resolveActiveQuiz(docs []types.Document) *types.Quiz {
	var active *types.Quiz
	for _, doc := range docs {
		q, err := types.DecodeQuiz(doc)
		if err != nil {
			log.Printf("Skipping undecodable quiz %s: %v", doc.ID, err)
			continue
		}
		if active == nil || q.CreatedAt.After(active.CreatedAt) {
			active = q
		}
	}
	return active
}
