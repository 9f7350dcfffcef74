package feature

import (
	"context"
	"errors"
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

const (
	teacherActivitiesView = "teacher-activities"
	studentActivitiesView = "student-activities"

	defaultMaxFileSizeMB = 10
)

// ActivityDraft is the teacher's create form. DueDate is a free-form
// display string; MaxFileSize is in megabytes and defaults when zero.
type ActivityDraft struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	Type        string `validate:"required,oneof=text file both"`
	DueDate     string
	MaxFileSize int `validate:"gte=0"`
}

// ActivityOverview is one teacher-board row: the activity plus its
// response tally, counting each participant once.
type ActivityOverview struct {
	Activity       *types.Activity
	ResponseCount  int
	UniqueStudents int
}

// ActivityStatus is one student-board row: the activity plus whether this
// participant has already submitted.
type ActivityStatus struct {
	Activity  *types.Activity
	Responded bool
}

// ActivitiesSync synchronizes assignments and their submissions. Teacher
// methods manage the activity set; student methods submit and observe.
type ActivitiesSync struct {
	store    interfaces.Store
	session  *session.Context
	identity *identity.Manager
	views    *liveview.ViewSet
}

// NewActivitiesSync creates an activities synchronizer. The identity
// manager may be nil on the teacher side.
func NewActivitiesSync(store interfaces.Store, sess *session.Context, ident *identity.Manager) *ActivitiesSync {
	return &ActivitiesSync{
		store:    store,
		session:  sess,
		identity: ident,
		views:    liveview.NewViewSet(store),
	}
}

// Create validates the draft and publishes a new activity. Teacher action.
func (s *ActivitiesSync) Create(ctx context.Context, draft ActivityDraft) (string, error) {
	if err := validate.Struct(draft); err != nil {
		return "", fmt.Errorf("invalid activity draft: %w", err)
	}

	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return "", session.ErrNoActiveRoom
	}

	maxSize := draft.MaxFileSize
	if maxSize == 0 {
		maxSize = defaultMaxFileSizeMB
	}

	id := uuid.New().String()
	fields := map[string]any{
		"title":       draft.Title,
		"description": draft.Description,
		"type":        draft.Type,
		"dueDate":     draft.DueDate,
		"maxFileSize": maxSize,
		"roomCode":    roomCode,
		"createdAt":   types.ServerTimestamp,
	}
	if err := s.store.Put(ctx, types.CollectionActivities, id, fields); err != nil {
		return "", fmt.Errorf("failed to create activity: %w", err)
	}
	return id, nil
}

// Delete removes one activity. Its responses stay in the store; they are
// unreachable from the boards once the activity is gone. Teacher action.
func (s *ActivitiesSync) Delete(ctx context.Context, activityID string) error {
	if err := s.store.Delete(ctx, types.CollectionActivities, activityID); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil
}

// SubmitResponse records the participant's text submission to one
// activity. The (activity, participant) pair may submit only once.
func (s *ActivitiesSync) SubmitResponse(ctx context.Context, activityID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyResponse
	}

	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}
	if s.identity == nil || !s.identity.Confirmed() {
		return identity.ErrNotConfirmed
	}

	if _, err := s.activity(ctx, activityID); err != nil {
		return err
	}

	responded, err := s.hasResponded(ctx, roomCode, activityID)
	if err != nil {
		return err
	}
	if responded {
		return ErrAlreadyResponded
	}

	fields := map[string]any{
		"activityId":   activityID,
		"roomCode":     roomCode,
		"studentId":    s.identity.ID(),
		"studentName":  s.identity.Name(),
		"textResponse": text,
		"submittedAt":  types.ServerTimestamp,
	}
	if err := s.store.Put(ctx, types.CollectionActivityResponses, uuid.New().String(), fields); err != nil {
		return fmt.Errorf("failed to submit activity response: %w", err)
	}
	return nil
}

// OpenTeacherBoard observes the room's activities with per-activity
// response tallies, newest first.
func (s *ActivitiesSync) OpenTeacherBoard(render func([]ActivityOverview)) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	filters := []types.Filter{{Field: "roomCode", Value: roomCode}}
	return s.views.Open(teacherActivitiesView, types.CollectionActivities, filters,
		func(docs []types.Document) {
			if s.session.RoomCode() != roomCode {
				return
			}

			board, err := s.buildTeacherBoard(context.Background(), roomCode, docs)
			if err != nil {
				log.Printf("Teacher activity board refresh failed: %v", err)
				return
			}
			render(board)
		})
}

// OpenStudentBoard observes the room's activities with this participant's
// submitted flag per row, newest first.
func (s *ActivitiesSync) OpenStudentBoard(render func([]ActivityStatus)) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	filters := []types.Filter{{Field: "roomCode", Value: roomCode}}
	return s.views.Open(studentActivitiesView, types.CollectionActivities, filters,
		func(docs []types.Document) {
			if s.session.RoomCode() != roomCode {
				return
			}

			board, err := s.buildStudentBoard(context.Background(), roomCode, docs)
			if err != nil {
				log.Printf("Student activity board refresh failed: %v", err)
				return
			}
			render(board)
		})
}

// Responses returns every submission to one activity in submit order.
// Teacher action.
func (s *ActivitiesSync) Responses(ctx context.Context, activityID string) ([]*types.ActivityResponse, error) {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return nil, session.ErrNoActiveRoom
	}

	docs, err := s.store.Query(ctx, types.CollectionActivityResponses,
		[]types.Filter{
			{Field: "roomCode", Value: roomCode},
			{Field: "activityId", Value: activityID},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to query activity responses: %w", err)
	}

	responses := decodeActivityResponses(docs)
	sort.SliceStable(responses, func(i, j int) bool {
		return responses[i].SubmittedAt.Before(responses[j].SubmittedAt)
	})
	return responses, nil
}

// ActivityDetail returns one activity together with this participant's
// already-responded flag, the gate between the submission form and the
// read-only view.
func (s *ActivitiesSync) ActivityDetail(ctx context.Context, activityID string) (ActivityStatus, error) {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return ActivityStatus{}, session.ErrNoActiveRoom
	}

	activity, err := s.activity(ctx, activityID)
	if err != nil {
		return ActivityStatus{}, err
	}

	status := ActivityStatus{Activity: activity}
	if s.identity != nil && s.identity.Confirmed() {
		responded, err := s.hasResponded(ctx, roomCode, activityID)
		if err != nil {
			return ActivityStatus{}, err
		}
		status.Responded = responded
	}
	return status, nil
}

// Cleanup disposes every open view. Idempotent.
func (s *ActivitiesSync) Cleanup() {
	s.views.CloseAll()
}

func (s *ActivitiesSync) activity(ctx context.Context, activityID string) (*types.Activity, error) {
	doc, err := s.store.Get(ctx, types.CollectionActivities, activityID)
	if err != nil {
		if errors.Is(err, interfaces.ErrDocumentNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return types.DecodeActivity(doc)
}

// hasResponded is the duplicate-submission gate, keyed by the stable
// participant ID rather than the display name.
func (s *ActivitiesSync) hasResponded(ctx context.Context, roomCode, activityID string) (bool, error) {
	docs, err := s.store.Query(ctx, types.CollectionActivityResponses,
		[]types.Filter{
			{Field: "roomCode", Value: roomCode},
			{Field: "activityId", Value: activityID},
			{Field: "studentId", Value: s.identity.ID()},
		})
	if err != nil {
		return false, fmt.Errorf("failed to query existing response: %w", err)
	}
	return len(docs) > 0, nil
}

func (s *ActivitiesSync) buildTeacherBoard(ctx context.Context, roomCode string, docs []types.Document) ([]ActivityOverview, error) {
	respDocs, err := s.store.Query(ctx, types.CollectionActivityResponses,
		[]types.Filter{{Field: "roomCode", Value: roomCode}})
	if err != nil {
		return nil, fmt.Errorf("failed to query activity responses: %w", err)
	}

	counts := make(map[string]int)
	students := make(map[string]map[string]struct{})
	for _, resp := range decodeActivityResponses(respDocs) {
		counts[resp.ActivityID]++
		if students[resp.ActivityID] == nil {
			students[resp.ActivityID] = make(map[string]struct{})
		}
		students[resp.ActivityID][resp.ParticipantID] = struct{}{}
	}

	board := make([]ActivityOverview, 0, len(docs))
	for _, activity := range decodeActivities(docs) {
		board = append(board, ActivityOverview{
			Activity:       activity,
			ResponseCount:  counts[activity.ID],
			UniqueStudents: len(students[activity.ID]),
		})
	}
	return board, nil
}

func (s *ActivitiesSync) buildStudentBoard(ctx context.Context, roomCode string, docs []types.Document) ([]ActivityStatus, error) {
	responded := make(map[string]bool)
	if s.identity != nil && s.identity.Confirmed() {
		respDocs, err := s.store.Query(ctx, types.CollectionActivityResponses,
			[]types.Filter{
				{Field: "roomCode", Value: roomCode},
				{Field: "studentId", Value: s.identity.ID()},
			})
		if err != nil {
			return nil, fmt.Errorf("failed to query own responses: %w", err)
		}
		for _, resp := range decodeActivityResponses(respDocs) {
			responded[resp.ActivityID] = true
		}
	}

	board := make([]ActivityStatus, 0, len(docs))
	for _, activity := range decodeActivities(docs) {
		board = append(board, ActivityStatus{
			Activity:  activity,
			Responded: responded[activity.ID],
		})
	}
	return board, nil
}

func decodeActivities(docs []types.Document) []*types.Activity {
	activities := make([]*types.Activity, 0, len(docs))
	for _, doc := range docs {
		a, err := types.DecodeActivity(doc)
		if err != nil {
			log.Printf("Skipping undecodable activity %s: %v", doc.ID, err)
			continue
		}
		activities = append(activities, a)
	}
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	return activities
}

func decodeActivityResponses(docs []types.Document) []*types.ActivityResponse {
	responses := make([]*types.ActivityResponse, 0, len(docs))
	for _, doc := range docs {
		r, err := types.DecodeActivityResponse(doc)
		if err != nil {
			log.Printf("Skipping undecodable activity response %s: %v", doc.ID, err)
			continue
		}
		responses = append(responses, r)
	}
	return responses
}
