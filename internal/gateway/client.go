package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"liveclass/internal/feature"
	"liveclass/internal/identity"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Command is one inbound client message.
type Command struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is one outbound message: a command reply, a live view snapshot,
// or an error.
type Event struct {
	Type      string    `json:"type"`
	View      string    `json:"view,omitempty"`
	Action    string    `json:"action,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is the server-side half of one connected user. It owns the
// session context, the identity, and every feature synchronizer, and it
// pushes each live view's renders to the socket as snapshot events.
type Client struct {
	store      interfaces.Store
	conn       *Connection
	session    *session.Context
	identity   *identity.Manager
	directory  *session.Directory
	questions  *feature.QuestionsSync
	quiz       *feature.QuizSync
	quizPrompt *feature.QuizStudentSync
	hands      *feature.HandRaiseSync
	presence   *feature.PresenceSync
	materials  *feature.MaterialsSync
	activities *feature.ActivitiesSync
}

// NewClient wires a fresh session around one connection.
func NewClient(store interfaces.Store, conn *Connection, ownerLabel string) *Client {
	c := &Client{
		store:   store,
		conn:    conn,
		session: session.NewContext(),
	}
	c.identity = identity.NewManager(store, c.session)
	c.directory = session.NewDirectory(store, c.session, ownerLabel, func(count int) {
		c.pushSnapshot("studentsCount", count)
	})
	c.questions = feature.NewQuestionsSync(store, c.session, c.identity)
	c.quiz = feature.NewQuizSync(store, c.session)
	c.quizPrompt = feature.NewQuizStudentSync(store, c.session, c.identity)
	c.hands = feature.NewHandRaiseSync(store, c.session, c.identity)
	c.presence = feature.NewPresenceSync(store, c.session, c.identity)
	c.materials = feature.NewMaterialsSync(store, c.session)
	c.activities = feature.NewActivitiesSync(store, c.session, c.identity)
	return c
}

// Dispatch decodes and executes one inbound message. Errors are reported
// back to the client as error events, never returned.
func (c *Client) Dispatch(ctx context.Context, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.pushError("", ErrInvalidJSON)
		return
	}

	payload, err := c.execute(ctx, cmd)
	if err != nil {
		c.pushError(cmd.Action, err)
		return
	}
	c.pushReply(cmd.Action, payload)
}

// ownerActions are the commands only the room owner may issue. Everything
// else is open to any role; per-operation checks (identity, room) stay in
// the synchronizers.
var ownerActions = map[string]bool{
	"end_room":           true,
	"mark_answered":      true,
	"delete_question":    true,
	"clear_questions":    true,
	"create_quiz":        true,
	"end_quiz":           true,
	"quiz_results":       true,
	"acknowledge_hand":   true,
	"lower_all_hands":    true,
	"add_material":       true,
	"remove_material":    true,
	"create_activity":    true,
	"delete_activity":    true,
	"activity_responses": true,
}

func (c *Client) execute(ctx context.Context, cmd Command) (any, error) {
	if ownerActions[cmd.Action] && c.session.Role() != session.RoleOwner {
		return nil, session.ErrNotOwner
	}

	switch cmd.Action {
	case "create_room":
		return c.createRoom(ctx)
	case "join_room":
		return c.joinRoom(ctx, cmd.Payload)
	case "end_room":
		return nil, c.endRoom(ctx)
	case "leave_room":
		return nil, c.leaveRoom(ctx)
	case "confirm_name":
		return c.confirmName(ctx, cmd.Payload)

	case "submit_question":
		var p struct {
			Text string `json:"text"`
		}
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return nil, err
		}
		return nil, c.questions.Submit(ctx, p.Text)
	case "mark_answered":
		id, err := payloadID(cmd.Payload, "questionId")
		if err != nil {
			return nil, err
		}
		return nil, c.questions.MarkAnswered(ctx, id)
	case "delete_question":
		id, err := payloadID(cmd.Payload, "questionId")
		if err != nil {
			return nil, err
		}
		return nil, c.questions.Delete(ctx, id)
	case "clear_questions":
		return nil, c.questions.ClearAll(ctx)

	case "create_quiz":
		var draft feature.QuizDraft
		if err := decodePayload(cmd.Payload, &draft); err != nil {
			return nil, err
		}
		id, err := c.quiz.Create(ctx, draft)
		if err != nil {
			return nil, err
		}
		return map[string]any{"quizId": id}, nil
	case "end_quiz":
		return nil, c.quiz.End(ctx)
	case "quiz_results":
		return c.quiz.Results(ctx)
	case "submit_quiz_answer":
		var p struct {
			SelectedOption int `json:"selectedOption"`
		}
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return nil, err
		}
		return nil, c.quizPrompt.SubmitAnswer(ctx, p.SelectedOption)

	case "toggle_hand":
		raised, err := c.hands.Toggle(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"raisedHand": raised}, nil
	case "acknowledge_hand":
		id, err := payloadID(cmd.Payload, "participantId")
		if err != nil {
			return nil, err
		}
		return nil, c.hands.Acknowledge(ctx, id)
	case "lower_all_hands":
		return nil, c.hands.LowerAll(ctx)

	case "mark_present":
		return nil, c.presence.MarkPresent(ctx)

	case "add_material":
		var draft feature.MaterialDraft
		if err := decodePayload(cmd.Payload, &draft); err != nil {
			return nil, err
		}
		id, err := c.materials.Add(ctx, draft)
		if err != nil {
			return nil, err
		}
		return map[string]any{"materialId": id}, nil
	case "remove_material":
		id, err := payloadID(cmd.Payload, "materialId")
		if err != nil {
			return nil, err
		}
		return nil, c.materials.Remove(ctx, id)

	case "create_activity":
		var draft feature.ActivityDraft
		if err := decodePayload(cmd.Payload, &draft); err != nil {
			return nil, err
		}
		id, err := c.activities.Create(ctx, draft)
		if err != nil {
			return nil, err
		}
		return map[string]any{"activityId": id}, nil
	case "delete_activity":
		id, err := payloadID(cmd.Payload, "activityId")
		if err != nil {
			return nil, err
		}
		return nil, c.activities.Delete(ctx, id)
	case "submit_activity_response":
		var p struct {
			ActivityID string `json:"activityId"`
			Text       string `json:"text"`
		}
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return nil, err
		}
		return nil, c.activities.SubmitResponse(ctx, p.ActivityID, p.Text)
	case "activity_responses":
		id, err := payloadID(cmd.Payload, "activityId")
		if err != nil {
			return nil, err
		}
		return c.activities.Responses(ctx, id)
	case "activity_detail":
		id, err := payloadID(cmd.Payload, "activityId")
		if err != nil {
			return nil, err
		}
		return c.activities.ActivityDetail(ctx, id)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, cmd.Action)
	}
}

func (c *Client) createRoom(ctx context.Context) (any, error) {
	code, err := c.directory.CreateRoom(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.openTeacherViews(); err != nil {
		log.Printf("Failed to open teacher views for room %s: %v", code, err)
	}
	return map[string]any{"code": code}, nil
}

func (c *Client) joinRoom(ctx context.Context, payload json.RawMessage) (any, error) {
	var p struct {
		Code string `json:"code"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	room, err := c.directory.JoinRoom(ctx, p.Code)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (c *Client) confirmName(ctx context.Context, payload json.RawMessage) (any, error) {
	var p struct {
		Name string `json:"name"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	if err := c.identity.ConfirmName(ctx, p.Name); err != nil {
		return nil, err
	}
	if err := c.openStudentViews(); err != nil {
		log.Printf("Failed to open student views for %s: %v", c.identity.ID(), err)
	}
	return map[string]any{"studentId": c.identity.ID()}, nil
}

func (c *Client) endRoom(ctx context.Context) error {
	c.closeFeatureViews()
	return c.directory.EndRoom(ctx)
}

func (c *Client) leaveRoom(ctx context.Context) error {
	c.closeFeatureViews()
	return c.directory.LeaveRoom(ctx, c.identity)
}

// openTeacherViews starts every view the teacher dashboard renders from.
func (c *Client) openTeacherViews() error {
	if err := c.questions.OpenTeacherBoard(func(board feature.QuestionBoard) {
		c.pushSnapshot("questions", board)
	}); err != nil {
		return err
	}
	if err := c.quiz.OpenActiveView(func(quiz *types.Quiz) {
		c.pushSnapshot("activeQuiz", quiz)
	}); err != nil {
		return err
	}
	if err := c.hands.OpenRaisedView(func(raised []*types.Participant) {
		c.pushSnapshot("raisedHands", raised)
	}); err != nil {
		return err
	}
	if err := c.presence.OpenRoster(func(roster feature.AttendanceRoster) {
		c.pushSnapshot("attendance", roster)
	}); err != nil {
		return err
	}
	if err := c.materials.OpenList(func(materials []*types.Material) {
		c.pushSnapshot("materials", materials)
	}); err != nil {
		return err
	}
	return c.activities.OpenTeacherBoard(func(board []feature.ActivityOverview) {
		c.pushSnapshot("activities", board)
	})
}

// openStudentViews starts every view the student screen renders from.
// Called after name confirmation; the own-questions and quiz-prompt views
// need the participant identity.
func (c *Client) openStudentViews() error {
	if err := c.questions.OpenOwn(func(questions []*types.Question) {
		c.pushSnapshot("ownQuestions", questions)
	}); err != nil {
		return err
	}
	if err := c.quizPrompt.OpenPrompt(func(prompt feature.QuizPrompt) {
		c.pushSnapshot("quizPrompt", prompt)
	}); err != nil {
		return err
	}
	if err := c.materials.OpenList(func(materials []*types.Material) {
		c.pushSnapshot("materials", materials)
	}); err != nil {
		return err
	}
	return c.activities.OpenStudentBoard(func(board []feature.ActivityStatus) {
		c.pushSnapshot("activities", board)
	})
}

func (c *Client) closeFeatureViews() {
	c.questions.Cleanup()
	c.quiz.Cleanup()
	c.quizPrompt.Cleanup()
	c.hands.Cleanup()
	c.presence.Cleanup()
	c.materials.Cleanup()
	c.activities.Cleanup()
}

// Shutdown tears down the session on disconnect. A participant that never
// left explicitly is removed from the room's roster; a teacher's room
// stays open for reconnection.
func (c *Client) Shutdown(ctx context.Context) {
	c.closeFeatureViews()

	if c.session.Role() == session.RoleParticipant {
		if err := c.directory.LeaveRoom(ctx, c.identity); err != nil {
			log.Printf("Failed to leave room on disconnect: %v", err)
		}
	} else {
		c.directory.Detach()
	}
}

func (c *Client) pushSnapshot(view string, payload any) {
	c.push(Event{Type: "snapshot", View: view, Payload: payload})
}

func (c *Client) pushReply(action string, payload any) {
	c.push(Event{Type: "reply", Action: action, Payload: payload})
}

func (c *Client) pushError(action string, err error) {
	c.push(Event{Type: "error", Action: action, Error: err.Error()})
}

func (c *Client) push(event Event) {
	event.Timestamp = time.Now()
	if err := c.conn.WriteJSON(event); err != nil {
		log.Printf("Failed to push %s event: %v", event.Type, err)
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return ErrInvalidJSON
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrInvalidJSON
	}
	return nil
}

func payloadID(raw json.RawMessage, field string) (string, error) {
	var p map[string]string
	if err := decodePayload(raw, &p); err != nil {
		return "", err
	}
	id := p[field]
	if id == "" {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidJSON, field)
	}
	return id, nil
}
