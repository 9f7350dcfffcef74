package types

import (
	"time"
)

// Collection names are the wire contract shared with every client of the
// store. They predate this codebase and must not be renamed.
const (
	CollectionRooms             = "salas"
	CollectionParticipants      = "alunos"
	CollectionQuestions         = "perguntas"
	CollectionQuizzes           = "quizzes"
	CollectionQuizResponses     = "quiz-respostas"
	CollectionMaterials         = "materiais"
	CollectionActivities        = "atividades"
	CollectionActivityResponses = "respostas"
)

// Question lifecycle states.
const (
	QuestionStatusPending  = "pending"
	QuestionStatusAnswered = "answered"
)

// Material kinds.
const (
	MaterialTypeLink = "link"
	MaterialTypeFile = "file"
)

// Activity response kinds.
const (
	ActivityTypeText = "text"
	ActivityTypeFile = "file"
	ActivityTypeBoth = "both"
)

// Room is one classroom session, identified by a 6-digit code. Rooms are
// soft-closed: IsActive flips to false on end, the document is never deleted.
type Room struct {
	ID               string    `json:"-"`
	Code             string    `json:"code"`
	OwnerLabel       string    `json:"teacher"`
	CreatedAt        time.Time `json:"createdAt"`
	IsActive         bool      `json:"isActive"`
	ParticipantCount int       `json:"studentsCount"`
}

// Participant is one student's identity inside one room. The document exists
// exactly when the student has confirmed a name; every write path must
// tolerate its absence.
type Participant struct {
	ID               string     `json:"-"`
	Name             string     `json:"name"`
	RoomCode         string     `json:"roomCode"`
	JoinedAt         time.Time  `json:"joinedAt"`
	IsPresent        bool       `json:"isPresent"`
	HandRaised       bool       `json:"raisedHand"`
	PresenceMarkedAt *time.Time `json:"presenceMarkedAt,omitempty"`
}

// Question is a student-submitted question. AuthorID is the stable
// participant ID; AuthorName is carried purely as a display label.
type Question struct {
	ID         string    `json:"-"`
	Text       string    `json:"text"`
	AuthorID   string    `json:"studentId"`
	AuthorName string    `json:"studentName"`
	RoomCode   string    `json:"roomCode"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Quiz is a single multiple-choice prompt. At most one active quiz per room
// is a client convention, not a store constraint.
type Quiz struct {
	ID            string    `json:"-"`
	Title         string    `json:"title"`
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	CorrectOption int       `json:"correctAnswer"`
	RoomCode      string    `json:"roomCode"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
}

// QuizResponse is one participant's answer to one quiz. Uniqueness per
// (QuizID, ParticipantID) is enforced by the submit gate, not by the store.
type QuizResponse struct {
	ID             string    `json:"-"`
	QuizID         string    `json:"quizId"`
	RoomCode       string    `json:"roomCode"`
	ParticipantID  string    `json:"studentId"`
	AuthorName     string    `json:"studentName"`
	SelectedOption int       `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// Material is a teacher-shared resource, either a link or an uploaded file.
type Material struct {
	ID          string    `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	URL         string    `json:"url,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	FileSize    string    `json:"fileSize,omitempty"`
	RoomCode    string    `json:"roomCode"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Activity is a longer-form assignment with text and/or file responses.
type Activity struct {
	ID          string    `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	DueDate     string    `json:"dueDate,omitempty"`
	MaxFileSize int       `json:"maxFileSize"`
	RoomCode    string    `json:"roomCode"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ActivityResponse is one participant's submission to one activity.
type ActivityResponse struct {
	ID            string    `json:"-"`
	ActivityID    string    `json:"activityId"`
	RoomCode      string    `json:"roomCode"`
	ParticipantID string    `json:"studentId"`
	AuthorName    string    `json:"studentName"`
	TextResponse  string    `json:"textResponse"`
	SubmittedAt   time.Time `json:"submittedAt"`
}
