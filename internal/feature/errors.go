package feature

import "errors"

// Feature synchronizer error types
var (
	ErrEmptyQuestion     = errors.New("question text cannot be empty")
	ErrEmptyResponse     = errors.New("response text cannot be empty")
	ErrNoActiveQuiz      = errors.New("no active quiz in this room")
	ErrQuizAlreadyActive = errors.New("a quiz is already active in this room")
	ErrAlreadyResponded  = errors.New("participant already responded")
	ErrInvalidURL        = errors.New("material URL is not a valid http(s) URL")
	ErrMissingFileName   = errors.New("file material requires a file name")
	ErrActivityNotFound  = errors.New("activity not found")
)
