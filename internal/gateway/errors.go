package gateway

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrWriteTimeout     = errors.New("write operation timed out")
	ErrInvalidJSON      = errors.New("invalid JSON data")
	ErrUnknownAction    = errors.New("unknown action")
)
