package store

import "errors"

var (
	ErrWriteTimeout   = errors.New("write operation timeout")
	ErrNotifierClosed = errors.New("live query notifier is closed")
)
