package types

import "errors"

var (
	ErrInvalidRoomCode    = errors.New("room code must be exactly 6 digits")
	ErrInvalidName        = errors.New("participant name must have at least 2 characters")
	ErrInvalidStatus      = errors.New("invalid question status")
	ErrInvalidMaterial    = errors.New("invalid material type")
	ErrInvalidActivity    = errors.New("invalid activity type")
	ErrInvalidOptionIndex = errors.New("option index out of range")
)
