package session

import "errors"

// Room directory error types
var (
	ErrRoomNotFoundOrInactive = errors.New("room not found or inactive")
	ErrRoomCodeExhausted      = errors.New("could not generate an unused room code")
	ErrNotOwner               = errors.New("only the room owner may perform this operation")
	ErrNotParticipant         = errors.New("only a room participant may perform this operation")
	ErrNoActiveRoom           = errors.New("no active room")
)
