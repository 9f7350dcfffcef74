package identity

import "errors"

var (
	ErrAlreadyConfirmed = errors.New("identity already confirmed this session")
	ErrNotConfirmed     = errors.New("participant name not confirmed yet")
)
