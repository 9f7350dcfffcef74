package types

import (
	"regexp"
	"strings"
)

var roomCodeRegex = regexp.MustCompile(`^[0-9]{6}$`)

// IsValidRoomCode checks the 6-digit string form of a room code. Leading
// zeros are significant, so codes are never handled as numbers.
func IsValidRoomCode(code string) bool {
	return roomCodeRegex.MatchString(code)
}

// IsValidParticipantName checks a display name after trimming. Two
// characters is the floor the original product enforced.
func IsValidParticipantName(name string) bool {
	return len(strings.TrimSpace(name)) >= 2
}

// IsValidQuestionStatus checks the question lifecycle state.
func IsValidQuestionStatus(status string) bool {
	return status == QuestionStatusPending || status == QuestionStatusAnswered
}

// IsValidMaterialType checks the material kind.
func IsValidMaterialType(t string) bool {
	return t == MaterialTypeLink || t == MaterialTypeFile
}

// IsValidActivityType checks the activity response kind.
func IsValidActivityType(t string) bool {
	switch t {
	case ActivityTypeText, ActivityTypeFile, ActivityTypeBoth:
		return true
	default:
		return false
	}
}
