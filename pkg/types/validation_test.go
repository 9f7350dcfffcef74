package types

import "testing"

func TestIsValidRoomCode(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		valid bool
	}{
		{"valid code", "123456", true},
		{"valid with leading zeros", "000042", true},
		{"too short", "12345", false},
		{"too long", "1234567", false},
		{"letters", "12a456", false},
		{"empty", "", false},
		{"spaces", "123 56", false},
		{"negative-looking", "-12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidRoomCode(tt.code); got != tt.valid {
				t.Errorf("IsValidRoomCode(%q) = %v, expected %v", tt.code, got, tt.valid)
			}
		})
	}
}

func TestIsValidParticipantName(t *testing.T) {
	tests := []struct {
		name        string
		participant string
		valid       bool
	}{
		{"valid name", "Maria Silva", true},
		{"exactly two characters", "Jo", true},
		{"single character", "J", false},
		{"empty", "", false},
		{"only whitespace", "   ", false},
		{"whitespace padding still counts trimmed length", "  A  ", false},
		{"trimmed to two characters", " Li ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidParticipantName(tt.participant); got != tt.valid {
				t.Errorf("IsValidParticipantName(%q) = %v, expected %v", tt.participant, got, tt.valid)
			}
		})
	}
}

func TestIsValidQuestionStatus(t *testing.T) {
	if !IsValidQuestionStatus(QuestionStatusPending) {
		t.Error("Expected pending to be valid")
	}
	if !IsValidQuestionStatus(QuestionStatusAnswered) {
		t.Error("Expected answered to be valid")
	}
	if IsValidQuestionStatus("archived") {
		t.Error("Expected archived to be invalid")
	}
	if IsValidQuestionStatus("") {
		t.Error("Expected empty status to be invalid")
	}
}

func TestIsValidMaterialType(t *testing.T) {
	if !IsValidMaterialType(MaterialTypeLink) || !IsValidMaterialType(MaterialTypeFile) {
		t.Error("Expected link and file to be valid material types")
	}
	if IsValidMaterialType("video") {
		t.Error("Expected video to be invalid")
	}
}

func TestIsValidActivityType(t *testing.T) {
	for _, valid := range []string{ActivityTypeText, ActivityTypeFile, ActivityTypeBoth} {
		if !IsValidActivityType(valid) {
			t.Errorf("Expected %q to be a valid activity type", valid)
		}
	}
	if IsValidActivityType("audio") {
		t.Error("Expected audio to be invalid")
	}
}
