package models

import "testing"

func intPtr(v int) *int { return &v }

func TestAnswerMatchesType(t *testing.T) {
	tests := []struct {
		name     string
		answer   Answer
		slide    SlideType
		expected bool
	}{
		{"selected matches multiple_choice", Answer{Selected: []int{0, 2}}, SlideTypeMultipleChoice, true},
		{"empty selected list still matches", Answer{Selected: []int{}}, SlideTypeMultipleChoice, true},
		{"value does not match multiple_choice", Answer{Value: intPtr(3)}, SlideTypeMultipleChoice, false},
		{"value matches scale", Answer{Value: intPtr(4)}, SlideTypeScale, true},
		{"zero value still matches scale", Answer{Value: intPtr(0)}, SlideTypeScale, true},
		{"text does not match scale", Answer{Text: "4"}, SlideTypeScale, false},
		{"words match word_cloud", Answer{Words: []string{"go"}}, SlideTypeWordCloud, true},
		{"selected does not match word_cloud", Answer{Selected: []int{1}}, SlideTypeWordCloud, false},
		{"text matches open_ended", Answer{Text: "an opinion"}, SlideTypeOpenEnded, true},
		{"empty text does not match open_ended", Answer{}, SlideTypeOpenEnded, false},
		{"nothing matches welcome", Answer{Text: "hi"}, SlideTypeWelcome, false},
		{"nothing matches content", Answer{Selected: []int{0}}, SlideTypeContent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.answer.MatchesType(tt.slide); got != tt.expected {
				t.Errorf("MatchesType(%v) = %v, want %v", tt.slide, got, tt.expected)
			}
		})
	}
}
