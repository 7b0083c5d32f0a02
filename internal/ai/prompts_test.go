package ai

import (
	"strings"
	"testing"
)

func TestBuildGradeSystemPrompt(t *testing.T) {
	prompt := buildGradeSystemPrompt("What is photosynthesis?", "Plants convert light into chemical energy.")

	if !strings.Contains(prompt, "What is photosynthesis?") {
		t.Error("prompt should contain question text")
	}
	if !strings.Contains(prompt, "Plants convert light into chemical energy.") {
		t.Error("prompt should contain reference answer")
	}
	if !strings.Contains(prompt, `"correct"`) {
		t.Error("prompt should describe the JSON shape")
	}
}

func TestBuildNarrativeUserPrompt(t *testing.T) {
	results := []TopicResult{
		{TopicName: "Cell Biology", Total: 5, Correct: 4, Percent: 80},
		{TopicName: "Genetics", Total: 5, Correct: 1, Percent: 20},
	}

	prompt := buildNarrativeUserPrompt("Biology Diagnostic", 50, results)

	if !strings.Contains(prompt, "Biology Diagnostic") {
		t.Error("prompt should contain exam title")
	}
	if !strings.Contains(prompt, "Cell Biology: 4/5 correct (80.0%)") {
		t.Errorf("prompt should contain topic lines, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Genetics: 1/5 correct (20.0%)") {
		t.Errorf("prompt should contain every topic, got:\n%s", prompt)
	}
}

func TestWellFormed(t *testing.T) {
	tests := []struct {
		name string
		q    GeneratedQuestion
		want bool
	}{
		{"valid single select", GeneratedQuestion{
			Text: "q", Type: "SINGLE_SELECT",
			Options: []string{"a", "b", "c"}, CorrectAnswer: "b",
		}, true},
		{"answer not among options", GeneratedQuestion{
			Text: "q", Type: "SINGLE_SELECT",
			Options: []string{"a", "b"}, CorrectAnswer: "c",
		}, false},
		{"single option", GeneratedQuestion{
			Text: "q", Type: "SINGLE_SELECT",
			Options: []string{"a"}, CorrectAnswer: "a",
		}, false},
		{"valid true false", GeneratedQuestion{
			Text: "q", Type: "TRUE_FALSE", CorrectAnswer: "true",
		}, true},
		{"true false cased answer", GeneratedQuestion{
			Text: "q", Type: "TRUE_FALSE", CorrectAnswer: " False ",
		}, true},
		{"true false with bad answer", GeneratedQuestion{
			Text: "q", Type: "TRUE_FALSE", CorrectAnswer: "yes",
		}, false},
		{"valid free text", GeneratedQuestion{
			Text: "q", Type: "FREE_TEXT", CorrectAnswer: "anything",
		}, true},
		{"missing text", GeneratedQuestion{
			Type: "FREE_TEXT", CorrectAnswer: "a",
		}, false},
		{"unknown type", GeneratedQuestion{
			Text: "q", Type: "ESSAY", CorrectAnswer: "a",
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wellFormed(tt.q); got != tt.want {
				t.Errorf("wellFormed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanonicalizeTrueFalse(t *testing.T) {
	got := canonicalize(GeneratedQuestion{
		Text: "q", Type: "TRUE_FALSE", CorrectAnswer: " False ",
	})
	if len(got.Options) != 2 || got.Options[0] != "true" || got.Options[1] != "false" {
		t.Errorf("options = %v, want the fixed true/false pair", got.Options)
	}
	if got.CorrectAnswer != "false" {
		t.Errorf("correct answer = %q, want %q", got.CorrectAnswer, "false")
	}

	// Other types pass through untouched.
	single := GeneratedQuestion{
		Text: "q", Type: "SINGLE_SELECT",
		Options: []string{"a", "b"}, CorrectAnswer: "b",
	}
	if got := canonicalize(single); got.CorrectAnswer != "b" || len(got.Options) != 2 {
		t.Errorf("single select mutated: %+v", got)
	}
}
