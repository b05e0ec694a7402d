package zimage

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePrompt(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		wantErr bool
	}{
		{"valid prompt", "a cat wearing a top hat", false},
		{"empty string", "", true},
		{"whitespace only", "  \t\n  ", true},
		{"null byte", "prompt\x00injection", true},
		{"at max length", strings.Repeat("a", MaxPromptLength), false},
		{"over max length", strings.Repeat("a", MaxPromptLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePrompt(tt.prompt)
			if tt.wantErr && !errors.Is(err, ErrInvalidPrompt) {
				t.Errorf("expected ErrInvalidPrompt, got: %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestSanitizePrompt(t *testing.T) {
	got := SanitizePrompt("  a mountain landscape  \n")
	want := "a mountain landscape"
	if got != want {
		t.Errorf("SanitizePrompt = %q, want %q", got, want)
	}
}

func TestRandomSeed_NonNegative(t *testing.T) {
	for i := 0; i < 100; i++ {
		if seed := RandomSeed(); seed < 0 {
			t.Fatalf("RandomSeed returned negative value: %d", seed)
		}
	}
}
