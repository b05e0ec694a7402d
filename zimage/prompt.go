package zimage

import (
	"fmt"
	"strings"
)

// ValidatePrompt validates a prompt string for generation.
// Pure function with no side effects.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt cannot be empty", ErrInvalidPrompt)
	}

	// Null bytes would truncate the prompt at the C boundary.
	if strings.ContainsRune(prompt, '\x00') {
		return fmt.Errorf("%w: prompt contains null bytes", ErrInvalidPrompt)
	}

	if len(prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt length %d exceeds maximum %d",
			ErrInvalidPrompt, len(prompt), MaxPromptLength)
	}

	return nil
}

// SanitizePrompt trims surrounding whitespace from a prompt.
func SanitizePrompt(prompt string) string {
	return strings.TrimSpace(prompt)
}
