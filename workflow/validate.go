// ABOUTME: Client-side prompt validation run before a generation starts.
// ABOUTME: Failures are VALIDATION_ERROR and never reach the retry engine.
package workflow

import (
	"strings"
	"unicode/utf8"

	"github.com/2389-research/promptmint/apperr"
)

const (
	MinPromptLength = 3
	MaxPromptLength = 500
)

// ValidatePrompt checks the trimmed prompt length. It returns nil or a
// non-retryable VALIDATION_ERROR.
func ValidatePrompt(prompt string) *apperr.AppError {
	trimmed := strings.TrimSpace(prompt)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n == 0:
		return apperr.New(apperr.KindValidation, "Please enter a prompt to generate an image", false, nil)
	case n < MinPromptLength:
		return apperr.New(apperr.KindValidation, "Prompt must be at least 3 characters long", false, nil)
	case n > MaxPromptLength:
		return apperr.New(apperr.KindValidation, "Prompt must be less than 500 characters", false, nil)
	}
	return nil
}
