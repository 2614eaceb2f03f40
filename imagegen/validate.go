// ABOUTME: Boundary validation of prompts accepted by the generation API.
// ABOUTME: Independent of client-side checks: non-empty, length cap, and a flagged-term denylist.
package imagegen

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxPromptLength is the longest prompt the service accepts.
const MaxPromptLength = 1000

// Denylist holds terms that reject a prompt outright.
var Denylist = []string{"nsfw", "explicit", "violence", "hate"}

var (
	ErrPromptEmpty         = errors.New("Prompt cannot be empty")
	ErrPromptTooLong       = errors.New("Prompt must be less than 1000 characters")
	ErrPromptInappropriate = errors.New("Prompt contains inappropriate content")
)

// ValidatePrompt returns nil when the prompt may be sent upstream.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrPromptEmpty
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return ErrPromptTooLong
	}
	lower := strings.ToLower(prompt)
	for _, term := range Denylist {
		if strings.Contains(lower, term) {
			return ErrPromptInappropriate
		}
	}
	return nil
}
