// ABOUTME: Tests for boundary prompt validation and upstream failure mapping.
package imagegen

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

func TestValidatePrompt(t *testing.T) {
	cases := []struct {
		prompt string
		want   error
	}{
		{"a cat in space", nil},
		{"", ErrPromptEmpty},
		{"  \t ", ErrPromptEmpty},
		{strings.Repeat("a", MaxPromptLength), nil},
		{strings.Repeat("a", MaxPromptLength+1), ErrPromptTooLong},
		{"Explicit scene", ErrPromptInappropriate},
		{"a peaceful HATEful garden", ErrPromptInappropriate},
	}
	for _, tc := range cases {
		if got := ValidatePrompt(tc.prompt); !errors.Is(got, tc.want) {
			t.Errorf("ValidatePrompt(%.20q) = %v, want %v", tc.prompt, got, tc.want)
		}
	}
}

func TestUpstreamFailureFromAPIError(t *testing.T) {
	cases := []struct {
		err        *openai.Error
		wantStatus int
		wantCode   ErrorCode
	}{
		{&openai.Error{StatusCode: http.StatusUnauthorized}, http.StatusUnauthorized, CodeAuthFailed},
		{&openai.Error{StatusCode: http.StatusTooManyRequests}, http.StatusTooManyRequests, CodeRateLimited},
		{&openai.Error{StatusCode: http.StatusRequestTimeout}, http.StatusRequestTimeout, CodeTimeout},
		{&openai.Error{StatusCode: http.StatusBadRequest, Code: "content_policy_violation"}, http.StatusBadRequest, CodeContentPolicyViolation},
	}
	for _, tc := range cases {
		status, code, msg := upstreamFailure(tc.err)
		if status != tc.wantStatus || code != tc.wantCode || msg == "" {
			t.Errorf("upstreamFailure(status %d) = %d %s %q, want %d %s", tc.err.StatusCode, status, code, msg, tc.wantStatus, tc.wantCode)
		}
	}
}
