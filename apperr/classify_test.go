// ABOUTME: Tests for the failure classifier and the user-facing retry helpers.
// ABOUTME: Covers rule ordering, pass-through of classified errors, and foreign values.

package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name      string
		failure   any
		wantKind  Kind
		retryable bool
	}{
		{"network message", errors.New("Network request failed"), KindNetwork, true},
		{"fetch message", errors.New("failed to fetch"), KindNetwork, true},
		{"timeout message", errors.New("upstream Timeout"), KindTimeout, true},
		{"408 status", &RawFailure{Message: "bad", Status: 408}, KindTimeout, true},
		{"429 status", &RawFailure{Message: "slow down", Status: 429}, KindRateLimit, true},
		{"rate limit message", errors.New("rate limit exceeded"), KindRateLimit, true},
		{"401 status", &RawFailure{Message: "nope", Status: 401}, KindAuthentication, false},
		{"unauthorized", errors.New("Unauthorized"), KindAuthentication, false},
		{"content policy code", &RawFailure{Message: "blocked", Code: "CONTENT_POLICY_VIOLATION"}, KindContentPolicy, false},
		{"inappropriate", errors.New("Prompt contains inappropriate content"), KindContentPolicy, false},
		{"user rejected", errors.New("User rejected the request."), KindUserRejected, false},
		{"user denied", errors.New("MetaMask: user denied transaction signature"), KindUserRejected, false},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), KindInsufficientFunds, false},
		{"prompt already used", errors.New("execution reverted: PromptAlreadyUsed()"), KindPromptAlreadyUsed, false},
		{"unknown", errors.New("something odd"), KindUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.failure)
			if got == nil {
				t.Fatal("expected classified error, got nil")
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// "connection" (rule 1) appears alongside "timeout" (rule 2).
	got := Classify(errors.New("connection timeout"))
	if got.Kind != KindNetwork {
		t.Errorf("Kind = %s, want %s", got.Kind, KindNetwork)
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	first := Classify(errors.New("rate limit exceeded"))
	second := Classify(first)
	if first != second {
		t.Fatalf("expected the same *AppError back, got %p and %p", first, second)
	}

	wrapped := fmt.Errorf("generate: %w", first)
	if got := Classify(wrapped); got != first {
		t.Errorf("wrapped AppError should pass through unchanged")
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}

func TestClassifyNonErrorValue(t *testing.T) {
	got := Classify(42)
	if got.Kind != KindUnknown {
		t.Errorf("Kind = %s, want %s", got.Kind, KindUnknown)
	}
	if got.Message != "An unexpected error occurred." {
		t.Errorf("Message = %q", got.Message)
	}
	if got.Details != 42 {
		t.Errorf("Details = %v, want 42", got.Details)
	}
	if !got.Retryable {
		t.Error("unknown failures should be retryable")
	}
}

func TestClassifyUnknownKeepsMessage(t *testing.T) {
	got := Classify(errors.New("disk on fire"))
	if got.Message != "disk on fire" {
		t.Errorf("Message = %q, want original message", got.Message)
	}
	if got.Details != "disk on fire" {
		t.Errorf("Details = %v, want original message", got.Details)
	}
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	got := Classify(fmt.Errorf("call: %w", context.DeadlineExceeded))
	if got.Kind != KindTimeout {
		t.Errorf("Kind = %s, want %s", got.Kind, KindTimeout)
	}
}

func TestClassifyErrorStateRoundTrip(t *testing.T) {
	orig := New(KindMintingFailed, "boom", false, nil).WithRetries(1, 1)
	back := Classify(orig.ToErrorState())
	if back.Kind != KindMintingFailed || back.Message != "boom" || back.Retryable {
		t.Errorf("unexpected round trip result: %+v", back)
	}
	if back.RetryCount == nil || *back.RetryCount != 1 {
		t.Errorf("RetryCount lost in round trip")
	}
	if back.Timestamp.UnixMilli() != orig.Timestamp.UnixMilli() {
		t.Errorf("Timestamp = %v, want %v", back.Timestamp, orig.Timestamp)
	}
}

func TestFromMessage(t *testing.T) {
	got := FromMessage("This prompt has already been used")
	if got.Kind != KindPromptAlreadyUsed {
		t.Errorf("Kind = %s, want %s", got.Kind, KindPromptAlreadyUsed)
	}
}

func TestRawFailureError(t *testing.T) {
	f := Rawf(429, "RATE_LIMITED", "too many %s", "requests")
	want := "too many requests (status 429) [RATE_LIMITED]"
	if f.Error() != want {
		t.Errorf("Error() = %q, want %q", f.Error(), want)
	}
}

func TestAppErrorString(t *testing.T) {
	e := New(KindValidation, "Prompt must be at least 3 characters long", false, nil)
	if !strings.HasPrefix(e.Error(), "VALIDATION_ERROR: ") {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range Kinds {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if Kind("NOPE").Valid() {
		t.Error("NOPE should not be valid")
	}
	if len(Kinds) != 15 {
		t.Errorf("len(Kinds) = %d, want 15", len(Kinds))
	}
}

func intp(n int) *int { return &n }

func TestShouldShowRetry(t *testing.T) {
	tests := []struct {
		name  string
		state ErrorState
		want  bool
	}{
		{"not retryable", ErrorState{Retryable: false}, false},
		{"no budget tracked", ErrorState{Retryable: true}, true},
		{"budget remaining", ErrorState{Retryable: true, RetryCount: intp(1), MaxRetries: intp(3)}, true},
		{"budget exhausted", ErrorState{Retryable: true, RetryCount: intp(3), MaxRetries: intp(3)}, false},
		{"zero count", ErrorState{Retryable: true, RetryCount: intp(0), MaxRetries: intp(3)}, true},
	}
	for _, tt := range tests {
		if got := ShouldShowRetry(tt.state); got != tt.want {
			t.Errorf("%s: ShouldShowRetry = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRetryButtonText(t *testing.T) {
	if got := RetryButtonText(ErrorState{}); got != "Try Again" {
		t.Errorf("got %q, want Try Again", got)
	}
	if got := RetryButtonText(ErrorState{RetryCount: intp(2), MaxRetries: intp(5)}); got != "Retry (2/5)" {
		t.Errorf("got %q, want Retry (2/5)", got)
	}
	if got := RetryButtonText(ErrorState{RetryCount: intp(1)}); got != "Retry (1/3)" {
		t.Errorf("got %q, want Retry (1/3)", got)
	}
}

func TestUserFriendlyMessage(t *testing.T) {
	if got := UserFriendlyMessage(ErrorState{Kind: KindNetworkMismatch}); got != "Please switch to Monad Testnet in your wallet." {
		t.Errorf("got %q", got)
	}
	if got := UserFriendlyMessage(ErrorState{Kind: KindValidation, Message: "Prompt must be less than 500 characters"}); got != "Prompt must be less than 500 characters" {
		t.Errorf("validation should surface its own message, got %q", got)
	}
	if got := UserFriendlyMessage(ErrorState{Kind: KindUnknown}); got == "" {
		t.Error("unknown kind should still produce copy")
	}
}

func TestSafeReportRecoversPanic(t *testing.T) {
	r := ReporterFunc(func(ErrorState, map[string]string) { panic("reporter down") })
	SafeReport(r, ErrorState{Kind: KindUnknown}, nil)
	SafeReport(nil, ErrorState{}, nil)
}

func TestLogReporterWritesIncident(t *testing.T) {
	var buf strings.Builder
	r := LogReporter{Logger: newTestLogger(&buf)}
	r.Report(ErrorState{Kind: KindTimeout, Message: "slow"}, map[string]string{"operation": "generation"})
	out := buf.String()
	for _, want := range []string{"component=apperr", "incident_id=", "type=TIMEOUT_ERROR", "operation=generation"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
