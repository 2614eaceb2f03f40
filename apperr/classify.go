// ABOUTME: Maps arbitrary failures (RawFailure, plain errors, foreign values) onto the closed taxonomy.
// ABOUTME: Classification is ordered first-match over message, status and code, and idempotent for AppError.
package apperr

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

const unexpectedMessage = "An unexpected error occurred."

// rule is one ordered classification rule. A rule matches when the failure's
// haystack contains any of its needles.
type rule struct {
	needles   []string
	kind      Kind
	message   string
	retryable bool
}

// rules is evaluated top to bottom; the first match wins.
var rules = []rule{
	{[]string{"network", "fetch", "connection"}, KindNetwork,
		"Network connection failed. Please check your internet connection.", true},
	{[]string{"timeout", "408"}, KindTimeout,
		"Request timed out. Please try again.", true},
	{[]string{"rate limit", "429"}, KindRateLimit,
		"Too many requests. Please wait a moment before trying again.", true},
	{[]string{"authentication", "401", "unauthorized"}, KindAuthentication,
		"Authentication failed. Please check your configuration.", false},
	{[]string{"content_policy_violation", "inappropriate"}, KindContentPolicy,
		"Content policy violation. Please modify your prompt and try again.", false},
	{[]string{"user rejected", "user denied"}, KindUserRejected,
		"Transaction was rejected by user.", false},
	{[]string{"insufficient funds", "insufficient balance"}, KindInsufficientFunds,
		"Insufficient funds to complete the transaction.", false},
	{[]string{"promptalreadyused", "already been used"}, KindPromptAlreadyUsed,
		"This prompt has already been used to mint an NFT. Please try a different prompt.", false},
}

// Classify turns any failure into an AppError.
//
// An *AppError (directly or wrapped) is returned unchanged, so
// Classify(Classify(x)) == Classify(x). A *RawFailure is classified by the
// ordered rules. Any other error is first normalized into a RawFailure.
// Non-error values become UNKNOWN_ERROR carrying the raw value as details.
// Classify(nil) returns nil.
func Classify(failure any) *AppError {
	switch f := failure.(type) {
	case nil:
		return nil
	case *AppError:
		return f
	case ErrorState:
		return fromErrorState(f)
	case *ErrorState:
		return fromErrorState(*f)
	case RawFailure:
		return classifyRaw(&f)
	case *RawFailure:
		return classifyRaw(f)
	case error:
		var appErr *AppError
		if errors.As(f, &appErr) {
			return appErr
		}
		var raw *RawFailure
		if errors.As(f, &raw) {
			return classifyRaw(raw)
		}
		return classifyRaw(Normalize(f))
	default:
		return New(KindUnknown, unexpectedMessage, true, failure)
	}
}

// FromMessage classifies a bare failure message as though it were the
// message of a thrown error.
func FromMessage(msg string) *AppError {
	return classifyRaw(&RawFailure{Message: msg})
}

// Normalize converts a foreign error into a RawFailure. Context deadline
// errors are rewritten so they classify as timeouts.
func Normalize(err error) *RawFailure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &RawFailure{Message: "request timeout: " + err.Error(), Cause: err}
	}
	return &RawFailure{Message: err.Error(), Cause: err}
}

func classifyRaw(f *RawFailure) *AppError {
	haystack := strings.ToLower(f.Message)
	if f.Code != "" {
		haystack += " " + strings.ToLower(f.Code)
	}
	if f.Status != 0 {
		haystack += " " + strconv.Itoa(f.Status)
	}

	for _, r := range rules {
		for _, needle := range r.needles {
			if strings.Contains(haystack, needle) {
				return New(r.kind, r.message, r.retryable, f.Message)
			}
		}
	}

	msg := f.Message
	if msg == "" {
		msg = unexpectedMessage
	}
	return New(KindUnknown, msg, true, f.Message)
}

func fromErrorState(s ErrorState) *AppError {
	e := New(s.Kind, s.Message, s.Retryable, s.Details)
	if !s.Kind.Valid() {
		e.Kind = KindUnknown
	}
	if s.Timestamp != 0 {
		e.Timestamp = time.UnixMilli(s.Timestamp)
	}
	e.RetryCount = s.RetryCount
	e.MaxRetries = s.MaxRetries
	return e
}
