// ABOUTME: Closed error taxonomy for the generation and minting workflows.
// ABOUTME: Defines AppError (classified, retryable-aware) and RawFailure (normalized collaborator failure).
package apperr

import (
	"fmt"
	"strconv"
	"time"
)

// Kind is one entry of the closed error taxonomy.
type Kind string

const (
	KindWalletConnection  Kind = "WALLET_CONNECTION"
	KindNetworkMismatch   Kind = "NETWORK_MISMATCH"
	KindGenerationFailed  Kind = "GENERATION_FAILED"
	KindIPFSUploadFailed  Kind = "IPFS_UPLOAD_FAILED"
	KindMintingFailed     Kind = "MINTING_FAILED"
	KindPromptAlreadyUsed Kind = "PROMPT_ALREADY_USED"
	KindNetwork           Kind = "NETWORK_ERROR"
	KindTimeout           Kind = "TIMEOUT_ERROR"
	KindRateLimit         Kind = "RATE_LIMIT_ERROR"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindAuthentication    Kind = "AUTHENTICATION_ERROR"
	KindContentPolicy     Kind = "CONTENT_POLICY_ERROR"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindUserRejected      Kind = "USER_REJECTED"
	KindUnknown           Kind = "UNKNOWN_ERROR"
)

// Kinds lists every member of the taxonomy in declaration order.
var Kinds = []Kind{
	KindWalletConnection, KindNetworkMismatch, KindGenerationFailed,
	KindIPFSUploadFailed, KindMintingFailed, KindPromptAlreadyUsed,
	KindNetwork, KindTimeout, KindRateLimit, KindValidation,
	KindAuthentication, KindContentPolicy, KindInsufficientFunds,
	KindUserRejected, KindUnknown,
}

// Valid reports whether k belongs to the taxonomy.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// AppError is a classified failure. It is the only error type the
// orchestrators surface to the state controller.
type AppError struct {
	Kind      Kind
	Message   string
	Retryable bool
	Details   any
	Timestamp time.Time

	// RetryCount and MaxRetries are set when the failure surfaced from the
	// retry engine after at least one attempt.
	RetryCount *int
	MaxRetries *int
}

// New creates an AppError stamped with the current time.
func New(kind Kind, message string, retryable bool, details any) *AppError {
	return &AppError{
		Kind:      kind,
		Message:   message,
		Retryable: retryable,
		Details:   details,
		Timestamp: time.Now(),
	}
}

func (e *AppError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// IsRetryable mirrors the retryability contract used by the retry engine.
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// WithRetries returns a copy of e annotated with the attempt counters.
func (e *AppError) WithRetries(retryCount, maxRetries int) *AppError {
	cp := *e
	cp.RetryCount = &retryCount
	cp.MaxRetries = &maxRetries
	return &cp
}

// ToErrorState converts the error into the UI-facing record.
func (e *AppError) ToErrorState() ErrorState {
	return ErrorState{
		Kind:       e.Kind,
		Message:    e.Message,
		Details:    e.Details,
		Retryable:  e.Retryable,
		Timestamp:  e.Timestamp.UnixMilli(),
		RetryCount: e.RetryCount,
		MaxRetries: e.MaxRetries,
	}
}

// ErrorState is the active error shown to the user. At most one is live at a
// time and it is never persisted.
type ErrorState struct {
	Kind       Kind   `json:"type"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Retryable  bool   `json:"retryable"`
	Timestamp  int64  `json:"timestamp"`
	RetryCount *int   `json:"retryCount,omitempty"`
	MaxRetries *int   `json:"maxRetries,omitempty"`
}

// RawFailure is the normalized shape every collaborator adapter must produce
// before classification: a message plus optional HTTP status and upstream code.
type RawFailure struct {
	Message string
	Status  int    // 0 when unknown
	Code    string // empty when unknown
	Cause   error
}

func (f *RawFailure) Error() string {
	msg := f.Message
	if f.Status != 0 {
		msg += " (status " + strconv.Itoa(f.Status) + ")"
	}
	if f.Code != "" {
		msg += " [" + f.Code + "]"
	}
	return msg
}

func (f *RawFailure) Unwrap() error {
	return f.Cause
}

// Rawf builds a RawFailure with a formatted message.
func Rawf(status int, code string, format string, args ...any) *RawFailure {
	return &RawFailure{Message: fmt.Sprintf(format, args...), Status: status, Code: code}
}
