// ABOUTME: Sentinel errors for the storage layer.
// ABOUTME: Load rejections are reported with these so callers can log the reason.
package store

import "errors"

var (
	// ErrInvalidKey indicates a storage key that cannot be mapped to a slot.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrStaleSnapshot indicates a persisted snapshot older than the staleness window.
	ErrStaleSnapshot = errors.New("persisted snapshot is stale")

	// ErrInvalidSnapshot indicates a persisted payload that failed shape validation.
	ErrInvalidSnapshot = errors.New("persisted snapshot failed validation")

	// ErrInvalidJournalEntry indicates a journal line that is not a valid ledger change.
	ErrInvalidJournalEntry = errors.New("invalid journal entry")
)
