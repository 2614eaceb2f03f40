// ABOUTME: Sentinel errors returned when the reducer rejects an action.
// ABOUTME: Rejected actions leave state untouched and are not broadcast.
package core

import "errors"

var (
	// ErrCannotGenerate indicates a generation was started without a prompt
	// or while another workflow was running.
	ErrCannotGenerate = errors.New("generation cannot start in current state")

	// ErrNotGenerating indicates a generation update arrived with no generation in flight.
	ErrNotGenerating = errors.New("no generation in progress")

	// ErrIncompleteResult indicates a generation completed without both image and token URI.
	ErrIncompleteResult = errors.New("generation result requires both image and token URI")

	// ErrCannotMint indicates minting was started without a completed generation
	// or while another minting was running or already completed.
	ErrCannotMint = errors.New("minting cannot start in current state")

	// ErrNotMinting indicates a minting update arrived with no minting in flight.
	ErrNotMinting = errors.New("no minting in progress")

	// ErrTxHashTooEarly indicates a transaction hash was recorded before mining.
	ErrTxHashTooEarly = errors.New("transaction hash may only be recorded at mining")

	// ErrMissingTxHash indicates a minting completion without a transaction hash.
	ErrMissingTxHash = errors.New("minting completion requires a transaction hash")

	// ErrInvalidStatus indicates an update named a status the intent does not allow.
	ErrInvalidStatus = errors.New("invalid status for this intent")

	// ErrMissingOperationID indicates a ledger entry without an id.
	ErrMissingOperationID = errors.New("operation id is required")

	// ErrOperationNotFound indicates a ledger update for an unknown id.
	ErrOperationNotFound = errors.New("operation not found")

	// ErrControllerClosed indicates the controller no longer accepts actions.
	ErrControllerClosed = errors.New("controller closed")

	// ErrUnknownAction indicates the action type is not recognized by the reducer.
	ErrUnknownAction = errors.New("unknown action type")
)

// IsRejection reports whether err is a reducer rejection: the action
// conflicted with the current state rather than failing on its own.
func IsRejection(err error) bool {
	for _, sentinel := range []error{
		ErrCannotGenerate, ErrNotGenerating, ErrIncompleteResult,
		ErrCannotMint, ErrNotMinting, ErrTxHashTooEarly, ErrMissingTxHash,
		ErrInvalidStatus, ErrMissingOperationID, ErrOperationNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
