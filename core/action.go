// ABOUTME: Action is the sealed set of intents the Controller accepts.
// ABOUTME: One variant per intent; fields carry only what the reducer needs.
package core

import "github.com/2389-research/promptmint/apperr"

// Action is a state mutation intent. The set is closed.
type Action interface {
	ActionType() string
	actionSeal()
}

// SetPrompt replaces the prompt and dismisses the active error.
type SetPrompt struct {
	Prompt string
}

func (SetPrompt) ActionType() string { return "SET_PROMPT" }
func (SetPrompt) actionSeal()        {}

// StartGeneration moves generation to generating at 10%.
type StartGeneration struct{}

func (StartGeneration) ActionType() string { return "START_GENERATION" }
func (StartGeneration) actionSeal()        {}

// UpdateGenerationProgress sets progress and a running status.
type UpdateGenerationProgress struct {
	Progress int
	Status   GenerationStatus
}

func (UpdateGenerationProgress) ActionType() string { return "UPDATE_GENERATION_PROGRESS" }
func (UpdateGenerationProgress) actionSeal()        {}

// GenerationProgressTicked advances simulated progress by Step without
// exceeding Ceiling. It only applies while status is generating.
type GenerationProgressTicked struct {
	Step    int
	Ceiling int
}

func (GenerationProgressTicked) ActionType() string { return "GENERATION_PROGRESS_TICKED" }
func (GenerationProgressTicked) actionSeal()        {}

// CompleteGeneration records the generated image and token URI.
type CompleteGeneration struct {
	ImageURL string
	TokenURI string
}

func (CompleteGeneration) ActionType() string { return "GENERATION_SUCCESS" }
func (CompleteGeneration) actionSeal()        {}

// FailGeneration records a classified generation failure. A Precondition
// failure happened before any generation started and is rejected while a
// workflow is running.
type FailGeneration struct {
	Err          *apperr.AppError
	Precondition bool
}

func (FailGeneration) ActionType() string { return "GENERATION_ERROR" }
func (FailGeneration) actionSeal()        {}

// StartMinting moves minting to preparing.
type StartMinting struct{}

func (StartMinting) ActionType() string { return "START_MINTING" }
func (StartMinting) actionSeal()        {}

// UpdateMintingStatus moves minting between running statuses. TxHash is
// only accepted together with MintingMining.
type UpdateMintingStatus struct {
	Status MintingStatus
	TxHash string
}

func (UpdateMintingStatus) ActionType() string { return "UPDATE_MINTING_STATUS" }
func (UpdateMintingStatus) actionSeal()        {}

// CompleteMinting marks the mint as confirmed. An empty TxHash keeps the
// hash recorded at mining.
type CompleteMinting struct {
	TxHash string
}

func (CompleteMinting) ActionType() string { return "MINTING_SUCCESS" }
func (CompleteMinting) actionSeal()        {}

// FailMinting records a classified minting failure. A Precondition failure
// is rejected while a minting is running.
type FailMinting struct {
	Err          *apperr.AppError
	Precondition bool
}

func (FailMinting) ActionType() string { return "MINTING_ERROR" }
func (FailMinting) actionSeal()        {}

// ClearError dismisses the active error.
type ClearError struct{}

func (ClearError) ActionType() string { return "CLEAR_ERROR" }
func (ClearError) actionSeal()        {}

// ResetGeneration discards the generated image and returns to idle.
type ResetGeneration struct{}

func (ResetGeneration) ActionType() string { return "RESET_GENERATION" }
func (ResetGeneration) actionSeal()        {}

// ResetMinting returns minting to idle.
type ResetMinting struct{}

func (ResetMinting) ActionType() string { return "RESET_MINTING" }
func (ResetMinting) actionSeal()        {}

// AddOperation prepends a ledger entry.
type AddOperation struct {
	Item OperationHistoryItem
}

func (AddOperation) ActionType() string { return "ADD_OPERATION_HISTORY" }
func (AddOperation) actionSeal()        {}

// UpdateOperation mutates a ledger entry in place.
type UpdateOperation struct {
	ID     string
	Update OperationUpdate
}

func (UpdateOperation) ActionType() string { return "UPDATE_OPERATION_HISTORY" }
func (UpdateOperation) actionSeal()        {}

// LoadPersistedState rehydrates a persisted snapshot.
type LoadPersistedState struct {
	Snapshot PersistedState
}

func (LoadPersistedState) ActionType() string { return "LOAD_PERSISTED_STATE" }
func (LoadPersistedState) actionSeal()        {}

// OperationUpdate lists the ledger fields to change. Nil fields are left
// alone; Result fields are merged, so later stages add to earlier ones.
type OperationUpdate struct {
	Status *OperationStatus
	Result *OperationResult
	Error  *string
}
