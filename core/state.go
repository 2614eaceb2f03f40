// ABOUTME: Canonical application state for the generation and minting workflows.
// ABOUTME: Status enums, ledger entries, and the capability flags derived from state.
package core

import (
	"strings"
	"time"

	"github.com/2389-research/promptmint/apperr"
)

// GenerationStatus is a step of the image generation state machine.
type GenerationStatus string

const (
	GenerationIdle       GenerationStatus = "idle"
	GenerationGenerating GenerationStatus = "generating"
	GenerationUploading  GenerationStatus = "uploading"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationError      GenerationStatus = "error"
)

// Running reports whether a generation is in flight.
func (s GenerationStatus) Running() bool {
	return s == GenerationGenerating || s == GenerationUploading
}

// MintingStatus is a step of the minting state machine.
type MintingStatus string

const (
	MintingIdle      MintingStatus = "idle"
	MintingPreparing MintingStatus = "preparing"
	MintingSigning   MintingStatus = "signing"
	MintingMining    MintingStatus = "mining"
	MintingCompleted MintingStatus = "completed"
	MintingError     MintingStatus = "error"
)

// Running reports whether a minting is in flight.
func (s MintingStatus) Running() bool {
	return s == MintingPreparing || s == MintingSigning || s == MintingMining
}

// GenerationState tracks the image generation workflow.
type GenerationState struct {
	Status   GenerationStatus `json:"status"`
	Progress int              `json:"progress"`
	Error    string           `json:"error,omitempty"`

	// Prompt is the trimmed prompt the image was generated from.
	Prompt string `json:"prompt,omitempty"`
}

// MintingState tracks the minting workflow. TxHash is empty until mining.
type MintingState struct {
	Status MintingStatus `json:"status"`
	TxHash string        `json:"txHash,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// OperationType distinguishes ledger entries.
type OperationType string

const (
	OperationGeneration OperationType = "generation"
	OperationMinting    OperationType = "minting"
)

// OperationStatus is the lifecycle of a ledger entry.
type OperationStatus string

const (
	OperationPending OperationStatus = "pending"
	OperationSuccess OperationStatus = "success"
	OperationFailed  OperationStatus = "error"
)

// OperationResult holds whatever outputs an operation produced.
type OperationResult struct {
	ImageURL    string `json:"imageUrl,omitempty"`
	TokenURI    string `json:"tokenURI,omitempty"`
	TxHash      string `json:"txHash,omitempty"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
	TokenID     string `json:"tokenId,omitempty"`
}

// OperationHistoryItem is one ledger entry. Timestamp is unix milliseconds.
type OperationHistoryItem struct {
	ID        string           `json:"id"`
	Type      OperationType    `json:"type"`
	Prompt    string           `json:"prompt"`
	Status    OperationStatus  `json:"status"`
	Timestamp int64            `json:"timestamp"`
	Result    *OperationResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// AppState is the single source of truth owned by the Controller.
// GeneratedImage and TokenURI are either both empty or both set.
type AppState struct {
	Prompt         string
	GeneratedImage string
	TokenURI       string
	Generation     GenerationState
	Minting        MintingState
	Error          *apperr.ErrorState
	History        []OperationHistoryItem
	IsLoading      bool
	LastUpdated    time.Time
}

// InitialState returns an idle state stamped with now.
func InitialState(now time.Time) AppState {
	return AppState{
		Generation:  GenerationState{Status: GenerationIdle},
		Minting:     MintingState{Status: MintingIdle},
		LastUpdated: now,
	}
}

// IsGenerating reports whether a generation is in flight.
func (s AppState) IsGenerating() bool { return s.Generation.Status.Running() }

// IsMinting reports whether a minting is in flight.
func (s AppState) IsMinting() bool { return s.Minting.Status.Running() }

// CanGenerate is true when there is a prompt and neither workflow is running.
// The two workflows are mutually exclusive.
func (s AppState) CanGenerate() bool {
	return strings.TrimSpace(s.Prompt) != "" && !s.IsGenerating() && !s.IsMinting()
}

// CanMint is true when a generated image and token URI exist and the image
// has not been minted or is not being minted.
func (s AppState) CanMint() bool {
	return s.TokenURI != "" && s.GeneratedImage != "" &&
		!s.IsMinting() && s.Minting.Status != MintingCompleted
}

// Operation returns the ledger entry with the given id.
func (s AppState) Operation(id string) (OperationHistoryItem, bool) {
	for _, item := range s.History {
		if item.ID == id {
			return item, true
		}
	}
	return OperationHistoryItem{}, false
}
