// ABOUTME: Pure reducer applying one Action to AppState.
// ABOUTME: Enforces the cross-workflow invariants; rejected actions return a sentinel error.
package core

import (
	"fmt"
	"strings"
	"time"
)

// Progress bounds for the generation workflow.
const (
	ProgressStarted   = 10
	ProgressSimulated = 80
	ProgressUploading = 90
	ProgressDone      = 100
)

// Reduce returns the state after applying a. On error the input state is
// returned unchanged. The input is never mutated.
func Reduce(s AppState, a Action, now time.Time) (AppState, error) {
	next := s
	switch act := a.(type) {
	case SetPrompt:
		next.Prompt = act.Prompt
		next.Error = nil

	case StartGeneration:
		if !s.CanGenerate() {
			return s, ErrCannotGenerate
		}
		next.Generation = GenerationState{
			Status:   GenerationGenerating,
			Progress: ProgressStarted,
			Prompt:   strings.TrimSpace(s.Prompt),
		}
		next.GeneratedImage = ""
		next.TokenURI = ""
		next.Error = nil
		next.IsLoading = true
		// A new image starts a new minting lifecycle.
		next.Minting = MintingState{Status: MintingIdle}

	case UpdateGenerationProgress:
		if !s.IsGenerating() {
			return s, ErrNotGenerating
		}
		if !act.Status.Running() {
			return s, fmt.Errorf("%w: %s", ErrInvalidStatus, act.Status)
		}
		next.Generation.Status = act.Status
		next.Generation.Progress = clampProgress(act.Progress)

	case GenerationProgressTicked:
		if s.Generation.Status != GenerationGenerating {
			return s, ErrNotGenerating
		}
		p := s.Generation.Progress + act.Step
		if p > act.Ceiling {
			p = act.Ceiling
		}
		if p < s.Generation.Progress {
			p = s.Generation.Progress
		}
		next.Generation.Progress = clampProgress(p)

	case CompleteGeneration:
		if !s.IsGenerating() {
			return s, ErrNotGenerating
		}
		if act.ImageURL == "" || act.TokenURI == "" {
			return s, ErrIncompleteResult
		}
		next.GeneratedImage = act.ImageURL
		next.TokenURI = act.TokenURI
		next.Generation = GenerationState{Status: GenerationCompleted, Progress: ProgressDone, Prompt: s.Generation.Prompt}
		next.IsLoading = false
		next.Error = nil

	case FailGeneration:
		if act.Err == nil {
			return s, fmt.Errorf("%w: missing error", ErrInvalidStatus)
		}
		if act.Precondition && (s.IsGenerating() || s.IsMinting()) {
			return s, ErrCannotGenerate
		}
		es := act.Err.ToErrorState()
		next.Generation = GenerationState{Status: GenerationError, Progress: 0, Error: es.Message}
		next.Error = &es
		next.IsLoading = false

	case StartMinting:
		if !s.CanMint() {
			return s, ErrCannotMint
		}
		next.Minting = MintingState{Status: MintingPreparing}
		next.Error = nil
		next.IsLoading = true

	case UpdateMintingStatus:
		if !s.IsMinting() {
			return s, ErrNotMinting
		}
		if !act.Status.Running() {
			return s, fmt.Errorf("%w: %s", ErrInvalidStatus, act.Status)
		}
		if act.TxHash != "" && act.Status != MintingMining {
			return s, ErrTxHashTooEarly
		}
		next.Minting.Status = act.Status
		if act.TxHash != "" {
			next.Minting.TxHash = act.TxHash
		}
		if act.Status != MintingMining {
			next.Minting.TxHash = ""
		}

	case CompleteMinting:
		if !s.IsMinting() {
			return s, ErrNotMinting
		}
		hash := act.TxHash
		if hash == "" {
			hash = s.Minting.TxHash
		}
		if hash == "" {
			return s, ErrMissingTxHash
		}
		next.Minting = MintingState{Status: MintingCompleted, TxHash: hash}
		next.IsLoading = false
		next.Error = nil

	case FailMinting:
		if act.Err == nil {
			return s, fmt.Errorf("%w: missing error", ErrInvalidStatus)
		}
		if act.Precondition && s.IsMinting() {
			return s, ErrCannotMint
		}
		es := act.Err.ToErrorState()
		next.Minting = MintingState{Status: MintingError, Error: es.Message}
		next.Error = &es
		next.IsLoading = false

	case ClearError:
		next.Error = nil

	case ResetGeneration:
		next.Generation = GenerationState{Status: GenerationIdle}
		next.GeneratedImage = ""
		next.TokenURI = ""
		next.Error = nil
		next.IsLoading = false

	case ResetMinting:
		next.Minting = MintingState{Status: MintingIdle}
		next.Error = nil
		next.IsLoading = false

	case AddOperation:
		if act.Item.ID == "" {
			return s, ErrMissingOperationID
		}
		next.History = prependHistory(s.History, act.Item)

	case UpdateOperation:
		history, ok := updateHistory(s.History, act.ID, act.Update)
		if !ok {
			return s, fmt.Errorf("%w: %s", ErrOperationNotFound, act.ID)
		}
		next.History = history

	case LoadPersistedState:
		next = rehydrate(s, act.Snapshot)

	default:
		return s, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}

	next.LastUpdated = now
	return next, nil
}

// rehydrate applies a persisted snapshot. In-flight statuses cannot survive a
// restart, so they fall back to idle; the loading flag and the error channel
// always start clear.
func rehydrate(s AppState, p PersistedState) AppState {
	next := s
	next.Prompt = p.Prompt
	next.GeneratedImage = deref(p.GeneratedImage)
	next.TokenURI = deref(p.TokenURI)
	if next.GeneratedImage == "" || next.TokenURI == "" {
		next.GeneratedImage = ""
		next.TokenURI = ""
	}

	next.Generation = GenerationState{Status: GenerationIdle}
	if g := p.GenerationState; g != nil {
		switch g.Status {
		case GenerationCompleted:
			if next.TokenURI != "" {
				next.Generation = GenerationState{Status: GenerationCompleted, Progress: ProgressDone, Prompt: g.Prompt}
			}
		case GenerationError:
			next.Generation = GenerationState{Status: GenerationError, Error: g.Error}
		}
	}

	next.Minting = MintingState{Status: MintingIdle}
	if m := p.MintingState; m != nil {
		switch m.Status {
		case MintingCompleted:
			if m.TxHash != "" {
				next.Minting = MintingState{Status: MintingCompleted, TxHash: m.TxHash}
			}
		case MintingError:
			next.Minting = MintingState{Status: MintingError, Error: m.Error}
		}
	}

	history := p.OperationHistory
	if len(history) > MaxHistory {
		history = history[:MaxHistory]
	}
	next.History = append([]OperationHistoryItem(nil), history...)

	next.Error = nil
	next.IsLoading = false
	return next
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p >= ProgressDone {
		return ProgressDone - 1
	}
	return p
}
