// ABOUTME: PersistedState is the safety-filtered shape written to durable storage.
// ABOUTME: It excludes the loading flag and the active error by construction.
package core

import "time"

// PersistedState mirrors the durable snapshot. LastUpdated is unix milliseconds.
type PersistedState struct {
	Prompt           string                 `json:"prompt"`
	GeneratedImage   *string                `json:"generatedImage"`
	TokenURI         *string                `json:"tokenURI"`
	GenerationState  *GenerationState       `json:"generationState"`
	MintingState     *MintingState          `json:"mintingState"`
	OperationHistory []OperationHistoryItem `json:"operationHistory"`
	LastUpdated      int64                  `json:"lastUpdated"`
}

// SnapshotOf extracts the persistable part of s.
func SnapshotOf(s AppState) PersistedState {
	gen := s.Generation
	mint := s.Minting
	history := s.History
	if history == nil {
		history = []OperationHistoryItem{}
	}
	return PersistedState{
		Prompt:           s.Prompt,
		GeneratedImage:   optional(s.GeneratedImage),
		TokenURI:         optional(s.TokenURI),
		GenerationState:  &gen,
		MintingState:     &mint,
		OperationHistory: history,
		LastUpdated:      s.LastUpdated.UnixMilli(),
	}
}

// Age reports how old the snapshot is relative to now.
func (p PersistedState) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(p.LastUpdated))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
