// ABOUTME: Operation history ledger helpers: capped prepend and in-place updates.
// ABOUTME: Every helper returns a fresh slice so published snapshots never alias.
package core

// MaxHistory is the number of ledger entries retained, newest first.
const MaxHistory = 50

func prependHistory(history []OperationHistoryItem, item OperationHistoryItem) []OperationHistoryItem {
	n := len(history) + 1
	if n > MaxHistory {
		n = MaxHistory
	}
	out := make([]OperationHistoryItem, 0, n)
	out = append(out, item)
	out = append(out, history[:n-1]...)
	return out
}

func updateHistory(history []OperationHistoryItem, id string, u OperationUpdate) ([]OperationHistoryItem, bool) {
	idx := -1
	for i := range history {
		if history[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return history, false
	}

	out := make([]OperationHistoryItem, len(history))
	copy(out, history)
	item := out[idx]
	if u.Status != nil {
		item.Status = *u.Status
	}
	if u.Error != nil {
		item.Error = *u.Error
	}
	if u.Result != nil {
		item.Result = mergeResult(item.Result, *u.Result)
	}
	out[idx] = item
	return out, true
}

func mergeResult(prev *OperationResult, next OperationResult) *OperationResult {
	merged := OperationResult{}
	if prev != nil {
		merged = *prev
	}
	if next.ImageURL != "" {
		merged.ImageURL = next.ImageURL
	}
	if next.TokenURI != "" {
		merged.TokenURI = next.TokenURI
	}
	if next.TxHash != "" {
		merged.TxHash = next.TxHash
	}
	if next.ExplorerURL != "" {
		merged.ExplorerURL = next.ExplorerURL
	}
	if next.TokenID != "" {
		merged.TokenID = next.TokenID
	}
	return &merged
}

// StatusPtr is a convenience for building OperationUpdate values.
func StatusPtr(s OperationStatus) *OperationStatus { return &s }

// StringPtr is a convenience for building OperationUpdate values.
func StringPtr(s string) *string { return &s }
