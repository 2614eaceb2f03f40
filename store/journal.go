// ABOUTME: Append-only JSONL journal of operation ledger mutations, one sequenced line per change.
// ABOUTME: Keeps every ledger entry past the in-state cap and folds back into a full ledger on replay.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/promptmint/core"
)

// LedgerChange names what happened to a ledger entry.
type LedgerChange string

const (
	LedgerCreated LedgerChange = "created"
	LedgerUpdated LedgerChange = "updated"
)

// JournalEntry is a ledger entry as it looked right after one change.
type JournalEntry struct {
	Seq       uint64                    `json:"seq"`
	At        time.Time                 `json:"at"`
	Change    LedgerChange              `json:"change"`
	Operation core.OperationHistoryItem `json:"operation"`
}

func (e JournalEntry) validate() error {
	switch e.Change {
	case LedgerCreated, LedgerUpdated:
	default:
		return fmt.Errorf("%w: change %q", ErrInvalidJournalEntry, e.Change)
	}
	op := e.Operation
	if op.ID == "" {
		return fmt.Errorf("%w: operation without id", ErrInvalidJournalEntry)
	}
	if op.Type != core.OperationGeneration && op.Type != core.OperationMinting {
		return fmt.Errorf("%w: operation type %q", ErrInvalidJournalEntry, op.Type)
	}
	switch op.Status {
	case core.OperationPending, core.OperationSuccess, core.OperationFailed:
	default:
		return fmt.Errorf("%w: operation status %q", ErrInvalidJournalEntry, op.Status)
	}
	return nil
}

// Journal appends ledger changes to a JSONL file. Sequence numbers continue
// across reopen.
type Journal struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	lastSeq uint64
}

// OpenJournal opens (or creates) the journal at path in append mode.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent dirs: %w", err)
	}
	var lastSeq uint64
	if existing, _, err := scanJournal(path); err == nil {
		for _, e := range existing {
			if e.Seq > lastSeq {
				lastSeq = e.Seq
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{path: path, file: file, lastSeq: lastSeq}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Record appends one ledger change, fsyncs, and returns the written entry.
func (j *Journal) Record(change LedgerChange, at time.Time, item core.OperationHistoryItem) (JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e := JournalEntry{Seq: j.lastSeq + 1, At: at, Change: change, Operation: item}
	if err := e.validate(); err != nil {
		return JournalEntry{}, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("marshal journal entry: %w", err)
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return JournalEntry{}, fmt.Errorf("write journal line: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return JournalEntry{}, fmt.Errorf("fsync: %w", err)
	}
	j.lastSeq = e.Seq
	return e, nil
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	return j.file.Close()
}

// scanJournal returns the valid entries of the file and the 1-based line
// numbers it could not accept.
func scanJournal(path string) ([]JournalEntry, []int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = file.Close() }()

	var entries []JournalEntry
	var bad []int
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e JournalEntry
		if json.Unmarshal([]byte(line), &e) != nil || e.validate() != nil {
			bad = append(bad, n)
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan journal: %w", err)
	}
	return entries, bad, nil
}

// ReplayJournal reads every entry in order. Any unreadable line fails the
// replay; run RepairJournal first after a crash.
func ReplayJournal(path string) ([]JournalEntry, error) {
	entries, bad, err := scanJournal(path)
	if err != nil {
		return nil, fmt.Errorf("open journal for replay: %w", err)
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("%w: line %d", ErrInvalidJournalEntry, bad[0])
	}
	return entries, nil
}

// RepairJournal rewrites the journal with only its valid entries, dropping
// a torn trailing write. Returns the number of entries kept.
func RepairJournal(path string) (int, error) {
	entries, bad, err := scanJournal(path)
	if err != nil {
		return 0, fmt.Errorf("open journal for repair: %w", err)
	}
	if len(bad) == 0 {
		return len(entries), nil
	}

	tmpPath := path + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	enc := json.NewEncoder(tmpFile)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
			return 0, fmt.Errorf("write journal entry %d: %w", e.Seq, err)
		}
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("fsync temp file: %w", err)
	}
	_ = tmpFile.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("rename temp to original: %w", err)
	}
	log.Printf("component=store action=journal_repaired kept=%d dropped_lines=%v", len(entries), bad)
	return len(entries), nil
}

// LedgerFromJournal folds entries into the latest version of every
// operation, newest first. Unlike the in-state ledger it is not capped.
func LedgerFromJournal(entries []JournalEntry) []core.OperationHistoryItem {
	latest := make(map[string]JournalEntry, len(entries))
	for _, e := range entries {
		if prev, ok := latest[e.Operation.ID]; ok && prev.Seq > e.Seq {
			continue
		}
		latest[e.Operation.ID] = e
	}

	items := make([]core.OperationHistoryItem, 0, len(latest))
	for _, e := range latest {
		items = append(items, e.Operation)
	}
	sort.SliceStable(items, func(i, k int) bool {
		if items[i].Timestamp != items[k].Timestamp {
			return items[i].Timestamp > items[k].Timestamp
		}
		return items[i].ID > items[k].ID
	})
	return items
}

// SpawnJournal records every ledger change accepted by c. It subscribes
// losslessly, so no change is skipped. The returned stop function waits
// for the writer to exit.
func SpawnJournal(c *core.Controller, j *Journal) (stop func()) {
	ch := c.SubscribeLossless()
	stopCh := make(chan struct{})
	done := make(chan struct{})

	write := func(change core.Change) {
		var id string
		var kind LedgerChange
		switch a := change.Action.(type) {
		case core.AddOperation:
			id, kind = a.Item.ID, LedgerCreated
		case core.UpdateOperation:
			id, kind = a.ID, LedgerUpdated
		default:
			return
		}
		item, ok := change.State.Operation(id)
		if !ok {
			// Already pushed out of the capped ledger.
			return
		}
		if _, err := j.Record(kind, change.State.LastUpdated, item); err != nil {
			log.Printf("component=store action=journal_failed id=%s err=%v", id, err)
		}
	}

	go func() {
		defer close(done)
		for {
			select {
			case change, ok := <-ch:
				if !ok {
					return
				}
				write(change)
			case <-stopCh:
				for {
					select {
					case change, ok := <-ch:
						if !ok {
							return
						}
						write(change)
						continue
					default:
					}
					c.Unsubscribe(ch)
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopCh) })
		<-done
	}
}
