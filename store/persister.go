// ABOUTME: Best-effort persistence of AppState snapshots into a Storage slot.
// ABOUTME: Save never fails the caller; Load rejects stale or malformed payloads.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/2389-research/promptmint/core"
)

// MaxSnapshotAge is the staleness window for persisted snapshots.
const MaxSnapshotAge = 24 * time.Hour

// HistoryIndexer is implemented by storage backends that keep a queryable
// copy of the ledger.
type HistoryIndexer interface {
	IndexHistory(history []core.OperationHistoryItem) error
}

// Persister reads and writes the application snapshot.
type Persister struct {
	storage Storage
	key     string
	maxAge  time.Duration
	now     func() time.Time
}

// NewPersister returns a Persister writing under StateKey.
func NewPersister(s Storage) *Persister {
	return &Persister{storage: s, key: StateKey, maxAge: MaxSnapshotAge, now: time.Now}
}

// WithClock returns a copy of p that uses now for staleness checks.
func (p *Persister) WithClock(now func() time.Time) *Persister {
	cp := *p
	cp.now = now
	return &cp
}

// Storage returns the underlying slot.
func (p *Persister) Storage() Storage { return p.storage }

// Save writes the persistable part of s. Failures are logged and swallowed.
func (p *Persister) Save(s core.AppState) {
	data, err := json.Marshal(core.SnapshotOf(s))
	if err != nil {
		log.Printf("component=store action=save_failed key=%s err=%v", p.key, err)
		return
	}
	if err := p.storage.Set(p.key, string(data)); err != nil {
		log.Printf("component=store action=save_failed key=%s err=%v", p.key, err)
		return
	}
	if idx, ok := p.storage.(HistoryIndexer); ok {
		if err := idx.IndexHistory(s.History); err != nil {
			log.Printf("component=store action=index_failed key=%s err=%v", p.key, err)
		}
	}
}

// Load returns the persisted snapshot. ok is false when nothing usable is
// stored; err explains why a present payload was rejected.
func (p *Persister) Load() (snap core.PersistedState, ok bool, err error) {
	raw, found, err := p.storage.Get(p.key)
	if err != nil {
		return core.PersistedState{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	if !found || raw == "" {
		return core.PersistedState{}, false, nil
	}

	snap, err = DecodeSnapshot([]byte(raw))
	if err != nil {
		return core.PersistedState{}, false, err
	}
	if age := snap.Age(p.now()); age > p.maxAge {
		return core.PersistedState{}, false, fmt.Errorf("%w: age %s", ErrStaleSnapshot, age.Round(time.Second))
	}
	return snap, true, nil
}

// Restore loads the snapshot and applies it to the controller. Rejections
// are logged, leaving the controller untouched.
func (p *Persister) Restore(c *core.Controller) bool {
	snap, ok, err := p.Load()
	if err != nil {
		log.Printf("component=store action=load_rejected key=%s err=%v", p.key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := c.LoadPersistedState(snap); err != nil {
		log.Printf("component=store action=load_failed key=%s err=%v", p.key, err)
		return false
	}
	log.Printf("component=store action=loaded key=%s operations=%d", p.key, len(snap.OperationHistory))
	return true
}

// DecodeSnapshot parses and validates a persisted payload.
func DecodeSnapshot(data []byte) (core.PersistedState, error) {
	var snap core.PersistedState
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.PersistedState{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap.LastUpdated <= 0 {
		return core.PersistedState{}, fmt.Errorf("%w: missing lastUpdated", ErrInvalidSnapshot)
	}
	if g := snap.GenerationState; g != nil {
		switch g.Status {
		case core.GenerationIdle, core.GenerationGenerating, core.GenerationUploading,
			core.GenerationCompleted, core.GenerationError:
		default:
			return core.PersistedState{}, fmt.Errorf("%w: generation status %q", ErrInvalidSnapshot, g.Status)
		}
	}
	if m := snap.MintingState; m != nil {
		switch m.Status {
		case core.MintingIdle, core.MintingPreparing, core.MintingSigning,
			core.MintingMining, core.MintingCompleted, core.MintingError:
		default:
			return core.PersistedState{}, fmt.Errorf("%w: minting status %q", ErrInvalidSnapshot, m.Status)
		}
	}
	for _, item := range snap.OperationHistory {
		if item.ID == "" {
			return core.PersistedState{}, fmt.Errorf("%w: operation without id", ErrInvalidSnapshot)
		}
		if item.Type != core.OperationGeneration && item.Type != core.OperationMinting {
			return core.PersistedState{}, fmt.Errorf("%w: operation type %q", ErrInvalidSnapshot, item.Type)
		}
	}
	return snap, nil
}

// SpawnPersister mirrors every accepted change of c into p. The returned
// stop function flushes pending changes and waits for the writer to exit.
func SpawnPersister(c *core.Controller, p *Persister) (stop func()) {
	ch := c.Subscribe()
	stopCh := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case change, ok := <-ch:
				if !ok {
					return
				}
				p.Save(change.State)
			case <-stopCh:
				drainInto(ch, p)
				c.Unsubscribe(ch)
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopCh) })
		<-done
	}
}

func drainInto(ch chan core.Change, p *Persister) {
	var last *core.AppState
drain:
	for {
		select {
		case change, ok := <-ch:
			if !ok {
				break drain
			}
			s := change.State
			last = &s
		default:
			break drain
		}
	}
	if last != nil {
		p.Save(*last)
	}
}
