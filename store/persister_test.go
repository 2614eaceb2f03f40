// ABOUTME: Tests for snapshot persistence across the memory, file and sqlite slots.
// ABOUTME: Covers staleness, shape validation, swallowed write errors, and the mirror goroutine.

package store_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/promptmint/apperr"
	"github.com/2389-research/promptmint/core"
	"github.com/2389-research/promptmint/store"
)

type failingStorage struct{}

func (failingStorage) Get(string) (string, bool, error) { return "", false, errors.New("disk gone") }
func (failingStorage) Set(string, string) error         { return errors.New("disk gone") }

func sampleState(now time.Time) core.AppState {
	s := core.InitialState(now)
	s.Prompt = "A cat on a windowsill"
	s.GeneratedImage = "https://x/img.jpg"
	s.TokenURI = "ipfs://h/metadata.json"
	s.Generation = core.GenerationState{Status: core.GenerationCompleted, Progress: 100}
	s.Error = &apperr.ErrorState{Kind: apperr.KindNetwork, Message: "down"}
	s.IsLoading = true
	s.History = []core.OperationHistoryItem{{
		ID: "generation_1", Type: core.OperationGeneration, Prompt: s.Prompt,
		Status: core.OperationSuccess, Timestamp: now.UnixMilli(),
		Result: &core.OperationResult{ImageURL: s.GeneratedImage, TokenURI: s.TokenURI},
	}}
	return s
}

func storages(t *testing.T) map[string]store.Storage {
	t.Helper()
	db, err := store.OpenSqlite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return map[string]store.Storage{
		"memory": store.NewMemoryStorage(),
		"file":   store.NewFileStorage(t.TempDir()),
		"sqlite": db,
	}
}

func TestPersisterRoundTrip(t *testing.T) {
	now := time.Now()
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			p := store.NewPersister(s)
			p.Save(sampleState(now))

			snap, ok, err := p.Load()
			if err != nil || !ok {
				t.Fatalf("Load: ok=%v err=%v", ok, err)
			}
			if snap.Prompt != "A cat on a windowsill" {
				t.Errorf("Prompt = %q", snap.Prompt)
			}
			if snap.TokenURI == nil || *snap.TokenURI != "ipfs://h/metadata.json" {
				t.Errorf("TokenURI = %v", snap.TokenURI)
			}
			if len(snap.OperationHistory) != 1 {
				t.Errorf("len(OperationHistory) = %d, want 1", len(snap.OperationHistory))
			}
		})
	}
}

func TestPersistedPayloadExcludesErrorAndLoading(t *testing.T) {
	m := store.NewMemoryStorage()
	store.NewPersister(m).Save(sampleState(time.Now()))
	raw, _, _ := m.Get(store.StateKey)
	for _, forbidden := range []string{`"error":{`, `"isLoading"`, `"Error"`} {
		if strings.Contains(raw, forbidden) {
			t.Errorf("payload %s should not contain %s", raw, forbidden)
		}
	}
	for _, want := range []string{`"prompt"`, `"generatedImage"`, `"tokenURI"`, `"generationState"`, `"mintingState"`, `"operationHistory"`, `"lastUpdated"`} {
		if !strings.Contains(raw, want) {
			t.Errorf("payload missing %s", want)
		}
	}
}

func TestPersisterRejectsStale(t *testing.T) {
	m := store.NewMemoryStorage()
	written := time.Now().Add(-25 * time.Hour)
	store.NewPersister(m).Save(sampleState(written))

	_, ok, err := store.NewPersister(m).Load()
	if ok {
		t.Fatal("stale snapshot should not load")
	}
	if !errors.Is(err, store.ErrStaleSnapshot) {
		t.Errorf("err = %v, want ErrStaleSnapshot", err)
	}
}

func TestPersisterRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":         "{{{",
		"no lastUpdated":   `{"prompt":"x"}`,
		"bad status":       `{"lastUpdated":1,"generationState":{"status":"flying","progress":0}}`,
		"bad history":      `{"lastUpdated":1,"operationHistory":[{"id":"","type":"generation"}]}`,
		"bad history type": `{"lastUpdated":1,"operationHistory":[{"id":"a","type":"burning"}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			m := store.NewMemoryStorage()
			_ = m.Set(store.StateKey, payload)
			_, ok, err := store.NewPersister(m).WithClock(func() time.Time { return time.UnixMilli(2) }).Load()
			if ok {
				t.Fatal("malformed snapshot should not load")
			}
			if !errors.Is(err, store.ErrInvalidSnapshot) {
				t.Errorf("err = %v, want ErrInvalidSnapshot", err)
			}
		})
	}
}

func TestPersisterLoadEmpty(t *testing.T) {
	_, ok, err := store.NewPersister(store.NewMemoryStorage()).Load()
	if ok || err != nil {
		t.Errorf("Load on empty slot: ok=%v err=%v", ok, err)
	}
}

func TestPersisterSaveSwallowsErrors(t *testing.T) {
	store.NewPersister(failingStorage{}).Save(sampleState(time.Now()))
}

func TestRestoreDowngradesInFlight(t *testing.T) {
	m := store.NewMemoryStorage()
	s := sampleState(time.Now())
	s.Generation = core.GenerationState{Status: core.GenerationGenerating, Progress: 40}
	p := store.NewPersister(m)
	p.Save(s)

	c := core.Spawn(core.InitialState(time.Now()))
	defer c.Close()
	if !p.Restore(c) {
		t.Fatal("Restore returned false")
	}
	live := c.Snapshot()
	if live.Generation.Status != core.GenerationIdle {
		t.Errorf("generation status = %s, want idle", live.Generation.Status)
	}
	if live.Error != nil || live.IsLoading {
		t.Errorf("error=%v loading=%v, want cleared", live.Error, live.IsLoading)
	}
}

func TestSpawnPersisterMirrorsChanges(t *testing.T) {
	m := store.NewMemoryStorage()
	p := store.NewPersister(m)
	c := core.Spawn(core.InitialState(time.Now()))
	defer c.Close()

	stop := store.SpawnPersister(c, p)
	if err := c.SetPrompt("mirror me"); err != nil {
		t.Fatal(err)
	}
	stop()
	stop()

	snap, ok, err := p.Load()
	if !ok || err != nil {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if snap.Prompt != "mirror me" {
		t.Errorf("Prompt = %q, want mirror me", snap.Prompt)
	}
}

func TestSqliteIndexesHistory(t *testing.T) {
	db, err := store.OpenSqlite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSqlite: %v", err)
	}
	defer func() { _ = db.Close() }()

	now := time.Now()
	s := sampleState(now)
	s.History = append([]core.OperationHistoryItem{{
		ID: "minting_2", Type: core.OperationMinting, Prompt: s.Prompt, Status: core.OperationFailed,
		Timestamp: now.UnixMilli() + 1, Error: "Transaction was rejected by user.",
	}}, s.History...)
	store.NewPersister(db).Save(s)

	all, err := db.ListOperations("", 0)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(all) != 2 || all[0].ID != "minting_2" {
		t.Fatalf("ListOperations = %+v", all)
	}
	if all[0].Result != nil || all[0].Error == "" {
		t.Errorf("failed entry = %+v", all[0])
	}
	if all[1].Result == nil || all[1].Result.ImageURL != "https://x/img.jpg" {
		t.Errorf("generation entry result = %+v", all[1].Result)
	}

	gens, err := db.ListOperations(core.OperationGeneration, 10)
	if err != nil {
		t.Fatalf("ListOperations(generation): %v", err)
	}
	if len(gens) != 1 {
		t.Errorf("len(gens) = %d, want 1", len(gens))
	}
}

func TestFileStorageRejectsBadKeys(t *testing.T) {
	fs := store.NewFileStorage(t.TempDir())
	for _, key := range []string{"", "../escape", ".hidden", `a\b`} {
		if err := fs.Set(key, "x"); !errors.Is(err, store.ErrInvalidKey) {
			t.Errorf("Set(%q) err = %v, want ErrInvalidKey", key, err)
		}
	}
}
