// ABOUTME: Per-invocation wiring of controller, persistence, journal and workflow collaborators.
// ABOUTME: Restores the persisted snapshot on open and flushes every writer on Close.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/2389-research/promptmint/apperr"
	"github.com/2389-research/promptmint/chain"
	"github.com/2389-research/promptmint/config"
	"github.com/2389-research/promptmint/core"
	"github.com/2389-research/promptmint/imagegen"
	"github.com/2389-research/promptmint/store"
	"github.com/2389-research/promptmint/workflow"
)

type app struct {
	cfg       *config.Config
	ctrl      *core.Controller
	persister *store.Persister
	sqlite    *store.SqliteStorage
	journal   *store.Journal
	stops     []func()
}

func openApp(cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.Home, 0o755); err != nil {
		return nil, fmt.Errorf("create home %s: %w", cfg.Home, err)
	}

	a := &app{cfg: cfg}
	var storage store.Storage
	switch cfg.Storage {
	case config.StorageSqlite:
		db, err := store.OpenSqlite(cfg.StatePath())
		if err != nil {
			return nil, err
		}
		a.sqlite = db
		storage = db
	default:
		storage = store.NewFileStorage(cfg.StatePath())
	}

	a.persister = store.NewPersister(storage)
	a.ctrl = core.Spawn(core.InitialState(time.Now()), core.WithReporter(apperr.LogReporter{}))
	a.persister.Restore(a.ctrl)

	if _, err := os.Stat(cfg.JournalPath()); err == nil {
		if kept, err := store.RepairJournal(cfg.JournalPath()); err != nil {
			log.Printf("component=cmd action=journal_repair_failed err=%v", err)
		} else {
			log.Printf("component=cmd action=journal_repaired entries=%d", kept)
		}
	}
	j, err := store.OpenJournal(cfg.JournalPath())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.journal = j

	a.stops = append(a.stops,
		store.SpawnPersister(a.ctrl, a.persister),
		store.SpawnJournal(a.ctrl, j),
	)
	return a, nil
}

// Close flushes the persister and journal, then releases resources.
func (a *app) Close() {
	for i := len(a.stops) - 1; i >= 0; i-- {
		a.stops[i]()
	}
	a.stops = nil
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			log.Printf("component=cmd action=journal_close_failed err=%v", err)
		}
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			log.Printf("component=cmd action=sqlite_close_failed err=%v", err)
		}
	}
}

func (a *app) network() workflow.NetworkChecker {
	return workflow.HTTPNetworkChecker{URL: a.cfg.HealthEndpoint()}
}

func (a *app) generator() *workflow.Generator {
	return workflow.NewGenerator(a.ctrl,
		imagegen.NewClient(a.cfg.GenerateEndpoint(), nil),
		workflow.WithGenerationNetwork(a.network()),
	)
}

// minter connects a key wallet when a private key is configured. Without
// one the wallet stays disconnected and minting fails its precondition.
func (a *app) minter(ctx context.Context) *workflow.Minter {
	wallet := chain.NewKeyWallet(chain.WalletConfig{
		RPCURLs:        map[int64]string{a.cfg.ChainID: a.cfg.RPCURL},
		DefaultChainID: a.cfg.ChainID,
		PrivateKeyHex:  a.cfg.PrivateKey,
		PollInterval:   a.cfg.PollInterval,
		Confirmations:  a.cfg.Confirmations,
	}, nil)
	if a.cfg.PrivateKey != "" {
		if err := wallet.Connect(ctx, chain.PrivateKeyConnector.ID); err != nil {
			log.Printf("component=cmd action=wallet_connect_failed err=%v", err)
		} else {
			log.Printf("component=cmd action=wallet_connected address=%s chain=%s",
				wallet.Address(), chain.NetworkName(wallet.ChainID()))
		}
	}
	return workflow.NewMinter(a.ctrl, wallet, workflow.MinterConfig{
		Contract:     a.cfg.ContractAddress,
		ChainID:      a.cfg.ChainID,
		ExplorerBase: a.cfg.ExplorerURL,
		Network:      workflow.HTTPNetworkChecker{URL: a.cfg.RPCURL},
	})
}
