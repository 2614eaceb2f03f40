// ABOUTME: Minting orchestrator: checks preconditions, submits mint(promptHash, tokenURI) and follows the transaction.
// ABOUTME: Drives idle -> preparing -> signing -> mining -> completed | error via idempotent event handlers.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/2389-research/promptmint/apperr"
	"github.com/2389-research/promptmint/chain"
	"github.com/2389-research/promptmint/core"
	"github.com/2389-research/promptmint/retry"
)

const (
	promptAlreadyUsedMessage = "This prompt has already been used to mint an NFT. Please try a different prompt."
	mintingSuperseded        = "Minting was interrupted before it finished"
)

// Wallet is the chain capability the minter needs.
type Wallet interface {
	IsConnected() bool
	ChainID() int64
	SubmitTransaction(ctx context.Context, contract, method string, args ...any) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) (chain.Settlement, error)
}

// MinterConfig names the contract and chain a Minter targets.
type MinterConfig struct {
	Contract     string
	ChainID      int64
	ExplorerBase string
	Retry        *retry.Config // nil uses MintingConfig
	Network      NetworkChecker
}

// MintResult is the ledger payload of a successful mint.
type MintResult struct {
	OperationID string
	TxHash      string
	TokenID     string
	ExplorerURL string
}

// Minter runs the minting workflow against a controller. The transaction
// event handlers may also be called by an external chain watcher.
type Minter struct {
	ctrl   *core.Controller
	wallet Wallet
	cfg    MinterConfig

	mu   sync.Mutex
	opID string
	last MintResult
}

// NewMinter creates a Minter.
func NewMinter(ctrl *core.Controller, wallet Wallet, cfg MinterConfig) *Minter {
	if cfg.Retry == nil {
		r := retry.MintingConfig()
		cfg.Retry = &r
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = chain.MonadTestnetChainID
	}
	if cfg.ExplorerBase == "" {
		cfg.ExplorerBase = chain.DefaultExplorerBase
	}
	return &Minter{ctrl: ctrl, wallet: wallet, cfg: cfg}
}

// Mint mints the current generated image. Precondition failures are
// recorded as the minting error without creating a ledger entry.
func (m *Minter) Mint(ctx context.Context) (MintResult, error) {
	s := m.ctrl.Snapshot()
	if s.IsMinting() || s.Minting.Status == core.MintingCompleted {
		return MintResult{}, core.ErrCannotMint
	}
	if m.wallet == nil || !m.wallet.IsConnected() {
		return MintResult{}, m.abort(apperr.New(apperr.KindWalletConnection,
			"Please connect your wallet first", false, nil))
	}
	if got := m.wallet.ChainID(); got != m.cfg.ChainID {
		return MintResult{}, m.abort(apperr.New(apperr.KindNetworkMismatch,
			fmt.Sprintf("Please switch to %s", chain.NetworkName(m.cfg.ChainID)), false,
			map[string]int64{"expected": m.cfg.ChainID, "actual": got}))
	}
	prompt := s.Generation.Prompt
	if prompt == "" {
		prompt = strings.TrimSpace(s.Prompt)
	}
	if s.TokenURI == "" || s.GeneratedImage == "" || prompt == "" {
		return MintResult{}, m.abort(apperr.New(apperr.KindValidation,
			"Generate an image before minting", false, nil))
	}
	if !s.CanMint() {
		return MintResult{}, core.ErrCannotMint
	}
	if !online(ctx, m.cfg.Network) {
		return MintResult{}, m.abort(apperr.New(apperr.KindNetwork,
			"Network connection failed. Please check your internet connection.", true, nil))
	}

	opID, err := m.ctrl.AddOperation(core.OperationMinting, prompt)
	if err != nil {
		return MintResult{}, fmt.Errorf("add minting operation: %w", err)
	}
	if err := m.ctrl.StartMinting(); err != nil {
		m.markLedgerFailed(opID, err.Error())
		return MintResult{}, err
	}
	m.mu.Lock()
	m.opID = opID
	m.last = MintResult{OperationID: opID}
	m.mu.Unlock()
	log.Printf("component=workflow action=minting_started operation_id=%s", opID)

	hash := chain.PromptHash(prompt)
	if err := m.ctrl.UpdateMintingStatus(core.MintingSigning, ""); err != nil {
		return MintResult{}, m.OnTransactionFailed(err)
	}

	txHash, err := retry.Do(ctx, *m.cfg.Retry, func(ctx context.Context) (string, error) {
		return m.wallet.SubmitTransaction(ctx, m.cfg.Contract, chain.MintMethod, hash, s.TokenURI)
	}, func(attempt int, cause *apperr.AppError) {
		workflowRetries.WithLabelValues("minting").Inc()
		log.Printf("component=workflow action=minting_retry operation_id=%s attempt=%d type=%s", opID, attempt, cause.Kind)
	})
	if err != nil {
		return MintResult{}, m.OnTransactionFailed(err)
	}
	m.OnTransactionSubmitted(txHash)

	settlement, err := m.wallet.WaitForReceipt(ctx, txHash)
	if err != nil {
		return MintResult{}, m.OnTransactionFailed(err)
	}
	if err := m.OnTransactionSettled(settlement); err != nil {
		return MintResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

// Retry clears the previous error and restarts from preparing.
func (m *Minter) Retry(ctx context.Context) (MintResult, error) {
	if err := m.ctrl.ClearError(); err != nil {
		return MintResult{}, err
	}
	return m.Mint(ctx)
}

// OnTransactionSubmitted moves signing to mining and records the hash on the
// pending ledger entry. It is a no-op in any other status.
func (m *Minter) OnTransactionSubmitted(txHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctrl.Snapshot().Minting.Status != core.MintingSigning || txHash == "" {
		log.Printf("component=workflow action=tx_submitted_ignored tx_hash=%s", txHash)
		return
	}
	if err := m.ctrl.UpdateMintingStatus(core.MintingMining, txHash); err != nil {
		log.Printf("component=workflow action=tx_submitted_rejected tx_hash=%s err=%v", txHash, err)
		return
	}
	explorer := chain.ExplorerTxURL(m.cfg.ExplorerBase, txHash)
	m.last.TxHash = txHash
	m.last.ExplorerURL = explorer
	if opID := m.pendingOperationLocked(); opID != "" {
		if err := m.ctrl.UpdateOperation(opID, core.OperationUpdate{
			Result: &core.OperationResult{TxHash: txHash, ExplorerURL: explorer},
		}); err != nil {
			log.Printf("component=workflow action=ledger_update_failed operation_id=%s err=%v", opID, err)
		}
	}
	log.Printf("component=workflow action=tx_submitted tx_hash=%s", txHash)
}

// OnTransactionSettled completes or fails a mining transaction. It is a
// no-op unless the status is mining.
func (m *Minter) OnTransactionSettled(st chain.Settlement) error {
	m.mu.Lock()
	s := m.ctrl.Snapshot()
	if s.Minting.Status != core.MintingMining {
		m.mu.Unlock()
		log.Printf("component=workflow action=tx_settled_ignored tx_hash=%s status=%s", st.TxHash, s.Minting.Status)
		return nil
	}
	if !st.Success {
		m.mu.Unlock()
		return m.OnTransactionFailed(apperr.New(apperr.KindMintingFailed, "Transaction failed on-chain", false,
			map[string]any{"txHash": st.TxHash, "blockNumber": st.BlockNumber}))
	}
	defer m.mu.Unlock()

	txHash := st.TxHash
	if txHash == "" {
		txHash = s.Minting.TxHash
	}
	tokenID, ok := chain.ExtractTokenID(st.Logs)
	if !ok {
		log.Printf("component=workflow action=token_id_unavailable tx_hash=%s", txHash)
	}
	if err := m.ctrl.CompleteMinting(txHash); err != nil {
		return err
	}

	explorer := chain.ExplorerTxURL(m.cfg.ExplorerBase, txHash)
	m.last.TxHash = txHash
	m.last.ExplorerURL = explorer
	m.last.TokenID = tokenID
	if opID := m.pendingOperationLocked(); opID != "" {
		m.last.OperationID = opID
		if err := m.ctrl.UpdateOperation(opID, core.OperationUpdate{
			Status: core.StatusPtr(core.OperationSuccess),
			Result: &core.OperationResult{TxHash: txHash, ExplorerURL: explorer, TokenID: tokenID},
		}); err != nil {
			log.Printf("component=workflow action=ledger_update_failed operation_id=%s err=%v", opID, err)
		}
	}
	recordOutcome("minting", "success")
	log.Printf("component=workflow action=minting_completed tx_hash=%s token_id=%s confirmations=%d", txHash, tokenID, st.Confirmations)
	return nil
}

// OnTransactionFailed records a failure raised while signing or mining and
// returns the classified error. In any other status nothing is recorded.
func (m *Minter) OnTransactionFailed(failure error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if core.IsRejection(failure) {
		if opID := m.pendingOperationLocked(); opID != "" {
			m.markLedgerFailed(opID, mintingSuperseded)
		}
		recordOutcome("minting", "superseded")
		log.Printf("component=workflow action=minting_superseded err=%v", failure)
		return fmt.Errorf("%w: %v", core.ErrCannotMint, failure)
	}

	appErr := mintFailure(failure)
	status := m.ctrl.Snapshot().Minting.Status
	if status != core.MintingPreparing && status != core.MintingSigning && status != core.MintingMining {
		log.Printf("component=workflow action=tx_failed_ignored status=%s type=%s", status, appErr.Kind)
		return appErr
	}

	recorded, err := m.ctrl.FailMinting(appErr)
	if err != nil {
		return errors.Join(recorded, err)
	}
	if opID := m.pendingOperationLocked(); opID != "" {
		m.markLedgerFailed(opID, recorded.Message)
	}
	recordOutcome("minting", string(recorded.Kind))
	log.Printf("component=workflow action=minting_failed type=%s retryable=%t", recorded.Kind, recorded.Retryable)
	return recorded
}

// abort records a precondition failure; the ledger is not touched.
func (m *Minter) abort(appErr *apperr.AppError) error {
	recorded, err := m.ctrl.AbortMinting(appErr)
	if errors.Is(err, core.ErrCannotMint) {
		return core.ErrCannotMint
	}
	if err != nil {
		return errors.Join(appErr, err)
	}
	recordOutcome("minting", string(recorded.Kind))
	log.Printf("component=workflow action=minting_rejected type=%s", recorded.Kind)
	return recorded
}

// pendingOperationLocked returns the tracked minting entry while it is still
// pending, else the newest pending minting entry. Callers hold m.mu.
func (m *Minter) pendingOperationLocked() string {
	s := m.ctrl.Snapshot()
	if m.opID != "" {
		if item, ok := s.Operation(m.opID); ok && item.Status == core.OperationPending {
			return m.opID
		}
	}
	for _, item := range s.History {
		if item.Type == core.OperationMinting && item.Status == core.OperationPending {
			return item.ID
		}
	}
	return ""
}

func (m *Minter) markLedgerFailed(opID, msg string) {
	if err := m.ctrl.UpdateOperation(opID, core.OperationUpdate{
		Status: core.StatusPtr(core.OperationFailed),
		Error:  core.StringPtr(msg),
	}); err != nil {
		log.Printf("component=workflow action=ledger_update_failed operation_id=%s err=%v", opID, err)
	}
}

// mintFailure classifies a minting failure, giving the contract's duplicate
// prompt revert its dedicated message.
func mintFailure(failure error) *apperr.AppError {
	if errors.Is(failure, chain.ErrPromptAlreadyUsed) ||
		strings.Contains(strings.ToLower(failure.Error()), "promptalreadyused") {
		return apperr.New(apperr.KindPromptAlreadyUsed, promptAlreadyUsedMessage, false, failure.Error())
	}
	appErr := apperr.Classify(failure)
	if appErr.Kind == apperr.KindPromptAlreadyUsed {
		cp := *appErr
		cp.Message = promptAlreadyUsedMessage
		return &cp
	}
	return appErr
}
