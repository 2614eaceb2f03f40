// ABOUTME: Key-backed wallet that submits contract calls over JSON-RPC and watches receipts.
// ABOUTME: Exposes connect/disconnect/switch-chain, submission, receipt watch and read calls.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrNotConnected indicates an operation that needs a connected wallet.
	ErrNotConnected = errors.New("wallet connection required")

	// ErrUnknownConnector indicates Connect was called with an unlisted connector id.
	ErrUnknownConnector = errors.New("unknown wallet connector")

	// ErrChainUnavailable indicates SwitchChain targeted a chain with no RPC endpoint.
	ErrChainUnavailable = errors.New("no rpc endpoint configured for chain")
)

// Backend is the JSON-RPC surface the wallet needs. *ethclient.Client
// satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dialer opens a Backend for an RPC URL.
type Dialer func(ctx context.Context, rawURL string) (Backend, error)

// DialEthclient is the default Dialer.
func DialEthclient(ctx context.Context, rawURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Connector is a wallet connection option.
type Connector struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PrivateKeyConnector signs with a locally configured key.
var PrivateKeyConnector = Connector{ID: "private-key", Name: "Local Private Key"}

// Settlement is the outcome of a watched transaction.
type Settlement struct {
	TxHash        string
	Success       bool
	Confirmations uint64
	BlockNumber   uint64
	Logs          []*types.Log
}

// WalletConfig configures a KeyWallet.
type WalletConfig struct {
	// RPCURLs maps chain id to JSON-RPC endpoint.
	RPCURLs map[int64]string

	// DefaultChainID is the chain Connect dials first.
	DefaultChainID int64

	// PrivateKeyHex is the signing key, with or without a 0x prefix.
	PrivateKeyHex string

	// PollInterval is how often receipts are polled. Defaults to 2s.
	PollInterval time.Duration

	// Confirmations is the number of blocks required before settling. Defaults to 1.
	Confirmations uint64
}

// KeyWallet is a wallet backed by a local private key. It is safe for
// concurrent use.
type KeyWallet struct {
	cfg  WalletConfig
	dial Dialer

	mu        sync.RWMutex
	backend   Backend
	key       *ecdsa.PrivateKey
	address   common.Address
	chainID   int64
	connected bool
}

// NewKeyWallet returns a disconnected wallet. A nil dial uses DialEthclient.
func NewKeyWallet(cfg WalletConfig, dial Dialer) *KeyWallet {
	if dial == nil {
		dial = DialEthclient
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}
	return &KeyWallet{cfg: cfg, dial: dial}
}

// Connectors lists the available connection options.
func (w *KeyWallet) Connectors() []Connector {
	return []Connector{PrivateKeyConnector}
}

// Connect loads the key and dials the default chain.
func (w *KeyWallet) Connect(ctx context.Context, connectorID string) error {
	if connectorID != PrivateKeyConnector.ID {
		return fmt.Errorf("%w: %s", ErrUnknownConnector, connectorID)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(w.cfg.PrivateKeyHex), "0x"))
	if err != nil {
		return fmt.Errorf("wallet connection failed: load key: %w", err)
	}
	backend, chainID, err := w.dialChain(ctx, w.cfg.DefaultChainID)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.key = key
	w.address = crypto.PubkeyToAddress(key.PublicKey)
	w.backend = backend
	w.chainID = chainID
	w.connected = true
	addr := w.address.Hex()
	w.mu.Unlock()

	log.Printf("component=chain action=connect address=%s chain_id=%d", addr, chainID)
	return nil
}

// Disconnect forgets the key and backend.
func (w *KeyWallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.key = nil
	w.backend = nil
	w.address = common.Address{}
	w.connected = false
	w.chainID = 0
}

// IsConnected reports whether Connect succeeded.
func (w *KeyWallet) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Address returns the checksummed account address, or "" when disconnected.
func (w *KeyWallet) Address() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return ""
	}
	return w.address.Hex()
}

// ChainID returns the chain the wallet is currently on, or 0 when disconnected.
func (w *KeyWallet) ChainID() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chainID
}

// SwitchChain redials the endpoint configured for target.
func (w *KeyWallet) SwitchChain(ctx context.Context, target int64) error {
	if !w.IsConnected() {
		return ErrNotConnected
	}
	backend, chainID, err := w.dialChain(ctx, target)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.backend = backend
	w.chainID = chainID
	w.mu.Unlock()
	log.Printf("component=chain action=switch_chain chain_id=%d name=%q", chainID, NetworkName(chainID))
	return nil
}

func (w *KeyWallet) dialChain(ctx context.Context, target int64) (Backend, int64, error) {
	url, ok := w.cfg.RPCURLs[target]
	if !ok || url == "" {
		return nil, 0, fmt.Errorf("%w: %d", ErrChainUnavailable, target)
	}
	backend, err := w.dial(ctx, url)
	if err != nil {
		return nil, 0, fmt.Errorf("network connection failed: dial rpc: %w", err)
	}
	id, err := backend.ChainID(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("network connection failed: read chain id: %w", err)
	}
	return backend, id.Int64(), nil
}

func (w *KeyWallet) session() (Backend, *ecdsa.PrivateKey, common.Address, int64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return nil, nil, common.Address{}, 0, ErrNotConnected
	}
	return w.backend, w.key, w.address, w.chainID, nil
}

// SubmitTransaction packs method(args...) against contract, signs it and
// broadcasts it. It returns the transaction hash as soon as the node accepts
// it; settlement is observed separately with WaitForReceipt.
func (w *KeyWallet) SubmitTransaction(ctx context.Context, contract, method string, args ...any) (string, error) {
	backend, key, from, chainID, err := w.session()
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(contract) {
		return "", fmt.Errorf("invalid contract address %q", contract)
	}
	to := common.HexToAddress(contract)

	packed := make([]any, len(args))
	for i, a := range args {
		if h, ok := a.(common.Hash); ok {
			a = [32]byte(h)
		}
		packed[i] = a
	}
	data, err := contractABI.Pack(method, packed...)
	if err != nil {
		return "", fmt.Errorf("pack %s call: %w", method, err)
	}

	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}
	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, GasPrice: gasPrice, Data: data})
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", DecodeRevert(err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(chainID)), key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transaction: %w", DecodeRevert(err))
	}

	hash := signed.Hash().Hex()
	log.Printf("component=chain action=submitted method=%s tx_hash=%s nonce=%d gas=%d", method, hash, nonce, gas)
	return hash, nil
}

// WaitForReceipt polls until txHash is mined and has the configured number
// of confirmations, or ctx ends.
func (w *KeyWallet) WaitForReceipt(ctx context.Context, txHash string) (Settlement, error) {
	backend, _, _, _, err := w.session()
	if err != nil {
		return Settlement{}, err
	}
	hash := common.HexToHash(txHash)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		settlement, done, err := w.pollReceipt(ctx, backend, hash)
		if err != nil {
			return Settlement{}, err
		}
		if done {
			log.Printf("component=chain action=settled tx_hash=%s success=%t confirmations=%d",
				settlement.TxHash, settlement.Success, settlement.Confirmations)
			return settlement, nil
		}

		select {
		case <-ctx.Done():
			return Settlement{}, fmt.Errorf("receipt timeout for %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (w *KeyWallet) pollReceipt(ctx context.Context, backend Backend, hash common.Hash) (Settlement, bool, error) {
	receipt, err := backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return Settlement{}, false, nil
	}
	if err != nil {
		return Settlement{}, false, fmt.Errorf("read receipt: %w", err)
	}

	s := Settlement{
		TxHash:  hash.Hex(),
		Success: receipt.Status == types.ReceiptStatusSuccessful,
		Logs:    receipt.Logs,
	}
	if receipt.BlockNumber != nil {
		s.BlockNumber = receipt.BlockNumber.Uint64()
	}
	head, err := backend.BlockNumber(ctx)
	if err != nil {
		return Settlement{}, false, fmt.Errorf("read block number: %w", err)
	}
	if head >= s.BlockNumber {
		s.Confirmations = head - s.BlockNumber + 1
	}
	if !s.Success {
		return s, true, nil
	}
	return s, s.Confirmations >= w.cfg.Confirmations, nil
}

// IsPromptUsed asks the contract whether promptHash was already minted.
func (w *KeyWallet) IsPromptUsed(ctx context.Context, contract string, promptHash common.Hash) (bool, error) {
	backend, _, from, _, err := w.session()
	if err != nil {
		return false, err
	}
	to := common.HexToAddress(contract)
	data, err := contractABI.Pack("isPromptUsed", [32]byte(promptHash))
	if err != nil {
		return false, fmt.Errorf("pack isPromptUsed: %w", err)
	}
	out, err := backend.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call isPromptUsed: %w", err)
	}
	values, err := contractABI.Unpack("isPromptUsed", out)
	if err != nil {
		return false, fmt.Errorf("unpack isPromptUsed: %w", err)
	}
	if len(values) != 1 {
		return false, fmt.Errorf("unpack isPromptUsed: got %d values", len(values))
	}
	used, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unpack isPromptUsed: unexpected %T", values[0])
	}
	return used, nil
}
