// ABOUTME: ABI of the PromptMint NFT contract and helpers derived from it.
// ABOUTME: Prompt hashing, token id extraction from Transfer logs, and revert decoding.
package chain

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// PromptMintABI is the subset of the contract interface the minter uses.
const PromptMintABI = `[
	{"type":"function","name":"mint","stateMutability":"nonpayable",
	 "inputs":[{"name":"promptHash","type":"bytes32"},{"name":"tokenURI","type":"string"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isPromptUsed","stateMutability":"view",
	 "inputs":[{"name":"promptHash","type":"bytes32"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"Transfer","anonymous":false,
	 "inputs":[{"name":"from","type":"address","indexed":true},
	           {"name":"to","type":"address","indexed":true},
	           {"name":"tokenId","type":"uint256","indexed":true}]},
	{"type":"error","name":"PromptAlreadyUsed","inputs":[]}
]`

// MintMethod is the contract function the minter submits.
const MintMethod = "mint"

// ErrPromptAlreadyUsed is returned when the contract rejects a duplicate prompt hash.
var ErrPromptAlreadyUsed = errors.New("PromptAlreadyUsed: this prompt has already been used")

var contractABI = mustParseABI(PromptMintABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse contract ABI: %v", err))
	}
	return parsed
}

// ContractABI returns the parsed contract ABI.
func ContractABI() abi.ABI { return contractABI }

// PromptHash is the on-chain de-duplication key: keccak256 of the trimmed
// prompt bytes. The same prompt always yields the same hash.
func PromptHash(prompt string) common.Hash {
	return crypto.Keccak256Hash([]byte(strings.TrimSpace(prompt)))
}

// PackMint encodes a mint(promptHash, tokenURI) call.
func PackMint(promptHash common.Hash, tokenURI string) ([]byte, error) {
	return contractABI.Pack(MintMethod, [32]byte(promptHash), tokenURI)
}

// TransferTopic is the signature topic of the ERC-721 Transfer event.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// ExtractTokenID returns the token id from the first Transfer log, read from
// topic index 3. ok is false when no log carries one.
func ExtractTokenID(logs []*types.Log) (id string, ok bool) {
	for _, l := range logs {
		if l == nil || len(l.Topics) < 4 || l.Topics[0] != TransferTopic {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[3].Bytes()).String(), true
	}
	return "", false
}

// DecodeRevert maps a custom-error revert carried by err to a sentinel.
// Errors without recognizable revert data are returned unchanged.
func DecodeRevert(err error) error {
	if err == nil {
		return nil
	}
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return err
	}
	raw, ok := dataErr.ErrorData().(string)
	if !ok {
		return err
	}
	data, decodeErr := hexutil.Decode(raw)
	if decodeErr != nil || len(data) < 4 {
		return err
	}
	if custom, ok := contractABI.Errors["PromptAlreadyUsed"]; ok && bytes.Equal(data[:4], custom.ID[:4]) {
		return fmt.Errorf("%w (%v)", ErrPromptAlreadyUsed, err)
	}
	return err
}
