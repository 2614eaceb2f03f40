// ABOUTME: Chain identities, display names and block explorer links.
// ABOUTME: Monad Testnet is the network the minting contract lives on.
package chain

import (
	"fmt"
	"strings"
)

// MonadTestnetChainID is the chain the minting contract is deployed to.
const MonadTestnetChainID int64 = 10143

// DefaultExplorerBase is the Monad Testnet block explorer.
const DefaultExplorerBase = "https://testnet.monadexplorer.com"

var networkNames = map[int64]string{
	1:                   "Ethereum Mainnet",
	5:                   "Goerli Testnet",
	11155111:            "Sepolia Testnet",
	MonadTestnetChainID: "Monad Testnet",
}

// NetworkName returns a display name for a chain id.
func NetworkName(chainID int64) string {
	if name, ok := networkNames[chainID]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Network (%d)", chainID)
}

// ExplorerTxURL links a transaction on the explorer at base.
func ExplorerTxURL(base, txHash string) string {
	if base == "" {
		base = DefaultExplorerBase
	}
	return strings.TrimRight(base, "/") + "/tx/" + txHash
}
