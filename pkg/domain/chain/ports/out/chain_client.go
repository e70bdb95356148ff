// Package chain_out is the port the Block Follower and Sweeper both
// consume. Its method set maps almost 1:1 onto the JSON-RPC calls an
// EVM chain exposes (eth_blockNumber, eth_getBlockByNumber,
// eth_getLogs, eth_getTransactionReceipt, eth_sendRawTransaction,
// eth_gasPrice, eth_estimateGas) — deliberately scoped to a single EVM
// chain, with no multi-chain abstraction.
package chain_out

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	chain_entities "github.com/wopay/engine/pkg/domain/chain/entities"
)

type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)

	LatestBlockNumber(ctx context.Context) (uint64, error)

	// BlockTransfers returns every native-value-transfer and configured
	// ERC-20 Transfer log in the given block whose recipient is in
	// knownAddresses, in transaction-index order — the matcher's
	// tie-breaking rule depends on this ordering.
	BlockTransfers(ctx context.Context, blockNumber uint64, tokenContract common.Address, knownAddresses map[common.Address]struct{}) ([]chain_entities.Transfer, *chain_entities.BlockInfo, error)

	TransactionReceipt(ctx context.Context, txHash common.Hash) (*chain_entities.TransactionReceipt, error)

	// IsCanonical reports whether txHash is still included in the chain
	// at the given block height — used by the confirmation tracker to
	// detect a reorg that dropped a previously bound transaction.
	IsCanonical(ctx context.Context, txHash common.Hash, blockNumber uint64) (bool, error)

	SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error)

	GasPrice(ctx context.Context) (*big.Int, error)

	EstimateGas(ctx context.Context, from, to common.Address, value *big.Int, data []byte) (uint64, error)

	NonceAt(ctx context.Context, addr common.Address) (uint64, error)

	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)

	TokenBalanceAt(ctx context.Context, token, holder common.Address) (*big.Int, error)
}
