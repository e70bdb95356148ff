// Package chain implements the ChainClient port against a real EVM
// JSON-RPC endpoint: per-block extraction of native value transfers and
// ERC-20 Transfer logs, and retryable/non-retryable error classification for RPC
// calls (apperror.ErrTransientChain / apperror.ErrPermanentChain).
// Uses go-ethereum's ethclient directly rather than hand-rolled
// JSON-RPC.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/wopay/engine/pkg/domain/apperror"
	chain_entities "github.com/wopay/engine/pkg/domain/chain/entities"
)

func timeFromUnix(sec uint64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

// erc20TransferTopic is keccak256("Transfer(address,address,uint256)"),
// the ERC-20 Transfer event signature every log topic0 is compared
// against.
var erc20TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

type Client struct {
	rpc *ethclient.Client
}

// Dial connects to an EVM JSON-RPC endpoint. Wrapping ethclient.DialContext
// keeps the rest of the engine free of go-ethereum's client construction
// details.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", apperror.ErrTransientChain, rpcURL, err)
	}
	return &Client{rpc: c}, nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.rpc.ChainID(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return id, nil
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// BlockTransfers scans a single block for native value transfers and
// ERC-20 Transfer logs emitted by tokenContract, keeping only the ones
// whose recipient is in knownAddresses, ordered by transaction index.
func (c *Client) BlockTransfers(ctx context.Context, blockNumber uint64, tokenContract common.Address, knownAddresses map[common.Address]struct{}) ([]chain_entities.Transfer, *chain_entities.BlockInfo, error) {
	block, err := c.rpc.BlockByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, nil, classify(err)
	}

	info := &chain_entities.BlockInfo{
		Number:     block.NumberU64(),
		Hash:       block.Hash(),
		ParentHash: block.ParentHash(),
		Timestamp:  timeFromUnix(block.Time()),
		TxCount:    len(block.Transactions()),
	}

	var transfers []chain_entities.Transfer

	for idx, tx := range block.Transactions() {
		to := tx.To()
		if to == nil {
			continue // contract creation, never a deposit address
		}
		if _, known := knownAddresses[*to]; !known {
			continue
		}
		if tx.Value() == nil || tx.Value().Sign() <= 0 {
			continue
		}

		signer := types.LatestSignerForChainID(tx.ChainId())
		from, err := types.Sender(signer, tx)
		if err != nil {
			continue
		}

		receipt, err := c.rpc.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			return nil, nil, classify(err)
		}

		transfers = append(transfers, chain_entities.Transfer{
			TxHash:      tx.Hash(),
			TxIndex:     uint(idx),
			BlockNumber: block.NumberU64(),
			From:        from,
			To:          *to,
			Value:       tx.Value(),
			IsNative:    true,
			GasUsed:     receipt.GasUsed,
			GasPrice:    tx.GasPrice(),
		})
	}

	logTransfers, err := c.erc20TransfersInBlock(ctx, blockNumber, tokenContract, knownAddresses)
	if err != nil {
		return nil, nil, err
	}
	transfers = append(transfers, logTransfers...)
	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].TxIndex < transfers[j].TxIndex
	})

	return transfers, info, nil
}

func (c *Client) erc20TransfersInBlock(ctx context.Context, blockNumber uint64, tokenContract common.Address, knownAddresses map[common.Address]struct{}) ([]chain_entities.Transfer, error) {
	blockBig := new(big.Int).SetUint64(blockNumber)
	logs, err := c.rpc.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: blockBig,
		ToBlock:   blockBig,
		Addresses: []common.Address{tokenContract},
		Topics:    [][]common.Hash{{erc20TransferTopic}},
	})
	if err != nil {
		return nil, classify(err)
	}

	var transfers []chain_entities.Transfer
	for _, l := range logs {
		if len(l.Topics) != 3 || len(l.Data) != 32 {
			continue // not a standard Transfer(address,address,uint256) log
		}
		to := common.BytesToAddress(l.Topics[2].Bytes())
		if _, known := knownAddresses[to]; !known {
			continue
		}
		from := common.BytesToAddress(l.Topics[1].Bytes())
		value := new(big.Int).SetBytes(l.Data)

		receipt, err := c.rpc.TransactionReceipt(ctx, l.TxHash)
		if err != nil {
			return nil, classify(err)
		}

		transfers = append(transfers, chain_entities.Transfer{
			TxHash:      l.TxHash,
			TxIndex:     l.TxIndex,
			BlockNumber: l.BlockNumber,
			From:        from,
			To:          to,
			Value:       value,
			IsNative:    false,
			TokenAddr:   tokenContract,
			GasUsed:     receipt.GasUsed,
			GasPrice:    receipt.EffectiveGasPrice,
		})
	}
	return transfers, nil
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*chain_entities.TransactionReceipt, error) {
	r, err := c.rpc.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, classify(err)
	}
	return &chain_entities.TransactionReceipt{
		TxHash:            txHash,
		BlockNumber:       r.BlockNumber.Uint64(),
		Status:            r.Status,
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: r.EffectiveGasPrice,
	}, nil
}

func (c *Client) IsCanonical(ctx context.Context, txHash common.Hash, blockNumber uint64) (bool, error) {
	r, err := c.rpc.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, classify(err)
	}
	return r.BlockNumber.Uint64() == blockNumber, nil
}

func (c *Client) SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("%w: decode signed tx: %v", apperror.ErrPermanentChain, err)
	}
	if err := c.rpc.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, classify(err)
	}
	return tx.Hash(), nil
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	p, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

func (c *Client) EstimateGas(ctx context.Context, from, to common.Address, value *big.Int, data []byte) (uint64, error) {
	gas, err := c.rpc.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: data})
	if err != nil {
		return 0, classify(err)
	}
	return gas, nil
}

func (c *Client) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	n, err := c.rpc.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	b, err := c.rpc.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

// erc20BalanceOfSelector is the 4-byte selector for balanceOf(address).
var erc20BalanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]

func (c *Client) TokenBalanceAt(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	data := append(append([]byte{}, erc20BalanceOfSelector...), common.LeftPadBytes(holder.Bytes(), 32)...)
	result, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, classify(err)
	}
	return new(big.Int).SetBytes(result), nil
}

// classify maps a go-ethereum/RPC error into the engine's transient/
// permanent chain-error taxonomy. RPC failures at this layer are
// overwhelmingly connection drops, timeouts, and node hiccups — the
// one call site that can produce a genuinely permanent error (a
// malformed signed transaction) classifies it itself in
// SendRawTransaction before ever calling the RPC.
func classify(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", apperror.ErrTransientChain, err)
}
