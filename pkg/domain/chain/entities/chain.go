// Package chain_entities holds the plain data shapes the chain RPC
// port returns: block, transaction, receipt, transfer, and log-filter
// types.
package chain_entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type BlockInfo struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  time.Time
	TxCount    int
}

// Transfer is a single value-moving event extracted from a block: either
// a native transaction with non-zero value, or an ERC-20 Transfer log.
type Transfer struct {
	TxHash      common.Hash
	TxIndex     uint
	BlockNumber uint64
	From        common.Address
	To          common.Address
	Value       *big.Int // wei for native, token base units for ERC-20
	IsNative    bool
	TokenAddr   common.Address // zero value for native transfers
	GasUsed     uint64
	GasPrice    *big.Int
}

type TransactionReceipt struct {
	TxHash          common.Hash
	BlockNumber     uint64
	Status          uint64 // 1 = success, 0 = failed
	GasUsed         uint64
	EffectiveGasPrice *big.Int
}

type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []common.Address
	Topics    [][]common.Hash
}
