package follower

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	chain_entities "github.com/wopay/engine/pkg/domain/chain/entities"
	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
)

func TestFollower_HeadBelowReorgDepth_NoOp(t *testing.T) {
	store := new(mockPaymentStore)
	chain := new(mockChainClient)
	matcher := new(mockMatcher)

	store.On("BlockCursor", mock.Anything).Return(uint64(0), nil)
	chain.On("LatestBlockNumber", mock.Anything).Return(uint64(5), nil)

	svc := NewService(store, chain, matcher, Config{ReorgDepth: 12})
	err := svc.pollOnce(context.Background())

	require.NoError(t, err)
	store.AssertNotCalled(t, "OpenPaymentAddresses", mock.Anything)
}

func TestFollower_NoNewSafeBlocks_NoOp(t *testing.T) {
	store := new(mockPaymentStore)
	chain := new(mockChainClient)
	matcher := new(mockMatcher)

	store.On("BlockCursor", mock.Anything).Return(uint64(100), nil)
	chain.On("LatestBlockNumber", mock.Anything).Return(uint64(105), nil)

	svc := NewService(store, chain, matcher, Config{ReorgDepth: 12})
	err := svc.pollOnce(context.Background())

	require.NoError(t, err)
	store.AssertNotCalled(t, "OpenPaymentAddresses", mock.Anything)
}

func TestFollower_ProcessesSafeBlocksAndAdvancesCursor(t *testing.T) {
	store := new(mockPaymentStore)
	chain := new(mockChainClient)
	matcher := new(mockMatcher)

	usdt := common.HexToAddress("0x1111111111111111111111111111111111111111")
	transfer := chain_entities.Transfer{
		TxHash:      common.HexToHash("0xdeadbeef"),
		BlockNumber: 101,
		TxIndex:     0,
		From:        common.HexToAddress("0x2222222222222222222222222222222222222222"),
		To:          common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"),
		Value:       big.NewInt(1_000_000), // 1 USDT at 6 decimals
		IsNative:    false,
	}
	recorded := payment_entities.ObservedTransfer{TransactionHash: "0xdeadbeef"}

	store.On("BlockCursor", mock.Anything).Return(uint64(100), nil)
	chain.On("LatestBlockNumber", mock.Anything).Return(uint64(101), nil)
	store.On("OpenPaymentAddresses", mock.Anything).Return([]payment_entities.PaymentAddress{}, nil)
	chain.On("BlockTransfers", mock.Anything, uint64(101), usdt, mock.Anything).
		Return([]chain_entities.Transfer{transfer}, &chain_entities.BlockInfo{Number: 101}, nil)
	store.On("RecordObservedTransfer", mock.Anything, mock.Anything).Return(&recorded, nil)
	matcher.On("MatchTransfer", mock.Anything, recorded).Return(nil)
	store.On("AdvanceCursor", mock.Anything, uint64(101)).Return(nil)

	svc := NewService(store, chain, matcher, Config{ReorgDepth: 0, USDTContractAddress: usdt})
	err := svc.pollOnce(context.Background())

	require.NoError(t, err)
	store.AssertExpectations(t)
	matcher.AssertExpectations(t)
}

func TestFollower_MatcherFailure_StillAdvancesCursor(t *testing.T) {
	store := new(mockPaymentStore)
	chain := new(mockChainClient)
	matcher := new(mockMatcher)

	usdt := common.HexToAddress("0x1111111111111111111111111111111111111111")
	transfer := chain_entities.Transfer{
		TxHash:      common.HexToHash("0xdeadbeef"),
		BlockNumber: 101,
		Value:       big.NewInt(1_000_000),
		IsNative:    false,
	}
	recorded := payment_entities.ObservedTransfer{TransactionHash: "0xdeadbeef"}

	store.On("BlockCursor", mock.Anything).Return(uint64(100), nil)
	chain.On("LatestBlockNumber", mock.Anything).Return(uint64(101), nil)
	store.On("OpenPaymentAddresses", mock.Anything).Return([]payment_entities.PaymentAddress{}, nil)
	chain.On("BlockTransfers", mock.Anything, uint64(101), usdt, mock.Anything).
		Return([]chain_entities.Transfer{transfer}, &chain_entities.BlockInfo{Number: 101}, nil)
	store.On("RecordObservedTransfer", mock.Anything, mock.Anything).Return(&recorded, nil)
	matcher.On("MatchTransfer", mock.Anything, recorded).Return(assertAnError)
	store.On("AdvanceCursor", mock.Anything, uint64(101)).Return(nil)

	svc := NewService(store, chain, matcher, Config{ReorgDepth: 0, USDTContractAddress: usdt})
	err := svc.pollOnce(context.Background())

	require.NoError(t, err)
	store.AssertExpectations(t)
}

var assertAnError = errors.New("matcher exploded")
