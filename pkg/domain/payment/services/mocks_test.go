package payment_services

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	chain_entities "github.com/wopay/engine/pkg/domain/chain/entities"
	merchant_entities "github.com/wopay/engine/pkg/domain/merchant/entities"
	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
	payment_out "github.com/wopay/engine/pkg/domain/payment/ports/out"
	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
)

// mockPaymentStore is a hand-written testify mock of
// payment_out.PaymentStore.
type mockPaymentStore struct {
	mock.Mock
}

func (m *mockPaymentStore) CreatePayment(ctx context.Context, params payment_out.CreatePaymentParams, deriver payment_out.KeyDeriver) (*payment_entities.Payment, *payment_entities.PaymentAddress, error) {
	panic("not used by these tests")
}

func (m *mockPaymentStore) GetPayment(ctx context.Context, id uuid.UUID) (*payment_entities.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment_entities.Payment), args.Error(1)
}

func (m *mockPaymentStore) ListPayments(ctx context.Context, filter payment_out.PaymentFilter, page payment_out.Page) ([]payment_entities.Payment, error) {
	panic("not used by these tests")
}

func (m *mockPaymentStore) ByReceivingAddress(ctx context.Context, addr payment_vo.EVMAddress, currency payment_vo.Currency) (*payment_entities.Payment, error) {
	args := m.Called(ctx, addr, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment_entities.Payment), args.Error(1)
}

func (m *mockPaymentStore) RecordObservedTransfer(ctx context.Context, t payment_entities.ObservedTransfer) (*payment_entities.ObservedTransfer, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment_entities.ObservedTransfer), args.Error(1)
}

func (m *mockPaymentStore) GetObservedTransfer(ctx context.Context, txHash string) (*payment_entities.ObservedTransfer, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment_entities.ObservedTransfer), args.Error(1)
}

func (m *mockPaymentStore) BindTransferToPayment(ctx context.Context, txHash string, paymentID uuid.UUID) error {
	args := m.Called(ctx, txHash, paymentID)
	return args.Error(0)
}

func (m *mockPaymentStore) TransitionPayment(ctx context.Context, id uuid.UUID, expectedPrev, newStatus payment_entities.PaymentStatus, fields payment_out.TransitionFields) (*payment_entities.Payment, error) {
	args := m.Called(ctx, id, expectedPrev, newStatus, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment_entities.Payment), args.Error(1)
}

func (m *mockPaymentStore) EnqueueWebhook(ctx context.Context, paymentID uuid.UUID, targetURL string, payload []byte, attemptIndex int) (*payment_entities.WebhookAttempt, error) {
	args := m.Called(ctx, paymentID, targetURL, payload, attemptIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment_entities.WebhookAttempt), args.Error(1)
}

func (m *mockPaymentStore) MarkWebhookResult(ctx context.Context, id uuid.UUID, status int, body string, success bool) error {
	args := m.Called(ctx, id, status, body, success)
	return args.Error(0)
}

func (m *mockPaymentStore) PendingWebhookAttempts(ctx context.Context, limit int) ([]payment_entities.WebhookAttempt, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment_entities.WebhookAttempt), args.Error(1)
}

func (m *mockPaymentStore) ListPaymentsByStatus(ctx context.Context, status payment_entities.PaymentStatus) ([]payment_entities.Payment, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment_entities.Payment), args.Error(1)
}

func (m *mockPaymentStore) OpenPaymentAddresses(ctx context.Context) ([]payment_entities.PaymentAddress, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment_entities.PaymentAddress), args.Error(1)
}

func (m *mockPaymentStore) GetPaymentAddress(ctx context.Context, paymentID uuid.UUID) (*payment_entities.PaymentAddress, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment_entities.PaymentAddress), args.Error(1)
}

func (m *mockPaymentStore) AddressesReadyToSweep(ctx context.Context) ([]payment_entities.PaymentAddress, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment_entities.PaymentAddress), args.Error(1)
}

func (m *mockPaymentStore) AddressesPendingRecovery(ctx context.Context) ([]payment_entities.PaymentAddress, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment_entities.PaymentAddress), args.Error(1)
}

func (m *mockPaymentStore) MarkAddressSwept(ctx context.Context, paymentID uuid.UUID, swept bool) error {
	args := m.Called(ctx, paymentID, swept)
	return args.Error(0)
}

func (m *mockPaymentStore) RecordSweepTransaction(ctx context.Context, tx payment_entities.SweepTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockPaymentStore) UpdateSweepTransaction(ctx context.Context, txHash string, status payment_entities.SweepStatus) error {
	args := m.Called(ctx, txHash, status)
	return args.Error(0)
}

func (m *mockPaymentStore) GetSweepTransaction(ctx context.Context, fromAddress payment_vo.EVMAddress) (*payment_entities.SweepTransaction, error) {
	args := m.Called(ctx, fromAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment_entities.SweepTransaction), args.Error(1)
}

func (m *mockPaymentStore) GetWalletConfig(ctx context.Context) (*payment_entities.WalletConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment_entities.WalletConfig), args.Error(1)
}

func (m *mockPaymentStore) BlockCursor(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockPaymentStore) AdvanceCursor(ctx context.Context, blockNumber uint64) error {
	args := m.Called(ctx, blockNumber)
	return args.Error(0)
}

// mockMerchantRepository mocks merchant_out.MerchantRepository.
type mockMerchantRepository struct {
	mock.Mock
}

func (m *mockMerchantRepository) GetByID(ctx context.Context, id uuid.UUID) (*merchant_entities.Merchant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*merchant_entities.Merchant), args.Error(1)
}

// mockChainClient mocks chain_out.ChainClient.
type mockChainClient struct {
	mock.Mock
}

func (m *mockChainClient) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockChainClient) LatestBlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockChainClient) BlockTransfers(ctx context.Context, blockNumber uint64, tokenContract common.Address, knownAddresses map[common.Address]struct{}) ([]chain_entities.Transfer, *chain_entities.BlockInfo, error) {
	args := m.Called(ctx, blockNumber, tokenContract, knownAddresses)
	var transfers []chain_entities.Transfer
	if args.Get(0) != nil {
		transfers = args.Get(0).([]chain_entities.Transfer)
	}
	var info *chain_entities.BlockInfo
	if args.Get(1) != nil {
		info = args.Get(1).(*chain_entities.BlockInfo)
	}
	return transfers, info, args.Error(2)
}

func (m *mockChainClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*chain_entities.TransactionReceipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain_entities.TransactionReceipt), args.Error(1)
}

func (m *mockChainClient) IsCanonical(ctx context.Context, txHash common.Hash, blockNumber uint64) (bool, error) {
	args := m.Called(ctx, txHash, blockNumber)
	return args.Bool(0), args.Error(1)
}

func (m *mockChainClient) SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error) {
	args := m.Called(ctx, signedTx)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *mockChainClient) GasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockChainClient) EstimateGas(ctx context.Context, from, to common.Address, value *big.Int, data []byte) (uint64, error) {
	args := m.Called(ctx, from, to, value, data)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockChainClient) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	args := m.Called(ctx, addr)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockChainClient) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockChainClient) TokenBalanceAt(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	args := m.Called(ctx, token, holder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}
