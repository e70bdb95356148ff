package follower

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	chain_entities "github.com/wopay/engine/pkg/domain/chain/entities"
	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
	payment_out "github.com/wopay/engine/pkg/domain/payment/ports/out"
	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
)

type mockPaymentStore struct {
	mock.Mock
}

func (m *mockPaymentStore) CreatePayment(ctx context.Context, params payment_out.CreatePaymentParams, deriver payment_out.KeyDeriver) (*payment_entities.Payment, *payment_entities.PaymentAddress, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) GetPayment(ctx context.Context, id uuid.UUID) (*payment_entities.Payment, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) ListPayments(ctx context.Context, filter payment_out.PaymentFilter, page payment_out.Page) ([]payment_entities.Payment, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) ByReceivingAddress(ctx context.Context, addr payment_vo.EVMAddress, currency payment_vo.Currency) (*payment_entities.Payment, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) RecordObservedTransfer(ctx context.Context, t payment_entities.ObservedTransfer) (*payment_entities.ObservedTransfer, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment_entities.ObservedTransfer), args.Error(1)
}
func (m *mockPaymentStore) GetObservedTransfer(ctx context.Context, txHash string) (*payment_entities.ObservedTransfer, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) BindTransferToPayment(ctx context.Context, txHash string, paymentID uuid.UUID) error {
	panic("not used by these tests")
}
func (m *mockPaymentStore) TransitionPayment(ctx context.Context, id uuid.UUID, expectedPrev, newStatus payment_entities.PaymentStatus, fields payment_out.TransitionFields) (*payment_entities.Payment, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) EnqueueWebhook(ctx context.Context, paymentID uuid.UUID, targetURL string, payload []byte, attemptIndex int) (*payment_entities.WebhookAttempt, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) MarkWebhookResult(ctx context.Context, id uuid.UUID, status int, body string, success bool) error {
	panic("not used by these tests")
}
func (m *mockPaymentStore) PendingWebhookAttempts(ctx context.Context, limit int) ([]payment_entities.WebhookAttempt, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) ListPaymentsByStatus(ctx context.Context, status payment_entities.PaymentStatus) ([]payment_entities.Payment, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) OpenPaymentAddresses(ctx context.Context) ([]payment_entities.PaymentAddress, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment_entities.PaymentAddress), args.Error(1)
}
func (m *mockPaymentStore) GetPaymentAddress(ctx context.Context, paymentID uuid.UUID) (*payment_entities.PaymentAddress, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) AddressesReadyToSweep(ctx context.Context) ([]payment_entities.PaymentAddress, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) AddressesPendingRecovery(ctx context.Context) ([]payment_entities.PaymentAddress, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) MarkAddressSwept(ctx context.Context, paymentID uuid.UUID, swept bool) error {
	panic("not used by these tests")
}
func (m *mockPaymentStore) RecordSweepTransaction(ctx context.Context, tx payment_entities.SweepTransaction) error {
	panic("not used by these tests")
}
func (m *mockPaymentStore) UpdateSweepTransaction(ctx context.Context, txHash string, status payment_entities.SweepStatus) error {
	panic("not used by these tests")
}
func (m *mockPaymentStore) GetSweepTransaction(ctx context.Context, fromAddress payment_vo.EVMAddress) (*payment_entities.SweepTransaction, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) GetWalletConfig(ctx context.Context) (*payment_entities.WalletConfig, error) {
	panic("not used by these tests")
}
func (m *mockPaymentStore) BlockCursor(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}
func (m *mockPaymentStore) AdvanceCursor(ctx context.Context, blockNumber uint64) error {
	args := m.Called(ctx, blockNumber)
	return args.Error(0)
}

type mockChainClient struct {
	mock.Mock
}

func (m *mockChainClient) ChainID(ctx context.Context) (*big.Int, error) {
	panic("not used by these tests")
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
	panic("not used by these tests")
}
func (m *mockChainClient) IsCanonical(ctx context.Context, txHash common.Hash, blockNumber uint64) (bool, error) {
	panic("not used by these tests")
}
func (m *mockChainClient) SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error) {
	panic("not used by these tests")
}
func (m *mockChainClient) GasPrice(ctx context.Context) (*big.Int, error) {
	panic("not used by these tests")
}
func (m *mockChainClient) EstimateGas(ctx context.Context, from, to common.Address, value *big.Int, data []byte) (uint64, error) {
	panic("not used by these tests")
}
func (m *mockChainClient) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	panic("not used by these tests")
}
func (m *mockChainClient) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	panic("not used by these tests")
}
func (m *mockChainClient) TokenBalanceAt(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	panic("not used by these tests")
}

type mockMatcher struct {
	mock.Mock
}

func (m *mockMatcher) MatchTransfer(ctx context.Context, transfer payment_entities.ObservedTransfer) error {
	args := m.Called(ctx, transfer)
	return args.Error(0)
}
