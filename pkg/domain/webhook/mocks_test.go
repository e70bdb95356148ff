package webhook

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	merchant_entities "github.com/wopay/engine/pkg/domain/merchant/entities"
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
	panic("not used by these tests")
}

func (m *mockPaymentStore) RecordObservedTransfer(ctx context.Context, t payment_entities.ObservedTransfer) (*payment_entities.ObservedTransfer, error) {
	panic("not used by these tests")
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
	panic("not used by these tests")
}

func (m *mockPaymentStore) OpenPaymentAddresses(ctx context.Context) ([]payment_entities.PaymentAddress, error) {
	panic("not used by these tests")
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
	panic("not used by these tests")
}

func (m *mockPaymentStore) AdvanceCursor(ctx context.Context, blockNumber uint64) error {
	panic("not used by these tests")
}

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
