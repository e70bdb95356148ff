// Package payment_out defines the Payment Store's narrow transactional
// surface. The store is the single writer coordinator: every
// state-changing method here runs in a serialisable or
// snapshot-isolated transaction, uniqueness constraints catch races,
// and transition_payment's CAS semantics are the only legal way to
// change a payment's status.
package payment_out

import (
	"context"
	"time"

	"github.com/google/uuid"
	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
)

type CreatePaymentParams struct {
	MerchantID uuid.UUID
	OrderID    string
	Amount     payment_vo.Amount
	Currency   payment_vo.Currency
	ExpiresAt  time.Time
}

type PaymentFilter struct {
	MerchantID *uuid.UUID
	Status     *payment_entities.PaymentStatus
}

type Page struct {
	Skip  int
	Limit int
}

// TransitionFields carries the accompanying field updates a CAS
// transition writes alongside the new status (e.g. tx_hash +
// confirmations on pending→confirmed).
type TransitionFields struct {
	TransactionHash *string
	Confirmations   *int
}

type PaymentStore interface {
	// CreatePayment inserts payment + address atomically: it calls
	// deriver.DeriveAt with max(index)+1 under the same transaction that
	// inserts the payment row. Fails with
	// apperror.ErrDuplicateOrder if (merchant_id, order_id) collides.
	CreatePayment(ctx context.Context, params CreatePaymentParams, deriver KeyDeriver) (*payment_entities.Payment, *payment_entities.PaymentAddress, error)

	GetPayment(ctx context.Context, id uuid.UUID) (*payment_entities.Payment, error)

	ListPayments(ctx context.Context, filter PaymentFilter, page Page) ([]payment_entities.Payment, error)

	// ByReceivingAddress returns the open (non-terminal) payment
	// expecting addr for the given currency, if any. Currency is part of
	// the lookup key, not just a post-hoc check, so mismatches are caught
	// at allocation/lookup time rather than leaving it matcher-side only.
	ByReceivingAddress(ctx context.Context, addr payment_vo.EVMAddress, currency payment_vo.Currency) (*payment_entities.Payment, error)

	// RecordObservedTransfer upserts by transaction hash; idempotent.
	RecordObservedTransfer(ctx context.Context, t payment_entities.ObservedTransfer) (*payment_entities.ObservedTransfer, error)

	GetObservedTransfer(ctx context.Context, txHash string) (*payment_entities.ObservedTransfer, error)

	BindTransferToPayment(ctx context.Context, txHash string, paymentID uuid.UUID) error

	// TransitionPayment is the CAS operation: succeeds only if the
	// current status equals expectedPrev, then applies newStatus and
	// fields in the same transaction and bumps updated_at. Returns
	// apperror.ErrStaleState if the current status no longer matches.
	TransitionPayment(ctx context.Context, id uuid.UUID, expectedPrev, newStatus payment_entities.PaymentStatus, fields TransitionFields) (*payment_entities.Payment, error)

	// EnqueueWebhook inserts a new WebhookAttempt row with success=false.
	EnqueueWebhook(ctx context.Context, paymentID uuid.UUID, targetURL string, payload []byte, attemptIndex int) (*payment_entities.WebhookAttempt, error)

	MarkWebhookResult(ctx context.Context, id uuid.UUID, status int, body string, success bool) error

	// PendingWebhookAttempts returns attempts awaiting delivery or retry,
	// ordered by payment then attempt index, bounded to limit rows.
	PendingWebhookAttempts(ctx context.Context, limit int) ([]payment_entities.WebhookAttempt, error)

	ListPaymentsByStatus(ctx context.Context, status payment_entities.PaymentStatus) ([]payment_entities.Payment, error)

	// OpenPaymentAddresses returns every PaymentAddress whose payment is
	// still open (non-terminal) — the Block Follower's "known receiving
	// addresses" set for a poll round.
	OpenPaymentAddresses(ctx context.Context) ([]payment_entities.PaymentAddress, error)

	GetPaymentAddress(ctx context.Context, paymentID uuid.UUID) (*payment_entities.PaymentAddress, error)

	// AddressesReadyToSweep lists payment addresses whose payment is
	// completed and whose swept flag is false. The store itself has no
	// chain access, so it applies no balance threshold; the sweeper
	// reads each candidate's balance from chain and filters by it.
	AddressesReadyToSweep(ctx context.Context) ([]payment_entities.PaymentAddress, error)

	// AddressesPendingRecovery returns addresses with swept=true but no
	// corresponding confirmed SweepTransaction — the
	// recovery pass's input.
	AddressesPendingRecovery(ctx context.Context) ([]payment_entities.PaymentAddress, error)

	MarkAddressSwept(ctx context.Context, paymentID uuid.UUID, swept bool) error

	RecordSweepTransaction(ctx context.Context, tx payment_entities.SweepTransaction) error

	UpdateSweepTransaction(ctx context.Context, txHash string, status payment_entities.SweepStatus) error

	GetSweepTransaction(ctx context.Context, fromAddress payment_vo.EVMAddress) (*payment_entities.SweepTransaction, error)

	GetWalletConfig(ctx context.Context) (*payment_entities.WalletConfig, error)

	// BlockCursor / AdvanceCursor persist the Block Follower's cursor:
	// the last fully processed block number.
	BlockCursor(ctx context.Context) (uint64, error)
	AdvanceCursor(ctx context.Context, blockNumber uint64) error
}
