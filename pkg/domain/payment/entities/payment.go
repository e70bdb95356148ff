// Package payment_entities holds the Payment Lifecycle Engine's core
// entities: Payment, PaymentAddress, ObservedTransfer, WebhookAttempt,
// SweepTransaction, WalletConfig — its full data model.
package payment_entities

import (
	"time"

	"github.com/google/uuid"
	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is legal from this
// status.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusExpired, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// Payment is a single expected incoming transfer. Status transitions are
// always performed by the store's CAS transition_payment operation
// (pkg/domain/payment/ports/out.PaymentStore); ApplyTransition and the
// mark* helpers below
// only mutate the in-memory struct to reflect a transition the store has
// already accepted.
type Payment struct {
	ID                uuid.UUID           `json:"id" bson:"_id"`
	MerchantID        uuid.UUID           `json:"merchant_id" bson:"merchant_id"`
	OrderID           string              `json:"order_id" bson:"order_id"`
	ExpectedAmount    payment_vo.Amount   `json:"expected_amount" bson:"expected_amount"`
	Currency          payment_vo.Currency `json:"currency" bson:"currency"`
	ReceivingAddress  payment_vo.EVMAddress `json:"receiving_address" bson:"receiving_address"`
	Status            PaymentStatus       `json:"status" bson:"status"`
	TransactionHash   *string             `json:"transaction_hash" bson:"transaction_hash"`
	Confirmations     int                 `json:"confirmations" bson:"confirmations"`
	ExpiresAt         time.Time           `json:"expires_at" bson:"expires_at"`
	CreatedAt         time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at" bson:"updated_at"`
}

func (p Payment) IsOpen() bool {
	return !p.Status.IsTerminal()
}

func (p *Payment) markConfirmed(txHash string, confirmations int) {
	p.Status = PaymentStatusConfirmed
	p.TransactionHash = &txHash
	p.Confirmations = confirmations
	p.UpdatedAt = time.Now()
}

func (p *Payment) markCompleted() {
	p.Status = PaymentStatusCompleted
	p.UpdatedAt = time.Now()
}

func (p *Payment) markExpired() {
	p.Status = PaymentStatusExpired
	p.UpdatedAt = time.Now()
}

func (p *Payment) markFailed() {
	p.Status = PaymentStatusFailed
	p.TransactionHash = nil
	p.UpdatedAt = time.Now()
}

// ApplyTransition mutates the in-memory entity to reflect a transition
// that the store has already durably recorded. It does not decide
// legality — callers only invoke it after a successful CAS write.
func (p *Payment) ApplyTransition(newStatus PaymentStatus, txHash *string, confirmations int) {
	switch newStatus {
	case PaymentStatusConfirmed:
		hash := ""
		if txHash != nil {
			hash = *txHash
		}
		p.markConfirmed(hash, confirmations)
	case PaymentStatusCompleted:
		p.markCompleted()
	case PaymentStatusExpired:
		p.markExpired()
	case PaymentStatusFailed:
		p.markFailed()
	}
}
