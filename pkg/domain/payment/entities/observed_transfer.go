package payment_entities

import (
	"time"

	"github.com/google/uuid"
	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
)

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusConfirmed TransferStatus = "confirmed"
	TransferStatusFailed    TransferStatus = "failed"
)

// ObservedTransfer is an on-chain transfer the Block Follower has
// recorded. TransactionHash is unique; Amount is strictly positive;
// PaymentID is set at most once, by the Matcher.
type ObservedTransfer struct {
	TransactionHash   string              `json:"transaction_hash" bson:"_id"`
	BlockNumber       uint64              `json:"block_number" bson:"block_number"`
	TxIndex           uint                `json:"tx_index" bson:"tx_index"`
	FromAddress       payment_vo.EVMAddress `json:"from_address" bson:"from_address"`
	ToAddress         payment_vo.EVMAddress `json:"to_address" bson:"to_address"`
	Amount            payment_vo.Amount   `json:"amount" bson:"amount"`
	GasFee            payment_vo.Amount   `json:"gas_fee" bson:"gas_fee"`
	Currency          payment_vo.Currency `json:"currency" bson:"currency"`
	Confirmations     int                 `json:"confirmations" bson:"confirmations"`
	Status            TransferStatus      `json:"status" bson:"status"`
	PaymentID         *uuid.UUID          `json:"payment_id" bson:"payment_id"`
	ObservedAt        time.Time           `json:"observed_at" bson:"observed_at"`
}
