package payment_entities

import (
	"time"

	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
)

type SweepStatus string

const (
	SweepStatusPending   SweepStatus = "pending"
	SweepStatusConfirmed SweepStatus = "confirmed"
	SweepStatusFailed    SweepStatus = "failed"
)

// SweepTransaction records consolidating funds from a per-payment
// address to the master address.
type SweepTransaction struct {
	TransactionHash string                `json:"transaction_hash" bson:"_id"`
	FromAddress     payment_vo.EVMAddress `json:"from_address" bson:"from_address"`
	ToAddress       payment_vo.EVMAddress `json:"to_address" bson:"to_address"`
	Amount          payment_vo.Amount     `json:"amount" bson:"amount"`
	GasUsed         uint64                `json:"gas_used" bson:"gas_used"`
	GasPrice        payment_vo.Amount     `json:"gas_price" bson:"gas_price"`
	Status          SweepStatus           `json:"status" bson:"status"`
	CreatedAt       time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at" bson:"updated_at"`
}

// WalletConfig is the singleton master-address/sweep-threshold config.
type WalletConfig struct {
	MasterAddress             payment_vo.EVMAddress `json:"master_address" bson:"master_address"`
	SweepThreshold            payment_vo.Amount     `json:"sweep_threshold" bson:"sweep_threshold"`
	AutoSweepEnabled          bool                  `json:"auto_sweep_enabled" bson:"auto_sweep_enabled"`
	SweepIntervalMinutes      int                   `json:"sweep_interval_minutes" bson:"sweep_interval_minutes"`
}
