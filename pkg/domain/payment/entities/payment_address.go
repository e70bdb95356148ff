package payment_entities

import (
	"github.com/google/uuid"
	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
)

// PaymentAddress is the per-payment receiving address, 1:1 with a
// Payment. Derivation index and address are both unique across the
// system (enforced by store indexes); an address is never reused for a
// second payment.
//
// Currency is recorded on the address itself, not just on the payment:
// the matcher can reject a mismatched-currency transfer using only the
// address row, without needing to join back to the payment first.
type PaymentAddress struct {
	PaymentID        uuid.UUID             `json:"payment_id" bson:"payment_id"`
	DerivationIndex  uint64                `json:"hd_derivation_index" bson:"hd_derivation_index"`
	Address          payment_vo.EVMAddress `json:"address" bson:"address"`
	Currency         payment_vo.Currency   `json:"currency" bson:"currency"`
	EncryptedPrivKey []byte                `json:"-" bson:"encrypted_private_key"`
	Swept            bool                  `json:"swept" bson:"swept"`
}
