package payment_out

import (
	"context"

	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
)

// KeyDeriver is the Address Allocator's sole externally reachable
// surface beyond by-address lookup: given the next HD derivation index,
// deterministically derive the receiving address and its encrypted
// private key material. It never decides what the next index is — the
// Payment Store selects max(index)+1 under the same transaction that
// inserts the payment row, then calls this for that index.
type KeyDeriver interface {
	DeriveAt(ctx context.Context, index uint64) (address payment_vo.EVMAddress, encryptedPrivateKey []byte, err error)

	// Decrypt recovers the plaintext private key transiently, for
	// signing a sweep transaction only; plaintext is never persisted.
	Decrypt(ctx context.Context, encryptedPrivateKey []byte) ([]byte, error)
}
