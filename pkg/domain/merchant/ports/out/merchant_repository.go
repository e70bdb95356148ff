package merchant_out

import (
	"context"

	"github.com/google/uuid"
	merchant_entities "github.com/wopay/engine/pkg/domain/merchant/entities"
)

// MerchantRepository is a read-only lookup surface. Merchant creation
// and mutation belong to an external API layer; the engine only ever
// reads a merchant's webhook target and HMAC secret.
type MerchantRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*merchant_entities.Merchant, error)
}
