// Package merchant_entities defines the identity that creates payments
// and receives webhooks. Merchant CRUD lives elsewhere — this package
// only carries the shape the payment engine reads, not a command
// surface to create or update one.
package merchant_entities

import (
	"time"

	"github.com/google/uuid"
)

type MerchantStatus string

const (
	MerchantStatusActive    MerchantStatus = "active"
	MerchantStatusInactive  MerchantStatus = "inactive"
	MerchantStatusSuspended MerchantStatus = "suspended"
)

// Merchant is referenced immutably by payments. API key and email are
// globally unique (enforced by the store's indexes, not here).
type Merchant struct {
	ID         uuid.UUID      `json:"id" bson:"_id"`
	Name       string         `json:"name" bson:"name"`
	Email      string         `json:"email" bson:"email"`
	APIKey     string         `json:"api_key" bson:"api_key"`
	HMACSecret string         `json:"-" bson:"hmac_secret"`
	WebhookURL string         `json:"webhook_url" bson:"webhook_url"`
	Status     MerchantStatus `json:"status" bson:"status"`
	CreatedAt  time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" bson:"updated_at"`
}

func (m Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}
