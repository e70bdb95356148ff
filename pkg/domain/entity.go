package common

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity is the shared shape every persisted WoPay row embeds: a
// stable id and the two timestamps the engine's CAS transitions bump.
// The teacher's BaseEntity additionally carried a ResourceOwner/
// VisibilityLevel tenancy model; WoPay has no multi-tenant visibility
// requirement (every row belongs to exactly one merchant, referenced by
// id, not scoped by tenant/client/group), so that machinery is dropped.
type BaseEntity struct {
	ID        uuid.UUID `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

type Entity interface {
	GetID() uuid.UUID
}

func (b BaseEntity) GetID() uuid.UUID {
	return b.ID
}

func NewEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
