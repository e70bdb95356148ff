package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wopay/engine/pkg/domain/apperror"
	merchant_entities "github.com/wopay/engine/pkg/domain/merchant/entities"
)

const merchantsCollection = "merchants"

// MerchantRepository is read-only from the engine's perspective —
// merchant onboarding happens elsewhere; this repository only looks
// merchants up by ID.
type MerchantRepository struct {
	db *mongo.Database
}

func NewMerchantRepository(db *mongo.Database) *MerchantRepository {
	return &MerchantRepository{db: db}
}

func (r *MerchantRepository) GetByID(ctx context.Context, id uuid.UUID) (*merchant_entities.Merchant, error) {
	var m merchant_entities.Merchant
	err := r.db.Collection(merchantsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return &m, nil
}
