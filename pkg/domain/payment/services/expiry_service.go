package payment_services

import (
	"errors"
	"context"
	"log/slog"
	"time"

	"github.com/wopay/engine/pkg/domain/apperror"
	merchant_out "github.com/wopay/engine/pkg/domain/merchant/ports/out"
	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
	payment_out "github.com/wopay/engine/pkg/domain/payment/ports/out"
)

// ExpiryService is the periodic tick (default 60s): it
// enumerates payments in `pending` with expires_at < now and attempts
// `pending → expired`; a transfer arriving after expiry does not revive
// the payment, it becomes an unmatched deposit (enforced simply by the
// CAS no longer finding the payment in `pending`).
type ExpiryService struct {
	store     payment_out.PaymentStore
	merchants merchant_out.MerchantRepository
}

func NewExpiryService(store payment_out.PaymentStore, merchants merchant_out.MerchantRepository) *ExpiryService {
	return &ExpiryService{store: store, merchants: merchants}
}

func (s *ExpiryService) Tick(ctx context.Context) error {
	pending, err := s.store.ListPaymentsByStatus(ctx, payment_entities.PaymentStatusPending)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, p := range pending {
		if p.ExpiresAt.After(now) {
			continue
		}
		if err := s.expireOne(ctx, p); err != nil {
			slog.ErrorContext(ctx, "expiry tick: failed to expire payment", "payment_id", p.ID, "err", err)
		}
	}
	return nil
}

func (s *ExpiryService) expireOne(ctx context.Context, p payment_entities.Payment) error {
	updated, err := s.store.TransitionPayment(ctx, p.ID, payment_entities.PaymentStatusPending, payment_entities.PaymentStatusExpired, payment_out.TransitionFields{})
	if err != nil {
		if errors.Is(err, apperror.ErrStaleState) {
			// A transfer bound concurrently; no longer eligible to expire.
			return nil
		}
		return err
	}

	merchant, err := s.merchants.GetByID(ctx, updated.MerchantID)
	if err != nil {
		return err
	}

	payload, err := BuildPaymentStatusPayload(*updated)
	if err != nil {
		return err
	}

	_, err = s.store.EnqueueWebhook(ctx, updated.ID, merchant.WebhookURL, payload, 0)
	return err
}
