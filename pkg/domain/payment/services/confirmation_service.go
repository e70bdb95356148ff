package payment_services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wopay/engine/pkg/domain/apperror"
	chain_out "github.com/wopay/engine/pkg/domain/chain/ports/out"
	merchant_out "github.com/wopay/engine/pkg/domain/merchant/ports/out"
	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
	payment_out "github.com/wopay/engine/pkg/domain/payment/ports/out"
)

// ConfirmationService is the periodic tick (default 30s) that re-reads
// confirmation depth for every payment in `confirmed`, writes the
// updated count, and promotes to `completed` once
// required_confirmations is reached. It also performs the reorg check:
// re-querying a bound transaction's inclusion and failing the payment
// if it is no longer canonical.
type ConfirmationService struct {
	store                 payment_out.PaymentStore
	chain                 chain_out.ChainClient
	merchants             merchant_out.MerchantRepository
	requiredConfirmations int
}

func NewConfirmationService(store payment_out.PaymentStore, chain chain_out.ChainClient, merchants merchant_out.MerchantRepository, requiredConfirmations int) *ConfirmationService {
	return &ConfirmationService{store: store, chain: chain, merchants: merchants, requiredConfirmations: requiredConfirmations}
}

// Tick runs one pass over every `confirmed` payment.
func (s *ConfirmationService) Tick(ctx context.Context) error {
	payments, err := s.store.ListPaymentsByStatus(ctx, payment_entities.PaymentStatusConfirmed)
	if err != nil {
		return err
	}

	head, err := s.chain.LatestBlockNumber(ctx)
	if err != nil {
		return err
	}

	for _, p := range payments {
		if err := s.tickOne(ctx, p, head); err != nil {
			slog.ErrorContext(ctx, "confirmation tick: failed to process payment", "payment_id", p.ID, "err", err)
		}
	}
	return nil
}

func (s *ConfirmationService) tickOne(ctx context.Context, p payment_entities.Payment, head uint64) error {
	if p.TransactionHash == nil {
		return nil
	}

	transfer, err := s.store.GetObservedTransfer(ctx, *p.TransactionHash)
	if err != nil {
		return err
	}

	canonical, err := s.chain.IsCanonical(ctx, common.HexToHash(*p.TransactionHash), transfer.BlockNumber)
	if err != nil {
		// TransientChainError: log and retry next tick, never fail the
		// payment on an RPC hiccup.
		slog.WarnContext(ctx, "confirmation tick: canonical check failed, will retry", "payment_id", p.ID, "err", err)
		return nil
	}

	if !canonical {
		return s.failReorged(ctx, p)
	}

	confirmations := 0
	if head+1 > transfer.BlockNumber {
		confirmations = int(head - transfer.BlockNumber + 1)
	}

	if confirmations < s.requiredConfirmations {
		// Write the updated count without a state change.
		_, err := s.store.TransitionPayment(ctx, p.ID, payment_entities.PaymentStatusConfirmed, payment_entities.PaymentStatusConfirmed, payment_out.TransitionFields{
			Confirmations: &confirmations,
		})
		if err != nil && !errors.Is(err, apperror.ErrStaleState) {
			return err
		}
		return nil
	}

	return s.complete(ctx, p, confirmations)
}

func (s *ConfirmationService) complete(ctx context.Context, p payment_entities.Payment, confirmations int) error {
	updated, err := s.store.TransitionPayment(ctx, p.ID, payment_entities.PaymentStatusConfirmed, payment_entities.PaymentStatusCompleted, payment_out.TransitionFields{
		Confirmations: &confirmations,
	})
	if err != nil {
		if errors.Is(err, apperror.ErrStaleState) {
			return nil
		}
		return err
	}

	if err := s.enqueueStatusWebhook(ctx, *updated); err != nil {
		slog.ErrorContext(ctx, "confirmation tick: failed to enqueue completed webhook", "payment_id", p.ID, "err", err)
	}

	if err := s.store.MarkAddressSwept(ctx, p.ID, false); err != nil {
		slog.WarnContext(ctx, "confirmation tick: failed to mark address sweep-eligible", "payment_id", p.ID, "err", err)
	}

	return nil
}

func (s *ConfirmationService) failReorged(ctx context.Context, p payment_entities.Payment) error {
	updated, err := s.store.TransitionPayment(ctx, p.ID, payment_entities.PaymentStatusConfirmed, payment_entities.PaymentStatusFailed, payment_out.TransitionFields{
		TransactionHash: nil,
	})
	if err != nil {
		if errors.Is(err, apperror.ErrStaleState) {
			return nil
		}
		return err
	}

	if err := s.enqueueStatusWebhook(ctx, *updated); err != nil {
		slog.ErrorContext(ctx, "confirmation tick: failed to enqueue failed webhook", "payment_id", p.ID, "err", err)
	}
	return nil
}

func (s *ConfirmationService) enqueueStatusWebhook(ctx context.Context, p payment_entities.Payment) error {
	merchant, err := s.merchants.GetByID(ctx, p.MerchantID)
	if err != nil {
		return err
	}

	payload, err := BuildPaymentStatusPayload(p)
	if err != nil {
		return err
	}

	_, err = s.store.EnqueueWebhook(ctx, p.ID, merchant.WebhookURL, payload, 0)
	return err
}
