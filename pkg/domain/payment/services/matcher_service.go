// Package payment_services holds the Matcher & Confirmation
// Tracker: the engine's state machine. Each service switches on a
// payment's status and requests the transition through the store's
// CAS call, which decides legality; the services then work with the
// payment row the store returns.
package payment_services

import (
	"context"
	"errors"
	"log/slog"

	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
	payment_out "github.com/wopay/engine/pkg/domain/payment/ports/out"

	"github.com/wopay/engine/pkg/domain/apperror"
)

type MatcherService struct {
	store                 payment_out.PaymentStore
	requiredConfirmations int
}

func NewMatcherService(store payment_out.PaymentStore, requiredConfirmations int) *MatcherService {
	return &MatcherService{store: store, requiredConfirmations: requiredConfirmations}
}

// MatchTransfer implements the matching policy for one incoming
// ObservedTransfer. It is the Block Follower's callback for every
// transfer it persists.
func (s *MatcherService) MatchTransfer(ctx context.Context, transfer payment_entities.ObservedTransfer) error {
	payment, err := s.store.ByReceivingAddress(ctx, transfer.ToAddress, transfer.Currency)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// No open payment expects this address: belongs to a
			// terminated payment or an address the Sweeper already owns.
			// Record-but-ignore.
			slog.InfoContext(ctx, "matcher: transfer has no open payment", "tx_hash", transfer.TransactionHash, "to", transfer.ToAddress.String())
			return nil
		}
		return err
	}

	if payment.Status != payment_entities.PaymentStatusPending {
		// Already bound or terminal; nothing to do.
		return nil
	}

	if transfer.Amount.LessThan(payment.ExpectedAmount) {
		// Underpayment: leave pending. First-match-wins means we do
		// not aggregate partial transfers toward the threshold.
		slog.InfoContext(ctx, "matcher: underpayment, payment stays pending", "payment_id", payment.ID, "expected", payment.ExpectedAmount.String(), "got", transfer.Amount.String())
		return nil
	}

	txHash := transfer.TransactionHash
	fields := payment_out.TransitionFields{
		TransactionHash: &txHash,
		Confirmations:   intPtr(transfer.Confirmations),
	}

	_, err = s.store.TransitionPayment(ctx, payment.ID, payment_entities.PaymentStatusPending, payment_entities.PaymentStatusConfirmed, fields)
	if err != nil {
		if errors.Is(err, apperror.ErrStaleState) {
			// A concurrent transfer already won the binding; drop ours.
			slog.InfoContext(ctx, "matcher: CAS lost race, binding already recorded", "payment_id", payment.ID)
			return nil
		}
		return err
	}

	if err := s.store.BindTransferToPayment(ctx, transfer.TransactionHash, payment.ID); err != nil {
		return err
	}

	slog.InfoContext(ctx, "matcher: payment bound to transfer", "payment_id", payment.ID, "tx_hash", transfer.TransactionHash)
	return nil
}

func intPtr(i int) *int { return &i }
