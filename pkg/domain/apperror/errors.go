// Package apperror names the fixed taxonomy of errors the engine's
// components propagate. Components check these with errors.Is/errors.As;
// no caller should branch on an error's string form.
package apperror

import "errors"

var (
	// ErrValidation marks input shape/range violations. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateOrder marks a uniqueness conflict on (merchant_id, order_id).
	ErrDuplicateOrder = errors.New("duplicate order")

	// ErrStaleState marks a CAS transition that lost a race. Callers
	// re-read current state and decide whether a transition is still
	// desired.
	ErrStaleState = errors.New("stale state")

	// ErrTransientChain marks an RPC timeout, 5xx, or connection loss.
	// Retried with backoff inside the originating task; never fails a
	// payment directly.
	ErrTransientChain = errors.New("transient chain error")

	// ErrPermanentChain marks a broadcast rejected for a deterministic
	// reason (nonce conflict, insufficient funds for a sweep).
	ErrPermanentChain = errors.New("permanent chain error")

	// ErrWebhookDelivery marks a captured per-attempt delivery failure.
	// Escalates only after the retry schedule is exhausted.
	ErrWebhookDelivery = errors.New("webhook delivery failure")

	// ErrStore marks the database being unavailable.
	ErrStore = errors.New("store error")

	// ErrNotFound marks a lookup that found no row. Distinct from the
	// taxonomy above but needed by every repository to distinguish
	// "no such payment" from a store failure.
	ErrNotFound = errors.New("not found")
)
