// Package engine wires the six running components into one
// cooperatively-shutdown process: a goroutine per long-running task
// (`go hub.Run(ctx)`, `go dispatcher.Run(ctx)`), plus a Tick-based
// polling wrapper for the services that expose a single-pass
// Tick(ctx) error rather than their own internal loop.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wopay/engine/pkg/domain/follower"
	payment_services "github.com/wopay/engine/pkg/domain/payment/services"
	"github.com/wopay/engine/pkg/domain/sweep"
	"github.com/wopay/engine/pkg/domain/webhook"

	"github.com/wopay/engine/pkg/infra/metrics"
	"github.com/wopay/engine/pkg/infra/websocket"
)

// Default cadence for the Tick-based services when the caller leaves
// the matching Engine field at zero. The Confirmation Tracker and
// Expiry service re-check status on a short cadence since a pass only
// reads chain state or clock time and sends no transaction; the Sweeper's cadence
// is driven by WalletConfig.CollectionInterval instead (passed in by
// the caller), since it issues an on-chain transaction per pass.
const (
	defaultConfirmationTickInterval = 30 * time.Second
	defaultExpiryTickInterval       = 60 * time.Second
)

// Engine owns the lifetime of every background component. Nil fields
// are simply not started, so a caller can assemble a partial engine in
// tests.
type Engine struct {
	Follower     *follower.Service
	Confirmation *payment_services.ConfirmationService
	Expiry       *payment_services.ExpiryService
	Webhooks     *webhook.Dispatcher
	Sweeper      *sweep.Service
	Hub          *websocket.Hub

	WebhookPollInterval      time.Duration
	SweepInterval            time.Duration
	ConfirmationTickInterval time.Duration
	ExpiryTickInterval       time.Duration
}

// Run starts every configured component and blocks until ctx is
// cancelled, then waits for all of them to return before returning
// itself — the same "cancel, then wait" shutdown shape
// cmd/rest-api/main.go uses for its HTTP server and background jobs.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup

	start := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.InfoContext(ctx, "engine: component started", "component", name)
			fn(ctx)
			slog.InfoContext(ctx, "engine: component stopped", "component", name)
		}()
	}

	if e.Hub != nil {
		start("websocket_hub", e.Hub.Run)
	}
	if e.Follower != nil {
		start("follower", e.Follower.Run)
	}
	if e.Webhooks != nil {
		interval := e.WebhookPollInterval
		if interval == 0 {
			interval = 2 * time.Second
		}
		start("webhook_dispatcher", func(ctx context.Context) { e.Webhooks.Run(ctx, interval) })
	}
	if e.Confirmation != nil {
		interval := e.ConfirmationTickInterval
		if interval == 0 {
			interval = defaultConfirmationTickInterval
		}
		start("confirmation_tracker", runTicker(interval, "confirmation_tracker", e.Confirmation.Tick))
	}
	if e.Expiry != nil {
		interval := e.ExpiryTickInterval
		if interval == 0 {
			interval = defaultExpiryTickInterval
		}
		start("expiry", runTicker(interval, "expiry", e.Expiry.Tick))
	}
	if e.Sweeper != nil {
		interval := e.SweepInterval
		if interval == 0 {
			interval = 10 * time.Minute
		}
		start("sweeper", runTicker(interval, "sweeper", e.Sweeper.Tick))
	}

	wg.Wait()
}

// runTicker adapts a single-pass Tick(ctx) error method into a
// self-looping component, logging failures rather than stopping —
// a transient chain RPC or store error on one pass should not end the
// engine, the next tick simply retries.
func runTicker(interval time.Duration, name string, tick func(context.Context) error) func(context.Context) {
	return func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := tick(ctx); err != nil {
					slog.ErrorContext(ctx, "engine: tick failed", "component", name, "err", err)
				}
				metrics.RecordTick(name, time.Since(start))
			}
		}
	}
}
