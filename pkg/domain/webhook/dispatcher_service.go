// Package webhook implements the Webhook Dispatcher: signs payloads,
// delivers with retries, and records outcomes. Delivery runs on a
// fixed-size worker pool bounded by global and per-merchant
// concurrency caps, over a bare net/http outbound-call style. HMAC
// signing uses stdlib crypto/hmac + crypto/sha256 — no third-party
// HMAC library fits this narrow a use, so this is a deliberate stdlib
// choice, not an omission.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	merchant_out "github.com/wopay/engine/pkg/domain/merchant/ports/out"
	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
	payment_out "github.com/wopay/engine/pkg/domain/payment/ports/out"

	"github.com/google/uuid"
)

// RetrySchedule is the fixed backoff: five retries after the initial
// attempt, at 5s, 15s, 45s, 135s, 405s.
var RetrySchedule = []time.Duration{
	5 * time.Second,
	15 * time.Second,
	45 * time.Second,
	135 * time.Second,
	405 * time.Second,
}

type Config struct {
	MaxConcurrentDeliveries int
	PerMerchantConcurrency  int
	AttemptTimeout          time.Duration
}

type Dispatcher struct {
	store     payment_out.PaymentStore
	merchants merchant_out.MerchantRepository
	cfg       Config
	client    *http.Client

	globalSem chan struct{}
	mu        sync.Mutex
	merchSem  map[uuid.UUID]chan struct{}

	recordAttempt func(outcome string, duration time.Duration)
}

// WithMetrics wires an observer called once per delivery attempt with
// its outcome ("delivered", "retrying", "failed_permanent",
// "abandoned") and wall-clock
// duration. Left nil, no metrics are recorded — the zero value is a
// usable Dispatcher.
func (d *Dispatcher) WithMetrics(record func(outcome string, duration time.Duration)) *Dispatcher {
	d.recordAttempt = record
	return d
}

func NewDispatcher(store payment_out.PaymentStore, merchants merchant_out.MerchantRepository, cfg Config) *Dispatcher {
	if cfg.MaxConcurrentDeliveries == 0 {
		cfg.MaxConcurrentDeliveries = 32
	}
	if cfg.PerMerchantConcurrency == 0 {
		cfg.PerMerchantConcurrency = 4
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	return &Dispatcher{
		store:     store,
		merchants: merchants,
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.AttemptTimeout},
		globalSem: make(chan struct{}, cfg.MaxConcurrentDeliveries),
		merchSem:  make(map[uuid.UUID]chan struct{}),
	}
}

// Run polls the store for pending attempts every interval until ctx is
// cancelled, dispatching each to a worker bounded by the global and
// per-merchant concurrency caps.
func (d *Dispatcher) Run(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatchPending(ctx)
		}
	}
}

func (d *Dispatcher) dispatchPending(ctx context.Context) {
	attempts, err := d.store.PendingWebhookAttempts(ctx, d.cfg.MaxConcurrentDeliveries*2)
	if err != nil {
		slog.ErrorContext(ctx, "dispatcher: failed to list pending attempts", "err", err)
		return
	}

	var wg sync.WaitGroup
	for _, a := range attempts {
		attempt := a
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.deliverOne(ctx, attempt)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) deliverOne(ctx context.Context, attempt payment_entities.WebhookAttempt) {
	select {
	case d.globalSem <- struct{}{}:
		defer func() { <-d.globalSem }()
	case <-ctx.Done():
		return
	}

	payment, err := d.store.GetPayment(ctx, attempt.PaymentID)
	if err != nil {
		slog.ErrorContext(ctx, "dispatcher: payment lookup failed", "payment_id", attempt.PaymentID, "err", err)
		return
	}
	merchant, err := d.merchants.GetByID(ctx, payment.MerchantID)
	if err != nil {
		slog.ErrorContext(ctx, "dispatcher: merchant lookup failed", "merchant_id", payment.MerchantID, "err", err)
		return
	}

	merchSem := d.merchantSemaphore(merchant.ID)
	select {
	case merchSem <- struct{}{}:
		defer func() { <-merchSem }()
	case <-ctx.Done():
		return
	}

	attemptStart := time.Now()
	status, body, permanent, deliveryErr := d.attempt(ctx, merchant.HMACSecret, attempt.TargetURL, attempt.Payload)
	success := deliveryErr == nil && status >= 200 && status < 300
	attemptDuration := time.Since(attemptStart)

	if err := d.store.MarkWebhookResult(ctx, attempt.ID, status, body, success); err != nil {
		slog.ErrorContext(ctx, "dispatcher: failed to record attempt result", "attempt_id", attempt.ID, "err", err)
	}

	if success || permanent {
		d.record(outcomeFor(success, permanent), attemptDuration)
		return
	}

	if attempt.AttemptIndex >= len(RetrySchedule) {
		slog.WarnContext(ctx, "dispatcher: retry schedule exhausted, abandoning", "payment_id", attempt.PaymentID, "attempt_index", attempt.AttemptIndex)
		d.record("abandoned", attemptDuration)
		return
	}
	d.record("retrying", attemptDuration)

	// Schedule the retry: byte-identical payload, next attempt index.
	// The actual delay is honored by PendingWebhookAttempts only
	// surfacing a row once its scheduled time has passed — the store
	// implementation stamps that from RetrySchedule[attempt.AttemptIndex].
	if _, err := d.store.EnqueueWebhook(ctx, attempt.PaymentID, attempt.TargetURL, attempt.Payload, attempt.AttemptIndex+1); err != nil {
		slog.ErrorContext(ctx, "dispatcher: failed to enqueue retry", "payment_id", attempt.PaymentID, "err", err)
	}
}

func (d *Dispatcher) merchantSemaphore(merchantID uuid.UUID) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	sem, ok := d.merchSem[merchantID]
	if !ok {
		sem = make(chan struct{}, d.cfg.PerMerchantConcurrency)
		d.merchSem[merchantID] = sem
	}
	return sem
}

// attempt performs one HTTP POST delivery. It returns permanent=true for
// any 4xx response other than 408/429.
func (d *Dispatcher) attempt(ctx context.Context, secret, targetURL string, payload []byte) (status int, body string, permanent bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(payload))
	if err != nil {
		return 0, "", true, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-WoPay-Signature", "sha256="+sign(secret, payload))
	req.Header.Set("X-WoPay-Webhook-Id", uuid.New().String())

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", false, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	isRetryableClientErr := resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests
	isPermanent := resp.StatusCode >= 400 && resp.StatusCode < 500 && !isRetryableClientErr

	return resp.StatusCode, string(respBody), isPermanent, nil
}

func (d *Dispatcher) record(outcome string, duration time.Duration) {
	if d.recordAttempt != nil {
		d.recordAttempt(outcome, duration)
	}
}

func outcomeFor(success, permanent bool) string {
	if success {
		return "delivered"
	}
	if permanent {
		return "failed_permanent"
	}
	return "failed_transient"
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
