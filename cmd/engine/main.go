// Command engine runs the WoPay payment engine: the Block Follower,
// Confirmation Tracker, Expiry service, Webhook Dispatcher, and Sweeper
// as one cooperatively-shut-down process, plus a small HTTP surface for
// health checks and /metrics. Grounded on cmd/rest-api/main.go's
// bootstrap shape: JSON slog handler, IoC container build, goroutines
// started after resolution, SIGTERM/SIGINT-triggered graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chain_out "github.com/wopay/engine/pkg/domain/chain/ports/out"
	"github.com/wopay/engine/pkg/domain/follower"
	payment_out "github.com/wopay/engine/pkg/domain/payment/ports/out"
	payment_services "github.com/wopay/engine/pkg/domain/payment/services"
	"github.com/wopay/engine/pkg/domain/sweep"
	"github.com/wopay/engine/pkg/domain/webhook"

	common "github.com/wopay/engine/pkg/domain"
	wopayengine "github.com/wopay/engine/pkg/engine"
	"github.com/wopay/engine/pkg/infra/ioc"
	"github.com/wopay/engine/pkg/infra/metrics"
	"github.com/wopay/engine/pkg/infra/websocket"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	builder := ioc.NewContainerBuilder()
	c := builder.
		WithEnvFile().
		WithMongoDB().
		WithWebSocketHub().
		WithStores().
		WithChainClient().
		WithWallet().
		WithDomainServices().
		WithKafkaPublisher().
		Build()

	var cfg common.Config
	if err := c.Resolve(&cfg); err != nil {
		slog.ErrorContext(ctx, "failed to resolve config", "err", err)
		os.Exit(1)
	}

	var followerSvc *follower.Service
	var confirmationSvc *payment_services.ConfirmationService
	var expirySvc *payment_services.ExpiryService
	var webhookDispatcher *webhook.Dispatcher
	var sweeperSvc *sweep.Service
	var hub *websocket.Hub

	if err := resolveAll(c, &followerSvc, &confirmationSvc, &expirySvc, &webhookDispatcher, &sweeperSvc, &hub); err != nil {
		slog.ErrorContext(ctx, "failed to resolve engine components", "err", err)
		os.Exit(1)
	}

	// Resolve the chain client and payment store, and query the chain ID
	// once at boot so a misconfigured RPC URL fails fast instead of
	// silently during the first poll.
	var chainClient chain_out.ChainClient
	var store payment_out.PaymentStore
	if err := resolveAll(c, &chainClient, &store); err != nil {
		slog.ErrorContext(ctx, "failed to resolve chain client / payment store", "err", err)
		os.Exit(1)
	}
	if _, err := chainClient.ChainID(ctx); err != nil {
		slog.ErrorContext(ctx, "chain client health check failed", "err", err)
		os.Exit(1)
	}

	e := &wopayengine.Engine{
		Follower:                 followerSvc,
		Confirmation:             confirmationSvc,
		Expiry:                   expirySvc,
		Webhooks:                 webhookDispatcher,
		Sweeper:                  sweeperSvc,
		Hub:                      hub,
		WebhookPollInterval:      2 * time.Second,
		SweepInterval:            cfg.Wallet.CollectionInterval,
		ConfirmationTickInterval: cfg.Engine.ConfirmationTickInterval,
		ExpiryTickInterval:       cfg.Engine.ExpiryTickInterval,
	}

	go e.Run(ctx)
	slog.InfoContext(ctx, "engine components started")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", hub.UpgradeHandler(ctx))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      metrics.Middleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-shutdownChan
		slog.InfoContext(ctx, "received shutdown signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "http server shutdown error", "err", err)
		}

		cancel()
		slog.InfoContext(ctx, "shutdown complete")
	}()

	slog.InfoContext(ctx, "listening", "port", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.ErrorContext(ctx, "http server error", "err", err)
		os.Exit(1)
	}
}

func resolveAll(c interface{ Resolve(interface{}) error }, ptrs ...interface{}) error {
	for _, p := range ptrs {
		if err := c.Resolve(p); err != nil {
			return err
		}
	}
	return nil
}
