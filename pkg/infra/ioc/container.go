package ioc

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	container "github.com/golobby/container/v3"

	common "github.com/wopay/engine/pkg/domain"
	chain_out "github.com/wopay/engine/pkg/domain/chain/ports/out"
	"github.com/wopay/engine/pkg/domain/follower"
	merchant_out "github.com/wopay/engine/pkg/domain/merchant/ports/out"
	payment_out "github.com/wopay/engine/pkg/domain/payment/ports/out"
	payment_services "github.com/wopay/engine/pkg/domain/payment/services"
	"github.com/wopay/engine/pkg/domain/sweep"
	"github.com/wopay/engine/pkg/domain/webhook"

	chaininfra "github.com/wopay/engine/pkg/infra/chain"
	"github.com/wopay/engine/pkg/infra/cryptutil"
	db "github.com/wopay/engine/pkg/infra/db/mongodb"
	"github.com/wopay/engine/pkg/infra/hdwallet"
	"github.com/wopay/engine/pkg/infra/kafka"
	"github.com/wopay/engine/pkg/infra/metrics"
	"github.com/wopay/engine/pkg/infra/websocket"

	geth_common "github.com/ethereum/go-ethereum/common"
)

// ContainerBuilder wires the engine's singletons via a fluent
// With*()-method chain over a single golobby/container.Container, each
// stage registering one or more c.Singleton(func() (T, error) {...})
// resolvers for WoPay's six-component singleton set.
type ContainerBuilder struct {
	Container container.Container
}

func NewContainerBuilder() *ContainerBuilder {
	c := container.New()
	b := &ContainerBuilder{c}

	if err := c.Singleton(func() container.Container { return b.Container }); err != nil {
		slog.Error("failed to register container.Container", "err", err)
		panic(err)
	}
	if err := c.Singleton(func() *ContainerBuilder { return b }); err != nil {
		slog.Error("failed to register *ContainerBuilder", "err", err)
		panic(err)
	}

	return b
}

func (b *ContainerBuilder) Build() container.Container {
	return b.Container
}

func (b *ContainerBuilder) WithEnvFile() *ContainerBuilder {
	if os.Getenv("DEV_ENV") == "true" {
		if err := godotenv.Load(); err != nil {
			slog.Warn("no .env file loaded", "err", err)
		}
	}

	err := b.Container.Singleton(func() (common.Config, error) {
		return EnvironmentConfig()
	})
	if err != nil {
		slog.Error("failed to load EnvironmentConfig", "err", err)
		panic(err)
	}

	return b
}

// WithMongoDB registers the *mongo.Database singleton every store below
// resolves against.
func (b *ContainerBuilder) WithMongoDB() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (*mongo.Database, error) {
		var cfg common.Config
		if err := c.Resolve(&cfg); err != nil {
			slog.Error("failed to resolve config for mongo.Database", "err", err)
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
		if err != nil {
			slog.Error("failed to connect to mongodb", "err", err)
			return nil, err
		}

		return client.Database(cfg.MongoDB.DBName), nil
	})
	if err != nil {
		slog.Error("failed to load *mongo.Database", "err", err)
		panic(err)
	}

	return b
}

// WithWebSocketHub registers the operator-dashboard broadcast hub.
func (b *ContainerBuilder) WithWebSocketHub() *ContainerBuilder {
	err := b.Container.Singleton(func() (*websocket.Hub, error) {
		return websocket.NewHub(), nil
	})
	if err != nil {
		slog.Error("failed to load *websocket.Hub", "err", err)
		panic(err)
	}
	return b
}

// WithStores registers the Payment Store and the read-only Merchant
// Repository. The Payment Store is wired to the WebSocket hub and the
// Kafka event publisher so every successful status transition is
// pushed to connected dashboards and, if enabled, the durable event
// feed.
func (b *ContainerBuilder) WithStores() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (payment_out.PaymentStore, error) {
		var database *mongo.Database
		var hub *websocket.Hub
		var publisher *kafka.EventPublisher
		if err := resolveAll(c, &database, &hub, &publisher); err != nil {
			return nil, err
		}
		return db.NewPaymentStore(database).WithBroadcaster(hub).WithEventPublisher(publisher), nil
	})
	if err != nil {
		slog.Error("failed to load payment_out.PaymentStore", "err", err)
		panic(err)
	}

	err = c.Singleton(func() (merchant_out.MerchantRepository, error) {
		var database *mongo.Database
		if err := c.Resolve(&database); err != nil {
			slog.Error("failed to resolve *mongo.Database for MerchantRepository", "err", err)
			return nil, err
		}
		return db.NewMerchantRepository(database), nil
	})
	if err != nil {
		slog.Error("failed to load merchant_out.MerchantRepository", "err", err)
		panic(err)
	}

	return b
}

// WithChainClient registers the ethclient-backed ChainClient.
func (b *ContainerBuilder) WithChainClient() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (chain_out.ChainClient, error) {
		var cfg common.Config
		if err := c.Resolve(&cfg); err != nil {
			slog.Error("failed to resolve config for ChainClient", "err", err)
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Chain.RPCTimeout)
		defer cancel()

		return chaininfra.Dial(ctx, cfg.Chain.RPCURL)
	})
	if err != nil {
		slog.Error("failed to load chain_out.ChainClient", "err", err)
		panic(err)
	}

	return b
}

// WithWallet registers the AEAD cipher and the HD wallet allocator
// (KeyDeriver) derived from the operator-provisioned seed.
func (b *ContainerBuilder) WithWallet() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (*cryptutil.AEAD, error) {
		var cfg common.Config
		if err := c.Resolve(&cfg); err != nil {
			slog.Error("failed to resolve config for AEAD", "err", err)
			return nil, err
		}
		return cryptutil.NewAEAD([]byte(cfg.Wallet.PrivateKeyEncryptionKey))
	})
	if err != nil {
		slog.Error("failed to load *cryptutil.AEAD", "err", err)
		panic(err)
	}

	err = c.Singleton(func() (payment_out.KeyDeriver, error) {
		var cfg common.Config
		if err := c.Resolve(&cfg); err != nil {
			slog.Error("failed to resolve config for KeyDeriver", "err", err)
			return nil, err
		}
		var aead *cryptutil.AEAD
		if err := c.Resolve(&aead); err != nil {
			slog.Error("failed to resolve AEAD for KeyDeriver", "err", err)
			return nil, err
		}
		return hdwallet.NewAllocatorFromMnemonic(cfg.Wallet.HDSeed, aead)
	})
	if err != nil {
		slog.Error("failed to load payment_out.KeyDeriver", "err", err)
		panic(err)
	}

	return b
}

// WithDomainServices registers the matcher, confirmation, expiry,
// follower, webhook dispatcher, and sweeper services — the six running
// components of the engine.
func (b *ContainerBuilder) WithDomainServices() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (*payment_services.MatcherService, error) {
		var cfg common.Config
		var store payment_out.PaymentStore
		if err := resolveAll(c, &cfg, &store); err != nil {
			return nil, err
		}
		return payment_services.NewMatcherService(store, cfg.Chain.RequiredConfirmations), nil
	})
	if err != nil {
		slog.Error("failed to load MatcherService", "err", err)
		panic(err)
	}

	err = c.Singleton(func() (*payment_services.ConfirmationService, error) {
		var cfg common.Config
		var store payment_out.PaymentStore
		var chainClient chain_out.ChainClient
		var merchants merchant_out.MerchantRepository
		if err := resolveAll(c, &cfg, &store, &chainClient, &merchants); err != nil {
			return nil, err
		}
		return payment_services.NewConfirmationService(store, chainClient, merchants, cfg.Chain.RequiredConfirmations), nil
	})
	if err != nil {
		slog.Error("failed to load ConfirmationService", "err", err)
		panic(err)
	}

	err = c.Singleton(func() (*payment_services.ExpiryService, error) {
		var store payment_out.PaymentStore
		var merchants merchant_out.MerchantRepository
		if err := resolveAll(c, &store, &merchants); err != nil {
			return nil, err
		}
		return payment_services.NewExpiryService(store, merchants), nil
	})
	if err != nil {
		slog.Error("failed to load ExpiryService", "err", err)
		panic(err)
	}

	err = c.Singleton(func() (*follower.Service, error) {
		var cfg common.Config
		var store payment_out.PaymentStore
		var chainClient chain_out.ChainClient
		var matcher *payment_services.MatcherService
		if err := resolveAll(c, &cfg, &store, &chainClient, &matcher); err != nil {
			return nil, err
		}
		return follower.NewService(store, chainClient, matcher, follower.Config{
			PollInterval:        cfg.Chain.PollInterval,
			ReorgDepth:          uint64(cfg.Chain.ReorgDepth),
			USDTContractAddress: geth_common.HexToAddress(cfg.Chain.USDTContractAddress),
		}), nil
	})
	if err != nil {
		slog.Error("failed to load follower.Service", "err", err)
		panic(err)
	}

	err = c.Singleton(func() (*webhook.Dispatcher, error) {
		var cfg common.Config
		var store payment_out.PaymentStore
		var merchants merchant_out.MerchantRepository
		if err := resolveAll(c, &cfg, &store, &merchants); err != nil {
			return nil, err
		}
		return webhook.NewDispatcher(store, merchants, webhook.Config{
			MaxConcurrentDeliveries: cfg.Webhook.MaxConcurrentDeliveries,
			PerMerchantConcurrency:  cfg.Webhook.PerMerchantConcurrency,
			AttemptTimeout:          cfg.Webhook.AttemptTimeout,
		}).WithMetrics(metrics.RecordWebhookAttempt), nil
	})
	if err != nil {
		slog.Error("failed to load webhook.Dispatcher", "err", err)
		panic(err)
	}

	err = c.Singleton(func() (*sweep.Service, error) {
		var cfg common.Config
		var store payment_out.PaymentStore
		var chainClient chain_out.ChainClient
		var deriver payment_out.KeyDeriver
		if err := resolveAll(c, &cfg, &store, &chainClient, &deriver); err != nil {
			return nil, err
		}
		return sweep.NewService(store, chainClient, deriver, sweep.Config{
			ChainID:             cfg.Chain.ChainID,
			USDTContractAddress: cfg.Chain.USDTContractAddress,
		}).WithMetrics(metrics.RecordSweep), nil
	})
	if err != nil {
		slog.Error("failed to load sweep.Service", "err", err)
		panic(err)
	}

	return b
}

// WithKafkaPublisher optionally registers the side-channel
// payment.status_changed event publisher — an additive operator
// convenience on top of the HTTP webhook surface, not a required
// output. Left disabled unless KAFKA_ENABLED is set.
func (b *ContainerBuilder) WithKafkaPublisher() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (*kafka.Client, error) {
		var cfg common.Config
		if err := c.Resolve(&cfg); err != nil {
			return nil, err
		}
		if !cfg.Kafka.Enabled {
			return nil, nil
		}
		return kafka.NewClient(&kafka.Config{
			BootstrapServers: cfg.Kafka.Brokers,
		})
	})
	if err != nil {
		slog.Error("failed to load *kafka.Client", "err", err)
		panic(err)
	}

	// EventPublisher wraps a possibly-nil *kafka.Client; every Publish
	// call is then a no-op when Kafka is disabled, so downstream
	// consumers never need their own nil check.
	err = c.Singleton(func() (*kafka.EventPublisher, error) {
		var client *kafka.Client
		if err := c.Resolve(&client); err != nil {
			return nil, err
		}
		return kafka.NewEventPublisher(client), nil
	})
	if err != nil {
		slog.Error("failed to load *kafka.EventPublisher", "err", err)
		panic(err)
	}

	return b
}

// With registers an arbitrary resolver, for wiring test doubles or
// ad-hoc singletons outside the fixed With*() stages above.
func (b *ContainerBuilder) With(resolver interface{}) *ContainerBuilder {
	if err := b.Container.Singleton(resolver); err != nil {
		slog.Error("failed to register resolver", "err", err)
		panic(err)
	}
	return b
}

// resolveAll resolves each pointer in order, short-circuiting on the
// first failure — a small helper to keep the WithDomainServices
// resolvers from repeating the same five-line if-err block per
// dependency.
func resolveAll(c container.Container, ptrs ...interface{}) error {
	for _, p := range ptrs {
		if err := c.Resolve(p); err != nil {
			slog.Error("failed to resolve dependency", "err", err)
			return err
		}
	}
	return nil
}
