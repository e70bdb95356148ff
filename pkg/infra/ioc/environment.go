package ioc

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	common "github.com/wopay/engine/pkg/domain"
)

// buildMongoURI constructs a MongoDB connection URI with credentials if
// provided.
func buildMongoURI() string {
	uri := os.Getenv("MONGO_URI")

	user := os.Getenv("MONGODB_USER")
	password := os.Getenv("MONGODB_PASSWORD")

	if user != "" && password != "" {
		parsed, err := url.Parse(uri)
		if err == nil && parsed.User == nil {
			parsed.User = url.UserPassword(user, password)
			q := parsed.Query()
			if q.Get("authSource") == "" {
				q.Set("authSource", "admin")
				parsed.RawQuery = q.Encode()
			}
			return parsed.String()
		}
	}

	if uri == "" {
		host := os.Getenv("MONGODB_HOST")
		port := os.Getenv("MONGODB_PORT")
		dbName := os.Getenv("MONGODB_DATABASE")
		if host != "" && port != "" && dbName != "" {
			if user != "" && password != "" {
				uri = fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
					url.QueryEscape(user), url.QueryEscape(password), host, port, dbName)
			} else {
				uri = fmt.Sprintf("mongodb://%s:%s/%s", host, port, dbName)
			}
		}
	}

	return uri
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}

// EnvironmentConfig loads the engine's full configuration surface —
// Mongo, chain RPC, wallet, webhook, and Kafka sections — from the
// process environment.
func EnvironmentConfig() (common.Config, error) {
	retrySchedule := []time.Duration{
		5 * time.Second, 15 * time.Second, 45 * time.Second,
		135 * time.Second, 405 * time.Second,
	}

	config := common.Config{
		DevEnv: envBool("DEV_ENV", false),
		MongoDB: common.MongoDBConfig{
			URI:    buildMongoURI(),
			DBName: os.Getenv("MONGODB_DATABASE"),
		},
		Chain: common.ChainConfig{
			ChainID:               envInt64("CHAIN_ID", 1),
			RPCURL:                os.Getenv("CHAIN_RPC_URL"),
			WSURL:                 os.Getenv("CHAIN_WS_URL"),
			USDTContractAddress:   os.Getenv("USDT_CONTRACT_ADDRESS"),
			RequiredConfirmations: envInt("REQUIRED_CONFIRMATIONS", 12),
			ReorgDepth:            envInt("REORG_DEPTH", 1),
			PollInterval:          envDuration("CHAIN_POLL_INTERVAL", 5*time.Second),
			RPCTimeout:            envDuration("CHAIN_RPC_TIMEOUT", 10*time.Second),
		},
		Wallet: common.WalletConfig{
			HDSeed:                  os.Getenv("WALLET_HD_SEED"),
			PrivateKeyEncryptionKey: os.Getenv("WALLET_ENCRYPTION_KEY"),
			MasterAddress:           os.Getenv("WALLET_MASTER_ADDRESS"),
			CollectionThreshold:     os.Getenv("WALLET_COLLECTION_THRESHOLD"),
			CollectionInterval:      envDuration("WALLET_COLLECTION_INTERVAL", 60*time.Minute),
			AutoCollectionEnabled:   envBool("WALLET_AUTO_COLLECTION_ENABLED", true),
		},
		Webhook: common.WebhookConfig{
			RetrySchedule:           retrySchedule,
			MaxConcurrentDeliveries: envInt("WEBHOOK_MAX_CONCURRENT_DELIVERIES", 32),
			PerMerchantConcurrency:  envInt("WEBHOOK_PER_MERCHANT_CONCURRENCY", 4),
			AttemptTimeout:          envDuration("WEBHOOK_ATTEMPT_TIMEOUT", 10*time.Second),
		},
		Kafka: common.KafkaConfig{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   os.Getenv("KAFKA_PAYMENT_EVENTS_TOPIC"),
			Enabled: envBool("KAFKA_ENABLED", false),
		},
		Engine: common.EngineConfig{
			ConfirmationTickInterval: envDuration("CONFIRMATION_TICK_INTERVAL", 30*time.Second),
			ExpiryTickInterval:       envDuration("EXPIRY_TICK_INTERVAL", 60*time.Second),
		},
	}

	return config, nil
}
