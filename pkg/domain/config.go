package common

import "time"

// Config is the engine's single configuration surface, registered as a
// singleton and loaded from the environment (optionally via a .env
// file in development) by pkg/infra/ioc.
type Config struct {
	MongoDB MongoDBConfig
	Chain   ChainConfig
	Wallet  WalletConfig
	Webhook WebhookConfig
	Kafka   KafkaConfig
	Engine  EngineConfig
	DevEnv  bool
}

// EngineConfig covers the cadence of the Tick-based background
// components that don't derive their own interval from domain state
// (the Sweeper instead runs on WalletConfig.CollectionInterval).
type EngineConfig struct {
	ConfirmationTickInterval time.Duration
	ExpiryTickInterval       time.Duration
}

type MongoDBConfig struct {
	URI    string
	DBName string
}

// ChainConfig covers the chain-facing connection and polling options.
type ChainConfig struct {
	ChainID             int64
	RPCURL              string
	WSURL               string
	USDTContractAddress string
	RequiredConfirmations int
	ReorgDepth          int
	PollInterval        time.Duration
	RPCTimeout          time.Duration
}

// WalletConfig covers the HD seed / encryption key / sweep options.
type WalletConfig struct {
	HDSeed                  string
	PrivateKeyEncryptionKey string
	MasterAddress           string
	CollectionThreshold     string // decimal string, parsed with decimal.NewFromString
	CollectionInterval      time.Duration
	AutoCollectionEnabled   bool
}

// WebhookConfig covers the dispatcher's delivery options.
type WebhookConfig struct {
	RetrySchedule           []time.Duration
	MaxConcurrentDeliveries int
	PerMerchantConcurrency  int
	AttemptTimeout          time.Duration
}

// KafkaConfig is the optional side-channel event publisher's config.
type KafkaConfig struct {
	Brokers string
	Topic   string
	Enabled bool
}
