package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerConfig holds consumer-specific configuration
type ConsumerConfig struct {
	GroupID          string
	Topics           []string
	MinBytes         int
	MaxBytes         int
	MaxWait          time.Duration
	CommitInterval   time.Duration
	StartOffset      int64
	HeartbeatInterval time.Duration
	SessionTimeout   time.Duration
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig(groupID string, topics []string) *ConsumerConfig {
	return &ConsumerConfig{
		GroupID:          groupID,
		Topics:           topics,
		MinBytes:         1e3,    // 1KB
		MaxBytes:         10e6,   // 10MB
		MaxWait:          time.Second,
		CommitInterval:   time.Second,
		StartOffset:      kafka.LastOffset,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:   30 * time.Second,
	}
}

// Consumer provides Kafka message consumption
type Consumer struct {
	client   *Client
	config   *ConsumerConfig
	reader   *kafka.Reader
	handlers map[string]MessageHandler
}

// MessageHandler processes a single Kafka message
type MessageHandler func(ctx context.Context, msg *kafka.Message) error

// NewConsumer creates a new Kafka consumer
func NewConsumer(client *Client, config *ConsumerConfig) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           client.Brokers(),
		GroupID:           config.GroupID,
		GroupTopics:       config.Topics,
		MinBytes:          config.MinBytes,
		MaxBytes:          config.MaxBytes,
		MaxWait:           config.MaxWait,
		CommitInterval:    config.CommitInterval,
		StartOffset:       config.StartOffset,
		HeartbeatInterval: config.HeartbeatInterval,
		SessionTimeout:    config.SessionTimeout,
		Dialer:            client.Dialer(),
	})

	return &Consumer{
		client:   client,
		config:   config,
		reader:   reader,
		handlers: make(map[string]MessageHandler),
	}
}

// RegisterHandler registers a handler for a specific topic
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	c.handlers[topic] = handler
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	slog.Info("Starting Kafka consumer",
		"group_id", c.config.GroupID,
		"topics", c.config.Topics)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Consumer context cancelled, shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled
				}
				slog.Error("Error fetching message", "error", err)
				continue
			}

			if err := c.processMessage(ctx, &msg); err != nil {
				slog.Error("Error processing message",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err)
				// Don't commit failed messages - they'll be reprocessed
				continue
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				slog.Error("Error committing message", "error", err)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *kafka.Message) error {
	handler, exists := c.handlers[msg.Topic]
	if !exists {
		slog.Warn("No handler for topic", "topic", msg.Topic)
		return nil
	}

	return handler(ctx, msg)
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// PaymentEventConsumer processes payment lifecycle events published to
// TopicPaymentEvents, TopicTransferEvents, and TopicSweepEvents. It
// exists for merchant-side or auxiliary services that want a durable,
// replayable feed of the same events the WebSocket hub and webhooks
// deliver; the engine process itself only produces to these topics.
type PaymentEventConsumer struct {
	consumer    *Consumer
	processFunc func(ctx context.Context, topic string, payload []byte) error
}

// NewPaymentEventConsumer creates a consumer across all three payment
// event topics, dispatching every message to processFunc.
func NewPaymentEventConsumer(client *Client, groupID string, processFunc func(ctx context.Context, topic string, payload []byte) error) *PaymentEventConsumer {
	config := DefaultConsumerConfig(groupID, []string{TopicPaymentEvents, TopicTransferEvents, TopicSweepEvents})
	consumer := NewConsumer(client, config)

	pec := &PaymentEventConsumer{
		consumer:    consumer,
		processFunc: processFunc,
	}

	consumer.RegisterHandler(TopicPaymentEvents, pec.handle)
	consumer.RegisterHandler(TopicTransferEvents, pec.handle)
	consumer.RegisterHandler(TopicSweepEvents, pec.handle)

	return pec
}

func (pec *PaymentEventConsumer) handle(ctx context.Context, msg *kafka.Message) error {
	if err := pec.processFunc(ctx, msg.Topic, msg.Value); err != nil {
		return fmt.Errorf("process %s event: %w", msg.Topic, err)
	}
	return nil
}

// Start begins consuming payment events.
func (pec *PaymentEventConsumer) Start(ctx context.Context) error {
	return pec.consumer.Start(ctx)
}

// Close closes the consumer.
func (pec *PaymentEventConsumer) Close() error {
	return pec.consumer.Close()
}

// HealthCheck verifies Kafka connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", strings.Split(c.config.BootstrapServers, ",")[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	defer conn.Close()

	_, err = conn.ApiVersions()
	if err != nil {
		return fmt.Errorf("failed to get API versions: %w", err)
	}

	return nil
}
