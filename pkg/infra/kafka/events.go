package kafka

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Topic constants for payment lifecycle events.
const (
	TopicPaymentEvents  = "wopay.payment.events"
	TopicTransferEvents = "wopay.transfer.events"
	TopicSweepEvents    = "wopay.sweep.events"
	TopicDLQ            = "wopay.dlq"
)

// Event types carried in Message.Headers["event_type"].
const (
	EventTypePaymentStatusChanged = "PAYMENT_STATUS_CHANGED"
	EventTypeTransferObserved     = "TRANSFER_OBSERVED"
	EventTypeTransferMatched      = "TRANSFER_MATCHED"
	EventTypeSweepCompleted       = "SWEEP_COMPLETED"
	EventTypeSweepFailed          = "SWEEP_FAILED"
)

// EventPublisher publishes payment domain events to Kafka topics. It is
// an optional sink: merchants that want a durable, replayable event
// feed consume it directly rather than relying solely on webhooks.
type EventPublisher struct {
	client *Client
}

// NewEventPublisher creates a new EventPublisher. client may be nil,
// in which case every Publish call is a no-op — Kafka is disabled by
// default and only wired in when KAFKA_ENABLED is set.
func NewEventPublisher(client *Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// PaymentStatusChangedEvent mirrors the payload merchants already
// receive over webhooks and the WebSocket hub, so the three channels
// stay consistent.
type PaymentStatusChangedEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	PaymentID   uuid.UUID `json:"payment_id"`
	MerchantID  uuid.UUID `json:"merchant_id"`
	FromStatus  string    `json:"from_status"`
	ToStatus    string    `json:"to_status"`
	Currency    string    `json:"currency"`
	EventType   string    `json:"event_type"`
	Timestamp   int64     `json:"timestamp"`
}

// PublishPaymentStatusChanged publishes a payment state transition.
func (p *EventPublisher) PublishPaymentStatusChanged(ctx context.Context, event *PaymentStatusChangedEvent) error {
	if p.client == nil {
		return nil
	}

	event.EventID = uuid.New()
	event.EventType = EventTypePaymentStatusChanged
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	msg := &Message{
		Key:       event.PaymentID.String(),
		Value:     event,
		Timestamp: time.Now(),
		Headers: map[string]string{
			"event_type":  event.EventType,
			"merchant_id": event.MerchantID.String(),
		},
	}

	return p.client.Publish(ctx, TopicPaymentEvents, msg)
}

// TransferEvent represents an on-chain USDT transfer the Block
// Follower observed, optionally already matched to a payment.
type TransferEvent struct {
	EventID     uuid.UUID  `json:"event_id"`
	TxHash      string     `json:"tx_hash"`
	LogIndex    uint       `json:"log_index"`
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	Amount      string     `json:"amount"`
	BlockNumber uint64     `json:"block_number"`
	PaymentID   *uuid.UUID `json:"payment_id,omitempty"`
	EventType   string     `json:"event_type"`
	Timestamp   int64      `json:"timestamp"`
}

// PublishTransferObserved publishes a newly-indexed transfer, before it
// has necessarily been matched to a payment.
func (p *EventPublisher) PublishTransferObserved(ctx context.Context, event *TransferEvent) error {
	if p.client == nil {
		return nil
	}

	event.EventID = uuid.New()
	event.EventType = EventTypeTransferObserved
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	msg := &Message{
		Key:       event.TxHash,
		Value:     event,
		Timestamp: time.Now(),
		Headers: map[string]string{
			"event_type": event.EventType,
			"to_address": event.ToAddress,
		},
	}

	return p.client.Publish(ctx, TopicTransferEvents, msg)
}

// PublishTransferMatched publishes the same transfer once the Matcher
// has associated it with a payment.
func (p *EventPublisher) PublishTransferMatched(ctx context.Context, event *TransferEvent) error {
	if p.client == nil {
		return nil
	}

	event.EventID = uuid.New()
	event.EventType = EventTypeTransferMatched
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	msg := &Message{
		Key:       event.TxHash,
		Value:     event,
		Timestamp: time.Now(),
		Headers: map[string]string{
			"event_type": event.EventType,
			"to_address": event.ToAddress,
		},
	}

	return p.client.Publish(ctx, TopicTransferEvents, msg)
}

// SweepEvent represents an attempt to sweep a deposit address's
// balance to the master wallet.
type SweepEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	Address     string    `json:"address"`
	Currency    string    `json:"currency"`
	Amount      string    `json:"amount"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Error       string    `json:"error,omitempty"`
	EventType   string    `json:"event_type"`
	Timestamp   int64     `json:"timestamp"`
}

// PublishSweepResult publishes the outcome of a sweep attempt; callers
// set event.Error to mark a failed sweep, leaving it empty for success.
func (p *EventPublisher) PublishSweepResult(ctx context.Context, event *SweepEvent) error {
	if p.client == nil {
		return nil
	}

	event.EventID = uuid.New()
	if event.Error != "" {
		event.EventType = EventTypeSweepFailed
	} else {
		event.EventType = EventTypeSweepCompleted
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	msg := &Message{
		Key:       event.Address,
		Value:     event,
		Timestamp: time.Now(),
		Headers: map[string]string{
			"event_type": event.EventType,
			"currency":   event.Currency,
		},
	}

	return p.client.Publish(ctx, TopicSweepEvents, msg)
}
