package payment_services

import (
	"encoding/json"
	"time"

	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
)

// webhookPayload is the exact outbound body shape sent to merchants.
type webhookPayload struct {
	EventType string             `json:"event_type"`
	Timestamp string             `json:"timestamp"`
	Data      webhookPayloadData `json:"data"`
}

type webhookPayloadData struct {
	PaymentID       string  `json:"payment_id"`
	OrderID         string  `json:"order_id"`
	Status          string  `json:"status"`
	Amount          string  `json:"amount"`
	Currency        string  `json:"currency"`
	TransactionHash *string `json:"transaction_hash"`
	Confirmations   int     `json:"confirmations"`
}

// BuildPaymentStatusPayload builds the byte-identical payload body that
// will be HMAC-signed and sent on every attempt for this status change —
// it is built once, at enqueue time, never regenerated per retry, so
// the signature stays stable across the retry schedule.
func BuildPaymentStatusPayload(p payment_entities.Payment) ([]byte, error) {
	payload := webhookPayload{
		EventType: "payment_status_changed",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data: webhookPayloadData{
			PaymentID:       p.ID.String(),
			OrderID:         p.OrderID,
			Status:          string(p.Status),
			Amount:          p.ExpectedAmount.String(),
			Currency:        string(p.Currency),
			TransactionHash: p.TransactionHash,
			Confirmations:   p.Confirmations,
		},
	}
	return json.Marshal(payload)
}
