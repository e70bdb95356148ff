package payment_entities

import (
	"time"

	"github.com/google/uuid"
)

// WebhookAttempt is the durable record of one outbound delivery attempt
// for one payment. Attempts for the same payment form an ordered
// sequence by AttemptIndex.
type WebhookAttempt struct {
	ID             uuid.UUID `json:"id" bson:"_id"`
	PaymentID      uuid.UUID `json:"payment_id" bson:"payment_id"`
	TargetURL      string    `json:"target_url" bson:"target_url"`
	Payload        []byte    `json:"-" bson:"payload"`
	AttemptIndex   int       `json:"attempt_index" bson:"attempt_index"`
	ResponseStatus int       `json:"response_status" bson:"response_status"`
	ResponseBody   string    `json:"response_body" bson:"response_body"`
	Success        bool      `json:"success" bson:"success"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}
