package idempotency

import "time"

// Status values for reservations
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Reservation kinds. The key space is shared by every component that needs
// at-most-once gating, so kinds namespace the subject ids.
const (
	KindPaymentEvent = "payment_event"
	KindNotification = "notification"
)

// Reservation is the shape persisted in the idempotency_keys DynamoDB table.
// It is deliberately small: rich history lives in the audit event log, which
// references reservations by key.
type Reservation struct {
	Key            string    `dynamodbav:"idempotency_key"` // PK, "<kind>#<subject>"
	Status         string    `dynamodbav:"status"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"` // small responses only
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	Note           string    `dynamodbav:"note,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}
