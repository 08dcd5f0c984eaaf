package auditlog

import "time"

// Event statuses share a single vocabulary across every component that writes
// history: webhook processing, fulfillment, print submission, notifications.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Event kinds.
const (
	KindPaymentEvent = "payment_event"
	KindFulfillment  = "fulfillment"
	KindPrintJob     = "print_job"
	KindNotification = "notification"
)

// Event is one append-only history row. Events are operator-facing history
// only; liveness decisions (blockers, duplicate gating) never read them.
type Event struct {
	SubjectKey string    `dynamodbav:"subject_key"` // PK, "<kind>#<subject>"
	EventID    string    `dynamodbav:"event_id"`    // SK, created_at-prefixed for ordering
	Kind       string    `dynamodbav:"kind"`
	Subject    string    `dynamodbav:"subject"`
	Status     string    `dynamodbav:"status"`
	Stage      string    `dynamodbav:"stage,omitempty"`
	Detail     string    `dynamodbav:"detail,omitempty"`  // human-readable description
	Payload    string    `dynamodbav:"payload,omitempty"` // structured JSON
	Error      string    `dynamodbav:"error,omitempty"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
	UpdatedAt  time.Time `dynamodbav:"updated_at"`
}
