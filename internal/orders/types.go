package orders

import "time"

// Payment statuses. A paid order is paid for good: no update expression in this
// package moves payment_status away from StatusPaid.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
	StatusExpired = "expired"
)

// Order represents the item stored in the orders DynamoDB table. Orders are
// created at checkout-session creation (outside this service) and mutated only
// by the payment event gateway.
type Order struct {
	OrderID           string    `dynamodbav:"order_id"`           // PK
	UserID            string    `dynamodbav:"user_id"`            // GSI user_id-index
	StoryID           string    `dynamodbav:"story_id,omitempty"` // the story being fulfilled
	PaymentStatus     string    `dynamodbav:"payment_status"`
	AmountCents       int64     `dynamodbav:"amount_cents"`
	Currency          string    `dynamodbav:"currency"`
	ProviderSessionID string    `dynamodbav:"provider_session_id,omitempty"`
	ProviderIntentID  string    `dynamodbav:"provider_intent_id,omitempty"`
	ShippingEmail     string    `dynamodbav:"shipping_email,omitempty"`
	CreatedAt         time.Time `dynamodbav:"created_at"`
	UpdatedAt         time.Time `dynamodbav:"updated_at"`
}
