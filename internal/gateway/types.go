package gateway

// Provider event types this gateway acts on. Everything else is accepted and
// ignored.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

// Event is the provider webhook envelope, trimmed to what processing needs.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`                  // checkout session id
			ClientReferenceID string `json:"client_reference_id"` // our order id
			PaymentIntent     string `json:"payment_intent"`
			CustomerDetails   struct {
				Email string `json:"email"`
			} `json:"customer_details"`
		} `json:"object"`
	} `json:"data"`
}

// Outcome results.
const (
	ResultProcessed    = "processed"
	ResultDuplicate    = "duplicate"
	ResultIgnored      = "ignored"
	ResultUnknownOrder = "unknown_order"
	ResultInProgress   = "in_progress"
)

// Outcome describes what a verified event did. Duplicates and unknown orders
// are successes: the provider must not redeliver them.
type Outcome struct {
	Result  string `json:"result"`
	OrderID string `json:"order_id,omitempty"`
}
