package fulfillment

// Message is the "order paid" trigger: API -> SQS -> worker. The queue is
// at-least-once, so the same message may arrive more than once.
type Message struct {
	OrderID       string `json:"order_id"`
	Source        string `json:"source,omitempty"` // "webhook" or "admin_retry"
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Result stages.
const (
	StageSkipped          = "skipped"
	StageWaitingForAssets = "waiting_for_assets"
	StageComplete         = "complete"
)

// Result reports a non-error processing outcome. Skipped and waiting stages
// are successes from the scheduler's point of view: re-delivery, not retry
// backoff, is the recovery path for them.
type Result struct {
	OrderID     string `json:"order_id"`
	Stage       string `json:"stage"`
	InteriorURL string `json:"interior_url,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
}
