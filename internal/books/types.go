package books

import "time"

// Print statuses. draft through failed are the canonical lifecycle; the two
// extra members cover the generation pipeline that runs before submission.
const (
	StatusDraft             = "draft"
	StatusPendingGeneration = "pending_generation"
	StatusPDFReady          = "pdf_ready"
	StatusSubmittedManual   = "submitted_manual"
	StatusSubmittedAPI      = "submitted_api"
	StatusInProduction      = "in_production"
	StatusShipped           = "shipped"
	StatusDelivered         = "delivered"
	StatusFailed            = "failed"
	StatusErrored           = "errored" // fatal generation failure, needs operator attention
)

// Book is the fulfillment record for an order: where the PDFs live and how far
// along the print vendor is. Keyed by order_id so the conditional create
// enforces at most one live book per order.
type Book struct {
	OrderID     string    `dynamodbav:"order_id"` // PK
	BookID      string    `dynamodbav:"book_id"`  // GSI book_id-index
	UserID      string    `dynamodbav:"user_id"`
	StoryID     string    `dynamodbav:"story_id"`
	PDFURL      string    `dynamodbav:"pdf_url,omitempty"` // interior PDF
	PrintStatus string    `dynamodbav:"print_status"`
	VendorJobID string    `dynamodbav:"vendor_job_id,omitempty"`
	TrackingURL string    `dynamodbav:"tracking_url,omitempty"`
	CreatedAt   time.Time `dynamodbav:"created_at"`
	UpdatedAt   time.Time `dynamodbav:"updated_at"`
}
