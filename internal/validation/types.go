package validation

// ConsumeCreditsRequest is the payload for POST /internal/credits/consume,
// called by the content pipeline before each paid generation step.
type ConsumeCreditsRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	Operation string `json:"operation" validate:"required"` // must be a known generation operation
	Email     string `json:"email,omitempty"`               // used for lazy starter-credit creation
}

// ApprovePageRequest is the payload for the admin page-approval action.
type ApprovePageRequest struct {
	PageID string `json:"page_id" validate:"required"`
}
