package printvendor

// Config holds vendor credentials and the fixed shipping profile. Missing
// fields surface as preflight blockers, never as mid-submit surprises.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string

	ContactEmail  string
	PODPackageID  string // vendor package/product identifier
	ShippingLevel string

	ShipName    string
	ShipStreet  string
	ShipCity    string
	ShipState   string
	ShipPostal  string
	ShipCountry string
	ShipPhone   string
}

// Configured reports whether the credentials required to talk to the vendor
// are present.
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.TokenURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// PreflightReport lists what blocks a submission and what merely deserves
// operator attention. Computed from live state only.
type PreflightReport struct {
	Blockers []string `json:"blockers"`
	Warnings []string `json:"warnings"`
}

// OK reports whether submission may proceed.
func (r PreflightReport) OK() bool { return len(r.Blockers) == 0 }

// shippingAddress is the vendor wire shape.
type shippingAddress struct {
	Name        string `json:"name"`
	Street1     string `json:"street1"`
	City        string `json:"city"`
	StateCode   string `json:"state_code,omitempty"`
	PostalCode  string `json:"postcode"`
	CountryCode string `json:"country_code"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type lineItem struct {
	ExternalID        string `json:"external_id"`
	Title             string `json:"title"`
	Quantity          int    `json:"quantity"`
	PODPackageID      string `json:"pod_package_id"`
	InteriorSourceURL string `json:"interior_source_url"`
	CoverSourceURL    string `json:"cover_source_url"`
}

type createJobRequest struct {
	ContactEmail    string          `json:"contact_email"`
	ExternalID      string          `json:"external_id"`
	ShippingAddress shippingAddress `json:"shipping_address"`
	ShippingLevel   string          `json:"shipping_level"`
	LineItems       []lineItem      `json:"line_items"`
}

// Job is the vendor's view of a print job.
type Job struct {
	ID          string `json:"id"`
	Status      string `json:"status"` // free text, see MapVendorStatus
	TrackingURL string `json:"tracking_url,omitempty"`
}
