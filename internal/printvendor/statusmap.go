package printvendor

import (
	"strings"

	"github.com/inkfable/storypress/internal/books"
)

// MapVendorStatus maps the vendor's free-text job status onto the canonical
// print status. Pure function, fixed priority order, case-insensitive
// substring match. Anything unrecognized (including empty) reads as
// submitted_api: the job exists but hasn't visibly progressed.
func MapVendorStatus(vendorStatus string) string {
	s := strings.ToLower(vendorStatus)
	switch {
	case strings.Contains(s, "error"), strings.Contains(s, "failed"):
		return books.StatusFailed
	case strings.Contains(s, "delivered"):
		return books.StatusDelivered
	case strings.Contains(s, "shipped"), strings.Contains(s, "in_transit"):
		return books.StatusShipped
	case strings.Contains(s, "printing"), strings.Contains(s, "production"), strings.Contains(s, "manufacturing"):
		return books.StatusInProduction
	default:
		return books.StatusSubmittedAPI
	}
}
