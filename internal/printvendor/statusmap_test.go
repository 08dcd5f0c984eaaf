package printvendor

import (
	"testing"

	"github.com/inkfable/storypress/internal/books"
)

func TestMapVendorStatus(t *testing.T) {
	cases := []struct {
		vendor string
		want   string
	}{
		{"CREATED", books.StatusSubmittedAPI},
		{"", books.StatusSubmittedAPI},
		{"UNPAID", books.StatusSubmittedAPI},
		{"In Production", books.StatusInProduction},
		{"PRINTING", books.StatusInProduction},
		{"manufacturing", books.StatusInProduction},
		{"SHIPPED", books.StatusShipped},
		{"IN_TRANSIT", books.StatusShipped},
		{"DELIVERED", books.StatusDelivered},
		{"ERROR: file rejected", books.StatusFailed},
		{"print failed", books.StatusFailed},
		// error outranks everything else in the same status string
		{"shipped but delivery error", books.StatusFailed},
	}

	for _, tc := range cases {
		if got := MapVendorStatus(tc.vendor); got != tc.want {
			t.Errorf("MapVendorStatus(%q) = %q, want %q", tc.vendor, got, tc.want)
		}
	}
}
