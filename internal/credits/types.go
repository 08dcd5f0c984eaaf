package credits

import "time"

// Ledger entry types.
const (
	EntryStarterGrant    = "starter_grant"
	EntryGenerationDebit = "generation_debit"
	EntryPaidGrant       = "paid_grant"
)

// StarterBonusCents is the fixed balance granted on first touch.
const StarterBonusCents int64 = 100

// PaidRerollCents is the default paid-credit grant per paid order.
const PaidRerollCents int64 = 500

// UserCredits is the materialized balance cache, one row per user. The ledger
// is the source of truth; this row is kept in lock-step by committing every
// balance change and its ledger entry in one transaction.
type UserCredits struct {
	UserID             string    `dynamodbav:"user_id"` // PK
	Email              string    `dynamodbav:"email,omitempty"`
	StarterCreditsCents int64    `dynamodbav:"starter_credits_cents"`
	PaidCreditsCents    int64    `dynamodbav:"paid_credits_cents"`
	CreatedAt          time.Time `dynamodbav:"created_at"`
	UpdatedAt          time.Time `dynamodbav:"updated_at"`
}

// LedgerEntry is one immutable transaction. Balance snapshots are informational;
// the signed amounts are the authoritative history.
type LedgerEntry struct {
	UserID       string    `dynamodbav:"user_id"`  // PK
	EntryID      string    `dynamodbav:"entry_id"` // SK; paid grants use the deterministic "paid_grant#<order_id>"
	EntryType    string    `dynamodbav:"entry_type"`
	AmountCents  int64     `dynamodbav:"amount_cents"` // signed
	OrderID      string    `dynamodbav:"order_id,omitempty"`
	Operation    string    `dynamodbav:"operation,omitempty"`
	StarterAfter int64     `dynamodbav:"starter_after"`
	PaidAfter    int64     `dynamodbav:"paid_after"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
}

// DebitResult reports the outcome of a generation-credit consumption.
type DebitResult struct {
	Source                string `json:"source"` // "paid" or "starter"
	CostCents             int64  `json:"cost_cents"`
	RemainingStarterCents int64  `json:"remaining_starter_cents"`
}
