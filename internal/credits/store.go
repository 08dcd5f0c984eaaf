package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/inkfable/storypress/internal/aws"
)

// ErrInsufficientCredits indicates the conditional decrement found less balance
// than the operation costs.
var ErrInsufficientCredits = errors.New("insufficient starter credits")

// ErrUnknownOperation indicates no cost is configured for the operation.
var ErrUnknownOperation = errors.New("unknown generation operation")

// PaidOrderChecker answers "does this user have a paid order". Satisfied by
// *orders.Store; injected so the ledger has no import cycle with orders.
type PaidOrderChecker interface {
	HasPaidOrder(ctx context.Context, userID string) (bool, error)
}

// Store owns the user_credits balances and the credit_ledger history.
type Store struct {
	client       aws.DynamoDBAPI
	creditsTable string
	ledgerTable  string
	paidOrders   PaidOrderChecker
	costs        map[string]int64
	nowFunc      func() time.Time
}

// defaultCosts are the fixed per-operation generation costs in cents.
var defaultCosts = map[string]int64{
	"story_text":    25,
	"character_art": 25,
	"storyboard":    25,
	"final_page":    25,
}

// NewStore creates a new credits Store.
func NewStore(client aws.DynamoDBAPI, creditsTable, ledgerTable string, paidOrders PaidOrderChecker) *Store {
	return &Store{
		client:       client,
		creditsTable: creditsTable,
		ledgerTable:  ledgerTable,
		paidOrders:   paidOrders,
		costs:        defaultCosts,
		nowFunc:      time.Now,
	}
}

// EnsureStarterCredits lazily creates the user's credits row with the fixed
// starter bonus and appends the starter_grant entry, both in one transaction.
// A lost first-touch race is benign: the loser's conditional put cancels the
// whole transaction and the user keeps the winner's single grant.
func (s *Store) EnsureStarterCredits(ctx context.Context, userID, email string) error {
	now := s.nowFunc()
	row := UserCredits{
		UserID:              userID,
		Email:               email,
		StarterCreditsCents: StarterBonusCents,
		PaidCreditsCents:    0,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	entry := LedgerEntry{
		UserID:       userID,
		EntryID:      now.UTC().Format(time.RFC3339Nano) + "#" + uuid.NewString(),
		EntryType:    EntryStarterGrant,
		AmountCents:  StarterBonusCents,
		StarterAfter: StarterBonusCents,
		PaidAfter:    0,
		CreatedAt:    now,
	}

	rowItem, err := attributevalue.MarshalMap(row)
	if err != nil {
		return fmt.Errorf("marshal credits row: %w", err)
	}
	entryItem, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.creditsTable,
					Item:                rowItem,
					ConditionExpression: awsString("attribute_not_exists(user_id)"),
				},
			},
			{
				Put: &types.Put{
					TableName: &s.ledgerTable,
					Item:      entryItem,
				},
			},
		},
	})
	if err != nil {
		if isConditionalCancel(err) {
			// already created, possibly by a concurrent first touch
			return nil
		}
		return fmt.Errorf("create starter credits: %w", err)
	}
	return nil
}

// ConsumeGenerationCredit debits the fixed cost of operation from the user's
// starter balance. Users with any paid order short-circuit to success without a
// balance change. The decrement is a single conditional update whose outcome is
// the sole success oracle; the ledger entry commits in the same transaction.
func (s *Store) ConsumeGenerationCredit(ctx context.Context, userID, operation string) (*DebitResult, error) {
	cost, ok := s.costs[operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
	}

	paid, err := s.paidOrders.HasPaidOrder(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check paid orders: %w", err)
	}
	if paid {
		return &DebitResult{Source: "paid", CostCents: 0}, nil
	}

	// Pre-read only feeds the informational snapshot on the ledger entry.
	// Success is decided by the conditional decrement alone.
	current, err := s.GetBalances(ctx, userID)
	if err != nil {
		return nil, err
	}
	var starterBefore, paidBefore int64
	if current != nil {
		starterBefore = current.StarterCreditsCents
		paidBefore = current.PaidCreditsCents
	}

	now := s.nowFunc()
	entry := LedgerEntry{
		UserID:       userID,
		EntryID:      now.UTC().Format(time.RFC3339Nano) + "#" + uuid.NewString(),
		EntryType:    EntryGenerationDebit,
		AmountCents:  -cost,
		Operation:    operation,
		StarterAfter: starterBefore - cost,
		PaidAfter:    paidBefore,
		CreatedAt:    now,
	}
	entryItem, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal ledger entry: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: &s.creditsTable,
					Key: map[string]types.AttributeValue{
						"user_id": &types.AttributeValueMemberS{Value: userID},
					},
					UpdateExpression:    awsString("SET starter_credits_cents = starter_credits_cents - :cost, updated_at = :ua"),
					ConditionExpression: awsString("starter_credits_cents >= :cost"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":cost": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", cost)},
						":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName: &s.ledgerTable,
					Item:      entryItem,
				},
			},
		},
	})
	if err != nil {
		if isConditionalCancel(err) {
			remaining := int64(0)
			if after, rerr := s.GetBalances(ctx, userID); rerr == nil && after != nil {
				remaining = after.StarterCreditsCents
			}
			return &DebitResult{Source: "starter", CostCents: cost, RemainingStarterCents: remaining}, ErrInsufficientCredits
		}
		return nil, fmt.Errorf("debit starter credits: %w", err)
	}

	return &DebitResult{Source: "starter", CostCents: cost, RemainingStarterCents: starterBefore - cost}, nil
}

// GrantPaidRerollCredits grants paid credits for an order. The ledger entry's
// deterministic sort key (paid_grant#orderID) with attribute_not_exists makes
// the grant idempotent: a duplicate grant cancels the transaction and no-ops.
func (s *Store) GrantPaidRerollCredits(ctx context.Context, userID, orderID string, amountCents int64) error {
	if amountCents <= 0 {
		amountCents = PaidRerollCents
	}

	now := s.nowFunc()
	entry := LedgerEntry{
		UserID:      userID,
		EntryID:     EntryPaidGrant + "#" + orderID,
		EntryType:   EntryPaidGrant,
		AmountCents: amountCents,
		OrderID:     orderID,
		CreatedAt:   now,
	}
	if current, err := s.GetBalances(ctx, userID); err == nil && current != nil {
		entry.StarterAfter = current.StarterCreditsCents
		entry.PaidAfter = current.PaidCreditsCents + amountCents
	} else {
		entry.PaidAfter = amountCents
	}
	entryItem, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.ledgerTable,
					Item:                entryItem,
					ConditionExpression: awsString("attribute_not_exists(entry_id)"),
				},
			},
			{
				Update: &types.Update{
					TableName: &s.creditsTable,
					Key: map[string]types.AttributeValue{
						"user_id": &types.AttributeValueMemberS{Value: userID},
					},
					UpdateExpression: awsString("SET paid_credits_cents = if_not_exists(paid_credits_cents, :zero) + :amt, starter_credits_cents = if_not_exists(starter_credits_cents, :zero), updated_at = :ua"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":amt":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", amountCents)},
						":zero": &types.AttributeValueMemberN{Value: "0"},
						":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
					},
				},
			},
		},
	})
	if err != nil {
		if isConditionalCancel(err) {
			// grant already recorded for this order
			return nil
		}
		return fmt.Errorf("grant paid credits: %w", err)
	}
	return nil
}

// GetBalances fetches the balance row. Returns (nil, nil) if the user has no
// credits row yet.
func (s *Store) GetBalances(ctx context.Context, userID string) (*UserCredits, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.creditsTable,
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get credits: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var row UserCredits
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		return nil, fmt.Errorf("unmarshal credits: %w", err)
	}
	return &row, nil
}

// isConditionalCancel reports whether a TransactWriteItems error was caused by
// a conditional check, as opposed to a throughput or validation failure.
func isConditionalCancel(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

func awsString(s string) *string { return &s }
