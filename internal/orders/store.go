package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/inkfable/storypress/internal/aws"
)

// UserIndex is the GSI used to find a user's orders.
const UserIndex = "user_id-index"

// ErrStatusMismatch indicates a conditional payment-status transition did not
// apply because the order was not in the expected state. The affected-write
// outcome is the oracle; callers never read-then-write.
var ErrStatusMismatch = errors.New("payment status mismatch/conditional failed")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Put writes an order unconditionally. Checkout-session creation lives outside
// this service; Put exists for seeding and tests.
func (s *Store) Put(ctx context.Context, o Order) error {
	now := s.nowFunc()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// MarkPaid transitions pending -> paid and records the provider ids plus the
// shipping email captured from the checkout session. Returns ErrStatusMismatch
// when the order is not pending (e.g. a duplicate event landed after the first
// already flipped it).
func (s *Store) MarkPaid(ctx context.Context, orderID, sessionID, intentID, shippingEmail string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:    awsString("SET payment_status = :paid, provider_session_id = :sid, provider_intent_id = :pid, shipping_email = :em, updated_at = :ua"),
		ConditionExpression: awsString("payment_status = :pending"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":paid":    &types.AttributeValueMemberS{Value: StatusPaid},
			":pending": &types.AttributeValueMemberS{Value: StatusPending},
			":sid":     &types.AttributeValueMemberS{Value: sessionID},
			":pid":     &types.AttributeValueMemberS{Value: intentID},
			":em":      &types.AttributeValueMemberS{Value: shippingEmail},
			":ua":      &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("mark paid: %w", err)
	}
	return nil
}

// MarkExpired transitions pending -> expired. A paid order is never reverted:
// the condition refuses the write and the caller treats the mismatch as a no-op.
func (s *Store) MarkExpired(ctx context.Context, orderID string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:    awsString("SET payment_status = :expired, updated_at = :ua"),
		ConditionExpression: awsString("payment_status = :pending"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expired": &types.AttributeValueMemberS{Value: StatusExpired},
			":pending": &types.AttributeValueMemberS{Value: StatusPending},
			":ua":      &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("mark expired: %w", err)
	}
	return nil
}

// HasPaidOrder reports whether the user has at least one paid order. Used by
// the credit ledger to short-circuit debits for paying customers.
func (s *Store) HasPaidOrder(ctx context.Context, userID string) (bool, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(UserIndex),
		KeyConditionExpression: awsString("user_id = :u"),
		FilterExpression:       awsString("payment_status = :paid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u":    &types.AttributeValueMemberS{Value: userID},
			":paid": &types.AttributeValueMemberS{Value: StatusPaid},
		},
	})
	if err != nil {
		return false, fmt.Errorf("query user orders: %w", err)
	}
	return len(out.Items) > 0, nil
}

func awsString(s string) *string { return &s }
