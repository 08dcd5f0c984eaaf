package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/inkfable/storypress/internal/aws"
)

// Key builds the reservation key for a kind/subject pair.
func Key(kind, subject string) string {
	return kind + "#" + subject
}

// Store encapsulates reservation operations against DynamoDB. A reservation is
// claimed with a conditional put; the ConditionalCheckFailedException is the
// single duplicate-detection mechanism. No locks, no read-then-write.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // default TTL window when creating reservations
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// tableName: DynamoDB table name for reservations.
// ttlWindow: default TTL window (e.g., 48*time.Hour)
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// Reserve claims the key with status IN_PROGRESS if it does not exist.
// Returns (created=true, fresh reservation, nil) when the slot was claimed.
// Returns (created=false, existing, nil) when the key already exists; the caller
// decides based on the existing reservation's status (duplicate-delivery tolerance).
func (s *Store) Reserve(ctx context.Context, kind, subject string) (bool, *Reservation, error) {
	now := s.nowFunc()
	rec := Reservation{
		Key:       Key(kind, subject),
		Status:    StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, nil, fmt.Errorf("marshal reservation: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
		// Only create when attribute_not_exists(idempotency_key)
		ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
	}

	_, err = s.client.PutItem(ctx, input)
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			existing, getErr := s.Get(ctx, kind, subject)
			if getErr != nil {
				return false, nil, fmt.Errorf("fetch existing reservation: %w", getErr)
			}
			return false, existing, nil
		}
		return false, nil, fmt.Errorf("put reservation: %w", err)
	}

	return true, &rec, nil
}

// TakeOver moves a FAILED reservation back to IN_PROGRESS so the work can be
// re-attempted. The transition is conditional; if another worker already took
// the slot over, ErrNotTakeable is returned.
var ErrNotTakeable = errors.New("reservation is not in FAILED state")

func (s *Store) TakeOver(ctx context.Context, kind, subject string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: Key(kind, subject)},
		},
		UpdateExpression:         awsString("SET #s = :inprogress, updated_at = :ua"),
		ConditionExpression:      awsString("#s = :failed"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inprogress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":failed":     &types.AttributeValueMemberS{Value: StatusFailed},
			":ua":         &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotTakeable
		}
		return fmt.Errorf("take over reservation: %w", err)
	}
	return nil
}

// Get retrieves a reservation. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, kind, subject string) (*Reservation, error) {
	input := &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: Key(kind, subject)},
		},
	}
	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Reservation
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal reservation: %w", err)
	}
	return &rec, nil
}

// MarkDone sets status to DONE and stores a small response body & status for
// replaying to duplicate deliveries.
func (s *Store) MarkDone(ctx context.Context, kind, subject, responseBody string, responseStatus int) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: Key(kind, subject)},
		},
		UpdateExpression: awsString("SET #s = :done, response_body = :rb, response_status = :rs, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":done": &types.AttributeValueMemberS{Value: StatusDone},
			":rb":   &types.AttributeValueMemberS{Value: responseBody},
			":rs":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", responseStatus)},
			":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("update reservation (mark done): %w", err)
	}
	return nil
}

// MarkFailed marks the reservation as FAILED and optionally stores a note.
func (s *Store) MarkFailed(ctx context.Context, kind, subject, note string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: Key(kind, subject)},
		},
		UpdateExpression: awsString("SET #s = :failed, note = :n, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed": &types.AttributeValueMemberS{Value: StatusFailed},
			":n":      &types.AttributeValueMemberS{Value: note},
			":ua":     &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("update reservation (mark failed): %w", err)
	}
	return nil
}

// Helper
func awsString(s string) *string { return &s }
