package books

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

// BookIndex is the GSI used for admin lookups by book id.
const BookIndex = "book_id-index"

// Store encapsulates operations on the books table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new books Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// EnsureForOrder creates the book for an order if none exists and returns it.
// The conditional put on order_id makes concurrent creation attempts collapse
// to a single book. Safe to call on every fulfillment attempt.
func (s *Store) EnsureForOrder(ctx context.Context, orderID, userID, storyID string) (*Book, error) {
	now := s.nowFunc()
	b := Book{
		OrderID:     orderID,
		BookID:      uuid.NewString(),
		UserID:      userID,
		StoryID:     storyID,
		PrintStatus: StatusPendingGeneration,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item, err := attributevalue.MarshalMap(b)
	if err != nil {
		return nil, fmt.Errorf("marshal book: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return s.GetByOrder(ctx, orderID)
		}
		return nil, fmt.Errorf("put book: %w", err)
	}
	return &b, nil
}

// GetByOrder fetches the book for an order. Returns (nil, nil) if not found.
func (s *Store) GetByOrder(ctx context.Context, orderID string) (*Book, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var b Book
	if err := attributevalue.UnmarshalMap(out.Item, &b); err != nil {
		return nil, fmt.Errorf("unmarshal book: %w", err)
	}
	return &b, nil
}

// GetByBookID resolves a book through the book_id GSI. Returns (nil, nil) if
// not found.
func (s *Store) GetByBookID(ctx context.Context, bookID string) (*Book, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(BookIndex),
		KeyConditionExpression: awsString("book_id = :b"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":b": &types.AttributeValueMemberS{Value: bookID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query book by id: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var b Book
	if err := attributevalue.UnmarshalMap(out.Items[0], &b); err != nil {
		return nil, fmt.Errorf("unmarshal book: %w", err)
	}
	return &b, nil
}

// SetPrintStatus overwrites print_status.
func (s *Store) SetPrintStatus(ctx context.Context, orderID, status string) error {
	return s.update(ctx, orderID, "SET print_status = :ps, updated_at = :ua", map[string]types.AttributeValue{
		":ps": &types.AttributeValueMemberS{Value: status},
	})
}

// SetPDFReady points the book at a freshly rendered interior PDF.
func (s *Store) SetPDFReady(ctx context.Context, orderID, pdfURL string) error {
	return s.update(ctx, orderID, "SET print_status = :ps, pdf_url = :url, updated_at = :ua", map[string]types.AttributeValue{
		":ps":  &types.AttributeValueMemberS{Value: StatusPDFReady},
		":url": &types.AttributeValueMemberS{Value: pdfURL},
	})
}

// SetVendorJob records the vendor job id, the mapped status, and the tracking
// URL after a submit or refresh.
func (s *Store) SetVendorJob(ctx context.Context, orderID, jobID, status, trackingURL string) error {
	return s.update(ctx, orderID, "SET vendor_job_id = :job, print_status = :ps, tracking_url = :trk, updated_at = :ua", map[string]types.AttributeValue{
		":job": &types.AttributeValueMemberS{Value: jobID},
		":ps":  &types.AttributeValueMemberS{Value: status},
		":trk": &types.AttributeValueMemberS{Value: trackingURL},
	})
}

func (s *Store) update(ctx context.Context, orderID, expr string, values map[string]types.AttributeValue) error {
	values[":ua"] = &types.AttributeValueMemberS{Value: s.nowFunc().Format(time.RFC3339)}
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:          &expr,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
