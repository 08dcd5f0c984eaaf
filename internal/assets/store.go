package assets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/inkfable/storypress/internal/aws"
)

// Asset types produced by this service.
const (
	TypeInteriorPDF = "book_pdf_interior"
	TypeCoverPDF    = "book_pdf_cover"
)

// GeneratedAsset is an immutable record of a produced file. Rows are appended
// on every render; history is never deleted, re-renders just add newer rows.
type GeneratedAsset struct {
	EntityID   string    `dynamodbav:"entity_id"` // PK, owning book or story
	AssetID    string    `dynamodbav:"asset_id"`  // SK, created_at-prefixed
	Type       string    `dynamodbav:"type"`
	StorageURL string    `dynamodbav:"storage_url"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
}

// Store encapsulates operations on the generated_assets table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new assets Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Append records a produced file.
func (s *Store) Append(ctx context.Context, entityID, assetType, storageURL string) (*GeneratedAsset, error) {
	now := s.nowFunc()
	a := GeneratedAsset{
		EntityID:   entityID,
		AssetID:    now.UTC().Format(time.RFC3339Nano) + "#" + uuid.NewString(),
		Type:       assetType,
		StorageURL: storageURL,
		CreatedAt:  now,
	}
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return nil, fmt.Errorf("marshal asset: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("put asset: %w", err)
	}
	return &a, nil
}

// LatestByType returns the most recently created asset of a type for an
// entity, or (nil, nil) when none exists. The created_at-prefixed sort key
// makes "newest first" a reverse key scan.
func (s *Store) LatestByType(ctx context.Context, entityID, assetType string) (*GeneratedAsset, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: awsString("entity_id = :e"),
		FilterExpression:       awsString("#t = :ty"),
		ExpressionAttributeNames: map[string]string{
			"#t": "type",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e":  &types.AttributeValueMemberS{Value: entityID},
			":ty": &types.AttributeValueMemberS{Value: assetType},
		},
		ScanIndexForward: awsBool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var a GeneratedAsset
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, fmt.Errorf("unmarshal asset: %w", err)
	}
	return &a, nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool      { return &b }
