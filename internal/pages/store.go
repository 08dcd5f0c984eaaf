package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/inkfable/storypress/internal/aws"
)

// Store encapsulates operations on the final_pages table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new pages Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Put writes one page version. The content pipeline owns creation; Put also
// serves seeding and tests.
func (s *Store) Put(ctx context.Context, p FinalPage) error {
	if p.PageID == "" {
		p.PageID = PageID(p.Kind, p.SceneNo, p.Version)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.nowFunc()
	}
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put page: %w", err)
	}
	return nil
}

// ListByStory returns every saved page version for a story, in sort-key order
// (scene pages grouped by scene number, covers last under the cover# prefix).
func (s *Store) ListByStory(ctx context.Context, storyID string) ([]FinalPage, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: awsString("story_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: storyID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	pagesOut := make([]FinalPage, 0, len(out.Items))
	for _, item := range out.Items {
		var p FinalPage
		if err := attributevalue.UnmarshalMap(item, &p); err != nil {
			return nil, fmt.Errorf("unmarshal page: %w", err)
		}
		pagesOut = append(pagesOut, p)
	}
	return pagesOut, nil
}

// Approve approves one version of a scene and unapproves all its siblings, so
// at most one version per scene is approved at any time. The sibling sweep runs
// first; a crash in between leaves the scene with zero approved versions, which
// canonical selection handles (falls back to newest).
func (s *Store) Approve(ctx context.Context, storyID, pageID string) error {
	all, err := s.ListByStory(ctx, storyID)
	if err != nil {
		return err
	}

	var target *FinalPage
	for i := range all {
		if all[i].PageID == pageID {
			target = &all[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("page not found: %s", pageID)
	}

	for _, sibling := range all {
		if sibling.PageID == pageID || sibling.SceneNo != target.SceneNo || sibling.Kind != target.Kind {
			continue
		}
		if !sibling.IsApproved {
			continue
		}
		if err := s.setApproved(ctx, storyID, sibling.PageID, false); err != nil {
			return fmt.Errorf("unapprove sibling %s: %w", sibling.PageID, err)
		}
	}

	return s.setApproved(ctx, storyID, pageID, true)
}

func (s *Store) setApproved(ctx context.Context, storyID, pageID string, approved bool) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"story_id": &types.AttributeValueMemberS{Value: storyID},
			"page_id":  &types.AttributeValueMemberS{Value: pageID},
		},
		UpdateExpression: awsString("SET is_approved = :ap"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ap": &types.AttributeValueMemberBOOL{Value: approved},
		},
	})
	if err != nil {
		return fmt.Errorf("set approved: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
