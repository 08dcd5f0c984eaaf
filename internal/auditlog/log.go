package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/inkfable/storypress/internal/aws"
)

// Log appends events to the audit_events table. Rows are never updated except
// to close the event opened by Begin, and never deleted.
type Log struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewLog returns a Log bound to a table.
func NewLog(client aws.DynamoDBAPI, tableName string) *Log {
	return &Log{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Begin appends a running event and returns a handle used to close it.
// payload (optional) is marshaled to JSON.
func (l *Log) Begin(ctx context.Context, kind, subject, stage, detail string, payload interface{}) (*Handle, error) {
	now := l.nowFunc()
	ev := Event{
		SubjectKey: kind + "#" + subject,
		EventID:    now.UTC().Format(time.RFC3339Nano) + "#" + uuid.NewString(),
		Kind:       kind,
		Subject:    subject,
		Status:     StatusRunning,
		Stage:      stage,
		Detail:     detail,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		ev.Payload = string(b)
	}

	item, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	_, err = l.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &l.tableName,
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}
	return &Handle{log: l, subjectKey: ev.SubjectKey, eventID: ev.EventID}, nil
}

// Handle closes an event opened by Begin.
type Handle struct {
	log        *Log
	subjectKey string
	eventID    string
}

// Succeed marks the event success, optionally replacing stage and payload.
func (h *Handle) Succeed(ctx context.Context, stage string, payload interface{}) error {
	var payloadJSON string
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		payloadJSON = string(b)
	}
	return h.log.close(ctx, h.subjectKey, h.eventID, StatusSuccess, stage, payloadJSON, "")
}

// Fail marks the event failed with the error message.
func (h *Handle) Fail(ctx context.Context, stage string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return h.log.close(ctx, h.subjectKey, h.eventID, StatusFailed, stage, "", msg)
}

func (l *Log) close(ctx context.Context, subjectKey, eventID, status, stage, payloadJSON, errMsg string) error {
	now := l.nowFunc()
	expr := "SET #s = :status, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: status},
		":ua":     &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
	}
	if stage != "" {
		expr += ", stage = :stage"
		values[":stage"] = &types.AttributeValueMemberS{Value: stage}
	}
	if payloadJSON != "" {
		expr += ", payload = :payload"
		values[":payload"] = &types.AttributeValueMemberS{Value: payloadJSON}
	}
	if errMsg != "" {
		expr += ", #e = :err"
		values[":err"] = &types.AttributeValueMemberS{Value: errMsg}
	}
	names := map[string]string{"#s": "status"}
	if errMsg != "" {
		names["#e"] = "error"
	}

	_, err := l.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &l.tableName,
		Key: map[string]types.AttributeValue{
			"subject_key": &types.AttributeValueMemberS{Value: subjectKey},
			"event_id":    &types.AttributeValueMemberS{Value: eventID},
		},
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("close event: %w", err)
	}
	return nil
}

// Record appends an already-final event in one write (no Begin/close pair).
func (l *Log) Record(ctx context.Context, kind, subject, status, stage, detail string, payload interface{}) error {
	now := l.nowFunc()
	ev := Event{
		SubjectKey: kind + "#" + subject,
		EventID:    now.UTC().Format(time.RFC3339Nano) + "#" + uuid.NewString(),
		Kind:       kind,
		Subject:    subject,
		Status:     status,
		Stage:      stage,
		Detail:     detail,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		ev.Payload = string(b)
	}
	item, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = l.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &l.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// List returns the event history for a kind/subject pair, newest first.
func (l *Log) List(ctx context.Context, kind, subject string) ([]Event, error) {
	out, err := l.client.Query(ctx, &dyn.QueryInput{
		TableName:              &l.tableName,
		KeyConditionExpression: awsString("subject_key = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sk": &types.AttributeValueMemberS{Value: kind + "#" + subject},
		},
		ScanIndexForward: awsBool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	events := make([]Event, 0, len(out.Items))
	for _, item := range out.Items {
		var ev Event
		if err := attributevalue.UnmarshalMap(item, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool      { return &b }
