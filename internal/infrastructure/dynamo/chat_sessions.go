package dynamo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cropintel-api/internal/domain"
)

const defaultChatTitle = "Chat"

// ChatSessionRepo stores chat sessions keyed by (user_id, session_id).
type ChatSessionRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewChatSessionRepo(client API, tableName string) *ChatSessionRepo {
	return &ChatSessionRepo{
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upsert creates or replaces a session's title and messages. created_at is
// set only on first write.
func (r *ChatSessionRepo) Upsert(ctx context.Context, userID string, in domain.ChatSessionInput) (*domain.ChatSession, error) {
	title := in.Title
	if title == "" {
		title = defaultChatTitle
	}
	messages := in.Messages
	if messages == nil {
		messages = []map[string]interface{}{}
	}
	msgAV, err := attributevalue.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}
	nowAV, err := attributevalue.Marshal(r.now())
	if err != nil {
		return nil, err
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              compositeKey(fieldUserID, userID, fieldSessionID, in.SessionID),
		UpdateExpression: aws.String("SET #t = :t, #m = :m, #u = :now, #c = if_not_exists(#c, :now)"),
		ExpressionAttributeNames: map[string]string{
			"#t": fieldTitle,
			"#m": fieldMessages,
			"#u": fieldUpdatedAt,
			"#c": fieldCreatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberS{Value: title},
			":m":   msgAV,
			":now": nowAV,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("save chat session: %w: %v", domain.ErrPersistence, err)
	}
	var s domain.ChatSession
	if err := attributevalue.UnmarshalMap(out.Attributes, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByUser returns every session of userID, most recently updated first.
func (r *ChatSessionRepo) ListByUser(ctx context.Context, userID string) ([]domain.ChatSession, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	}
	sessions := []domain.ChatSession{}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list chat sessions: %w: %v", domain.ErrPersistence, err)
		}
		var page []domain.ChatSession
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		sessions = append(sessions, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (r *ChatSessionRepo) Delete(ctx context.Context, userID, sessionID string) error {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          compositeKey(fieldUserID, userID, fieldSessionID, sessionID),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("delete chat session: %w: %v", domain.ErrPersistence, err)
	}
	if len(out.Attributes) == 0 {
		return fmt.Errorf("chat session not found: %w", domain.ErrNotFound)
	}
	return nil
}
