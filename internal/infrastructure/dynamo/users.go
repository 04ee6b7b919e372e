package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cropintel-api/internal/config"
	"github.com/cropintel-api/internal/domain"
	"github.com/cropintel-api/internal/pkg/id"
)

const (
	uniqueHandlePrefix = "HANDLE#"
	uniqueEmailPrefix  = "EMAIL#"

	reasonConditionalCheckFailed = "ConditionalCheckFailed"
)

// UserRepo is the identity directory. Users live in the users table; the
// user_uniques table holds one marker item per handle and per email so that
// uniqueness is enforced by a conditional transaction rather than a read.
type UserRepo struct {
	client       API
	usersTable   string
	uniquesTable string
	now          func() time.Time
}

func NewUserRepo(client API, tables config.DynamoTables) *UserRepo {
	return &UserRepo{
		client:       client,
		usersTable:   tables.Users,
		uniquesTable: tables.UserUniques,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Insert writes u together with its handle and email markers. When another
// account already holds either value, nothing is written and ErrHandleTaken
// or ErrEmailTaken is returned.
func (r *UserRepo) Insert(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.usersTable),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
			r.markerPut(uniqueHandlePrefix+u.Handle, u.UserID),
			r.markerPut(uniqueEmailPrefix+u.Email, u.UserID),
		},
	})
	if err == nil {
		return nil
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for i, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) != reasonConditionalCheckFailed {
				continue
			}
			switch i {
			case 1:
				return domain.ErrHandleTaken
			case 2:
				return domain.ErrEmailTaken
			default:
				return fmt.Errorf("user id collision: %w", domain.ErrConflict)
			}
		}
	}
	return fmt.Errorf("insert user: %w: %v", domain.ErrPersistence, err)
}

func (r *UserRepo) markerPut(key, userID string) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(r.uniquesTable),
		Item: map[string]types.AttributeValue{
			fieldUniqueKey: &types.AttributeValueMemberS{Value: key},
			fieldUserID:    &types.AttributeValueMemberS{Value: userID},
		},
		ConditionExpression: aws.String("attribute_not_exists(unique_key)"),
	}}
}

// Get skips the read for ids that are not ULIDs; no such user can exist.
func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	if !id.Valid(userID) {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.usersTable),
		Key:       strKey(fieldUserID, userID),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w: %v", domain.ErrPersistence, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByHandle(ctx context.Context, handle string) (*domain.User, error) {
	return r.queryGSI(ctx, indexHandle, fieldHandle, handle)
}

// GetByEmail returns ErrAccountNotFound when no user has this email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := r.queryGSI(ctx, indexEmail, fieldEmail, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	return u, err
}

func (r *UserRepo) ExistsByHandle(ctx context.Context, handle string) (bool, error) {
	return r.exists(ctx, indexHandle, fieldHandle, handle)
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, indexEmail, fieldEmail, email)
}

// FindByHandleOrEmail resolves a login identifier. Identifiers containing '@'
// are treated as emails.
func (r *UserRepo) FindByHandleOrEmail(ctx context.Context, identifier string) (*domain.User, error) {
	if strings.Contains(identifier, "@") {
		return r.GetByEmail(ctx, identifier)
	}
	return r.GetByHandle(ctx, identifier)
}

// UpdateCredential replaces the password hash of the account owning email.
func (r *UserRepo) UpdateCredential(ctx context.Context, email, passwordHash string) error {
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	_, err = r.Update(ctx, u.UserID, map[string]interface{}{fieldPasswordHash: passwordHash})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrAccountNotFound
	}
	return err
}

// Update applies a partial SET to an existing user and returns the stored result.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) (*domain.User, error) {
	fields := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		fields[k] = v
	}
	fields[fieldUpdatedAt] = r.now()
	ue, err := buildUpdateExpr(fields)
	if err != nil {
		return nil, err
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.usersTable),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(user_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update user: %w: %v", domain.ErrPersistence, err)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Attributes, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetName(ctx context.Context, userID, name string) (*domain.User, error) {
	return r.Update(ctx, userID, map[string]interface{}{fieldName: name})
}

func (r *UserRepo) SetPersonalization(ctx context.Context, userID string, p domain.Personalization) (*domain.User, error) {
	return r.Update(ctx, userID, map[string]interface{}{fieldPersonalization: p})
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, r.gsiQuery(index, attr, value))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w: %v", index, domain.ErrPersistence, err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) exists(ctx context.Context, index, attr, value string) (bool, error) {
	in := r.gsiQuery(index, attr, value)
	in.Select = types.SelectCount
	out, err := r.client.Query(ctx, in)
	if err != nil {
		return false, fmt.Errorf("query %s: %w: %v", index, domain.ErrPersistence, err)
	}
	return out.Count > 0, nil
}

func (r *UserRepo) gsiQuery(index, attr, value string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:                 aws.String(r.usersTable),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	}
}
