package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/forum-api/internal/domain"
	"github.com/forum-api/internal/pkg/clock"
)

// UserRepo provides typed DynamoDB operations for the users table.
// Status/hash mutations go through UpdateVersioned so concurrent writers are
// serialized per row: the write carries the version the caller read and fails
// with domain.ErrConflict when another writer got there first.
type UserRepo struct {
	client    api
	tableName string
	clk       clock.Clock
}

func NewUserRepo(client api, tableName string, clk clock.Clock) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, clk: clk}
}

// Put creates the user row together with two claim items, one per unique
// attribute, in a single transaction. The claims share the table under
// reserved key prefixes and make concurrent registrations with the same
// email or username collide inside DynamoDB instead of relying on the
// read-before-write check in the service layer.
func (r *UserRepo) Put(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
			r.uniqueClaim("email#"+u.Email, u.UserID),
			r.uniqueClaim("username#"+u.Username, u.UserID),
		},
	})
	if _, failed := canceledOnCondition(err); failed {
		return fmt.Errorf("user already exists: %w", domain.ErrConflict)
	}
	return err
}

// uniqueClaim builds the conditional put for a uniqueness marker. Markers
// carry only the key and the owning user id; they never appear on the GSIs.
func (r *UserRepo) uniqueClaim(key, ownerID string) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"user_id":  &types.AttributeValueMemberS{Value: key},
			"owner_id": &types.AttributeValueMemberS{Value: ownerID},
		},
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	}}
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
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

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.queryGSI(ctx, "username-index", "username", username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryGSI(ctx, "email-index", "email", email)
}

// UpdateVersioned applies updates only if the row's version still equals
// expectedVersion, and bumps the version in the same write. A concurrent
// writer that committed first makes this call fail with domain.ErrConflict.
func (r *UserRepo) UpdateVersioned(ctx context.Context, userID string, expectedVersion int64, updates map[string]interface{}) error {
	ue, err := versionedUpdate(updates, expectedVersion, r.clk.Now())
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#ver = :ev"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user %s modified concurrently: %w", userID, domain.ErrConflict)
	}
	return err
}

// UpdateLastLogin records a successful login. The timestamp is advisory, so
// no version check: losing a race here just keeps the slightly older stamp.
func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		"last_login_at": at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
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

// isConditionFailed reports whether err is a DynamoDB conditional-write
// rejection.
func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
