package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/forum-api/internal/domain"
)

// RefreshTokenRepo tracks issued refresh tokens by jti.
// Rows expire out via the table TTL once the token they block would have
// expired anyway.
type RefreshTokenRepo struct {
	client    api
	tableName string
}

func NewRefreshTokenRepo(client api, tableName string) *RefreshTokenRepo {
	return &RefreshTokenRepo{client: client, tableName: tableName}
}

func (r *RefreshTokenRepo) Put(ctx context.Context, rec *domain.RefreshTokenRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal refresh token record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *RefreshTokenRepo) GetByJTI(ctx context.Context, jti string) (*domain.RefreshTokenRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("jti", jti),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("refresh token not found: %w", domain.ErrNotFound)
	}
	var rec domain.RefreshTokenRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Revoke flips the record to revoked, conditionally on it not being revoked
// already. Exactly one of two concurrent rotations wins; the loser gets
// domain.ErrUnauthorized.
func (r *RefreshTokenRepo) Revoke(ctx context.Context, jti string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		"revoked":    true,
		"revoked_at": at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	ue.Names["#rev"] = "revoked"
	ue.Values[":false"] = &types.AttributeValueMemberBOOL{Value: false}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("jti", jti),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(jti) AND #rev = :false"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("refresh token already revoked: %w", domain.ErrUnauthorized)
	}
	return err
}

// RevokeAllForUser revokes every live refresh token of a user via the
// user_id GSI, following the pagination cursor until the index is drained.
// Used when a password reset must force re-login everywhere.
func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	var firstErr error
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("user_id-index"),
			KeyConditionExpression: aws.String("user_id = :uid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid": &types.AttributeValueMemberS{Value: userID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return err
		}
		for _, item := range out.Items {
			jtiAttr, ok := item["jti"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if err := r.Revoke(ctx, jtiAttr.Value, at); err != nil {
				// Already-revoked rows are fine; anything else is reported once.
				if errors.Is(err, domain.ErrUnauthorized) {
					continue
				}
				slog.Warn("failed to revoke refresh token during sweep", "jti", jtiAttr.Value, "user_id", userID, "err", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return firstErr
}
