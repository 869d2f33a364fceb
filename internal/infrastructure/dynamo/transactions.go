package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/forum-api/internal/domain"
	"github.com/forum-api/internal/pkg/clock"
)

// TxRepo spans the users and verification-codes tables for writes that must
// commit together. The confirm flows consume a code and apply the resulting
// user mutation in one transaction: if either side loses its race, the whole
// write is rolled back and the code stays available for a retry.
type TxRepo struct {
	client             api
	usersTable         string
	verificationsTable string
	clk                clock.Clock
}

func NewTxRepo(client api, usersTable, verificationsTable string, clk clock.Clock) *TxRepo {
	return &TxRepo{
		client:             client,
		usersTable:         usersTable,
		verificationsTable: verificationsTable,
		clk:                clk,
	}
}

// ConsumeCodeAndUpdateUser deletes the verification code identified by
// (userID, purpose) — but only while it still carries digest — and applies a
// versioned update to the user row, atomically. A replaced or already
// consumed code surfaces as domain.ErrNotFound; a concurrent user write as
// domain.ErrConflict. In both cases nothing is written.
func (r *TxRepo) ConsumeCodeAndUpdateUser(ctx context.Context, userID, purpose, digest string, expectedVersion int64, updates map[string]interface{}) error {
	ue, err := versionedUpdate(updates, expectedVersion, r.clk.Now())
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:           aws.String(r.verificationsTable),
				Key:                 compositeKey("user_id", userID, "purpose", purpose),
				ConditionExpression: aws.String("code_digest = :d"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":d": &types.AttributeValueMemberS{Value: digest},
				},
			}},
			{Update: &types.Update{
				TableName:                 aws.String(r.usersTable),
				Key:                       strKey("user_id", userID),
				UpdateExpression:          aws.String(ue.Expr),
				ConditionExpression:       aws.String("#ver = :ev"),
				ExpressionAttributeNames:  ue.Names,
				ExpressionAttributeValues: ue.Values,
			}},
		},
	})
	if idx, failed := canceledOnCondition(err); failed {
		if idx == 0 {
			return fmt.Errorf("code already consumed or replaced: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("user %s modified concurrently: %w", userID, domain.ErrConflict)
	}
	return err
}

// canceledOnCondition reports whether err is a transaction cancellation
// caused by a conditional check, and if so which item failed first.
func canceledOnCondition(err error) (int, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return 0, false
	}
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return i, true
		}
	}
	return 0, false
}
