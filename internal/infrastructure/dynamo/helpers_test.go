package dynamo

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"username": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": "username"}, ue.Names)
	_, ok := ue.Values[":v0"]
	assert.True(t, ok)
}

func TestBuildUpdateExpr_MultipleFields_Deterministic(t *testing.T) {
	updates := map[string]interface{}{
		"status":   "ACTIVE",
		"email":    "a@b.com",
		"username": "alice",
	}
	// Call twice to verify determinism.
	ue1, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	ue2, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, ue1.Expr, ue2.Expr)

	// Keys must be sorted: email < status < username
	assert.Equal(t, "email", ue1.Names["#f0"])
	assert.Equal(t, "status", ue1.Names["#f1"])
	assert.Equal(t, "username", ue1.Names["#f2"])
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue1.Expr)
}

func TestBuildUpdateExpr_ValuesMarshalledCorrectly(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"revoked": true})
	require.NoError(t, err)
	av, ok := ue.Values[":v0"]
	require.True(t, ok)
	boolVal, isBool := av.(*types.AttributeValueMemberBOOL)
	require.True(t, isBool)
	assert.True(t, boolVal.Value)
}

func TestBuildUpdateExpr_EmptyMap_ReturnsError(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.ErrorContains(t, err, "no fields to update")
}

func TestVersionedUpdate_StampsVersionAndTimestamp(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ue, err := versionedUpdate(map[string]interface{}{"status": "ACTIVE"}, 3, now)
	require.NoError(t, err)

	// Sorted: status < updated_at < version.
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue.Expr)
	assert.Equal(t, "updated_at", ue.Names["#f1"])
	assert.Equal(t, "version", ue.Names["#f2"])

	ts, ok := ue.Values[":v1"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "2024-06-01T12:00:00Z", ts.Value)

	next, ok := ue.Values[":v2"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "4", next.Value)

	cond, ok := ue.Values[":ev"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "3", cond.Value)
	assert.Equal(t, "version", ue.Names["#ver"])
}

func TestVersionedUpdate_DoesNotMutateCallerMap(t *testing.T) {
	updates := map[string]interface{}{"status": "ACTIVE"}
	_, err := versionedUpdate(updates, 1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"status": "ACTIVE"}, updates)
}
