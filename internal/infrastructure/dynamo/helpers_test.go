package dynamo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SortedAndNumbered(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldUpdatedAt: "2024-01-01T00:00:00Z",
		fieldName:      "Alice",
		fieldRole:      "Staff",
	})
	require.NoError(t, err)

	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": fieldName, "#f1": fieldRole, "#f2": fieldUpdatedAt}, ue.Names)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Alice"}, ue.Values[":v0"])
}

func TestBuildUpdateExpr_MarshalsNumbers(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldQuantity: 3})
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "3"}, ue.Values[":v0"])
}

func TestBuildUpdateExpr_EmptyMap_ReturnsError(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.ErrorContains(t, err, "no fields to update")
}

func TestCancelledAt(t *testing.T) {
	err := fmt.Errorf("place order: %w", &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
			{},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	})
	idx, ok := cancelledAt(err)
	require.True(t, ok)
	assert.Equal(t, []int{1, 3}, idx)
	assert.True(t, contains(idx, 3))
	assert.False(t, contains(idx, 0))

	_, ok = cancelledAt(errors.New("throttled"))
	assert.False(t, ok)
}

func TestIsConditionFailed(t *testing.T) {
	assert.True(t, isConditionFailed(fmt.Errorf("put: %w", &types.ConditionalCheckFailedException{})))
	assert.False(t, isConditionFailed(errors.New("boom")))
}

func TestCursorRoundTrip(t *testing.T) {
	c := encodeCursor("01HZX3")
	got, err := decodeCursor(c)
	require.NoError(t, err)
	assert.Equal(t, "01HZX3", got)

	_, err = decodeCursor("%%%")
	assert.Error(t, err)
}
