package dynamo

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cropintel-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SortsFields(t *testing.T) {
	updates := map[string]interface{}{
		fieldUpdatedAt:    "2026-01-01T00:00:00Z",
		fieldName:         "Joe",
		fieldPasswordHash: "$2a$04$hash",
	}
	first, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	again, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", first.Expr)
	assert.Equal(t, map[string]string{
		"#f0": fieldName,
		"#f1": fieldPasswordHash,
		"#f2": fieldUpdatedAt,
	}, first.Names)
}

func TestBuildUpdateExpr_PersonalizationBecomesMap(t *testing.T) {
	p := domain.Personalization{Age: 31, Gender: "female", CropType: "maize", UpdatedAt: time.Unix(0, 0).UTC()}
	ue, err := buildUpdateExpr(map[string]interface{}{fieldPersonalization: p})
	require.NoError(t, err)

	m, ok := ue.Values[":v0"].(*types.AttributeValueMemberM)
	require.True(t, ok)
	crop, ok := m.Value["crop_type"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "maize", crop.Value)
	age, ok := m.Value["age"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "31", age.Value)
}

func TestBuildUpdateExpr_Empty(t *testing.T) {
	_, err := buildUpdateExpr(nil)
	assert.ErrorContains(t, err, "no fields to update")
}

func TestCompositeKey(t *testing.T) {
	key := compositeKey(fieldUserID, "u1", fieldSessionID, "s1")
	assert.Equal(t, &types.AttributeValueMemberS{Value: "u1"}, key[fieldUserID])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "s1"}, key[fieldSessionID])
}
