// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package admission

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDynamo struct {
	mock.Mock
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func countAttrs(v string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{dynamoCountAttribute: &types.AttributeValueMemberN{Value: v}}
}

func TestDynamoIncrementIsConditional(t *testing.T) {
	api := &mockDynamo{}
	store := NewDynamoStore(api, "admission")

	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		limit := in.ExpressionAttributeValues[":limit"].(*types.AttributeValueMemberN)
		key := in.Key[dynamoKeyAttribute].(*types.AttributeValueMemberS)
		return aws.ToString(in.TableName) == "admission" &&
			key.Value == "global" &&
			aws.ToString(in.ConditionExpression) == "attribute_not_exists(#count) OR #count < :limit" &&
			limit.Value == "10"
	})).Return(&dynamodb.UpdateItemOutput{Attributes: countAttrs("3")}, nil).Once()

	n, err := store.IncrementIfBelow(context.Background(), "global", 10)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	api.AssertExpectations(t)
}

func TestDynamoConditionFailureIsContention(t *testing.T) {
	api := &mockDynamo{}
	store := NewDynamoStore(api, "admission")

	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")})

	_, err := store.IncrementIfBelow(context.Background(), "global", 10)
	assert.ErrorIs(t, err, ErrConditionFailed)

	_, err = store.DecrementIfPositive(context.Background(), "global")
	assert.ErrorIs(t, err, ErrConditionFailed)
}

func TestDynamoDecrementAndCurrent(t *testing.T) {
	api := &mockDynamo{}
	store := NewDynamoStore(api, "admission")

	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return aws.ToString(in.ConditionExpression) == "#count > :zero"
	})).Return(&dynamodb.UpdateItemOutput{Attributes: countAttrs("0")}, nil).Once()
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return aws.ToBool(in.ConsistentRead)
	})).Return(&dynamodb.GetItemOutput{}, nil).Once()

	n, err := store.DecrementIfPositive(context.Background(), "global")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Current(context.Background(), "global")
	require.NoError(t, err)
	assert.Zero(t, n, "missing counter reads as zero")
	api.AssertExpectations(t)
}

func TestDynamoOtherErrorsPassThrough(t *testing.T) {
	api := &mockDynamo{}
	store := NewDynamoStore(api, "admission")
	throttled := errors.New("ProvisionedThroughputExceededException")
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, throttled)

	_, err := store.IncrementIfBelow(context.Background(), "global", 10)
	require.ErrorIs(t, err, throttled)
	assert.NotErrorIs(t, err, ErrConditionFailed)
}
