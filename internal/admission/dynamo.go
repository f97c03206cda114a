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
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	dynamoKeyAttribute   = "partitionKey"
	dynamoCountAttribute = "currentCount"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore keeps the counter as one item in a DynamoDB table keyed by
// the string attribute "partitionKey".
type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (d *DynamoStore) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoKeyAttribute: &types.AttributeValueMemberS{Value: key},
	}
}

func (d *DynamoStore) IncrementIfBelow(ctx context.Context, key string, limit int) (int, error) {
	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.table),
		Key:                 d.key(key),
		UpdateExpression:    aws.String("ADD #count :one"),
		ConditionExpression: aws.String("attribute_not_exists(#count) OR #count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#count": dynamoCountAttribute,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":   &types.AttributeValueMemberN{Value: "1"},
			":limit": &types.AttributeValueMemberN{Value: strconv.Itoa(limit)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, classifyDynamoError(err)
	}
	return countFrom(out.Attributes)
}

func (d *DynamoStore) DecrementIfPositive(ctx context.Context, key string) (int, error) {
	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.table),
		Key:                 d.key(key),
		UpdateExpression:    aws.String("ADD #count :minusOne"),
		ConditionExpression: aws.String("#count > :zero"),
		ExpressionAttributeNames: map[string]string{
			"#count": dynamoCountAttribute,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":minusOne": &types.AttributeValueMemberN{Value: "-1"},
			":zero":     &types.AttributeValueMemberN{Value: "0"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, classifyDynamoError(err)
	}
	return countFrom(out.Attributes)
}

func (d *DynamoStore) Current(ctx context.Context, key string) (int, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("read admission counter: %w", err)
	}
	return countFrom(out.Item)
}

func classifyDynamoError(err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrConditionFailed
	}
	return fmt.Errorf("update admission counter: %w", err)
}

func countFrom(attrs map[string]types.AttributeValue) (int, error) {
	v, ok := attrs[dynamoCountAttribute]
	if !ok {
		return 0, nil
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %s is %T, not a number", dynamoCountAttribute, v)
	}
	count, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", dynamoCountAttribute, err)
	}
	return count, nil
}
