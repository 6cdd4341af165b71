package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	pkgconfig "github.com/cloud-wave-best-zizon/pharmacy-pos/pkg/config"
)

var ErrSaleAlreadyExists = errors.New("sale already recorded")

// DynamoDBAPI is the subset of the DynamoDB client the journal uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// SaleRepository is the sale journal. One item per transaction, keyed by sale_id.
type SaleRepository struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBClient(ctx context.Context, cfg *pkgconfig.Config) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.AWSRegion),
	}
	if cfg.LocalMode {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.LocalMode && cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}

func NewSaleRepository(client DynamoDBAPI, tableName string) *SaleRepository {
	return &SaleRepository{
		client:    client,
		tableName: tableName,
	}
}

// SaveSale writes the sale once. A second write for the same sale_id fails
// with ErrSaleAlreadyExists.
func (r *SaleRepository) SaveSale(ctx context.Context, sale *domain.Sale) error {
	av, err := attributevalue.MarshalMap(sale)
	if err != nil {
		return fmt.Errorf("failed to marshal sale: %w", err)
	}

	cond := expression.AttributeNotExists(expression.Name("sale_id"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrSaleAlreadyExists
		}
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

func (r *SaleRepository) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"sale_id": &types.AttributeValueMemberS{Value: saleID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if result.Item == nil {
		return nil, domain.ErrSaleNotFound
	}

	var sale domain.Sale
	if err := attributevalue.UnmarshalMap(result.Item, &sale); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sale: %w", err)
	}

	return &sale, nil
}
