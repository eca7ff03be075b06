package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/dsas-mobility/fleet-migration/internal/config"
	"github.com/dsas-mobility/fleet-migration/internal/models"
)

// DynamoDBStorage implements Storage interface using AWS DynamoDB. Vehicles
// are keyed by sku, so PutItem replaces on conflict.
type DynamoDBStorage struct {
	client      dynamodbiface.DynamoDBAPI
	tableName   string
	statusTable string
}

// NewDynamoDBStorage creates a new DynamoDB storage instance
func NewDynamoDBStorage(cfg config.StorageConfig) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	storage := &DynamoDBStorage{
		client:      dynamodb.New(sess),
		tableName:   cfg.TableName,
		statusTable: cfg.TableName + "_status",
	}

	if err := storage.ensureTable(storage.tableName, "sku"); err != nil {
		return nil, fmt.Errorf("failed to ensure table exists: %w", err)
	}
	if err := storage.ensureTable(storage.statusTable, "stage"); err != nil {
		return nil, fmt.Errorf("failed to ensure status table exists: %w", err)
	}

	return storage, nil
}

// ensureTable creates a table with a string hash key if it doesn't exist
func (d *DynamoDBStorage) ensureTable(name, hashKey string) error {
	_, err := d.client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	})
	if err == nil {
		return nil
	}

	_, err = d.client.CreateTable(&dynamodb.CreateTableInput{
		TableName: aws.String(name),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String(hashKey),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String(hashKey),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	return d.client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	})
}

// UpsertVehicle stores the vehicle, replacing any item with the same SKU
func (d *DynamoDBStorage) UpsertVehicle(ctx context.Context, vehicle models.PersistedVehicle) error {
	item, err := dynamodbattribute.MarshalMap(vehicle)
	if err != nil {
		return fmt.Errorf("failed to marshal vehicle %s: %w", vehicle.SKU, err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store vehicle %s: %w", vehicle.SKU, err)
	}
	return nil
}

// GetVehicles scans the table and returns a page ordered by SKU. The whole
// table is read, which is fine for a catalog of this size.
func (d *DynamoDBStorage) GetVehicles(ctx context.Context, limit int, offset int) ([]models.PersistedVehicle, error) {
	var (
		vehicles []models.PersistedVehicle
		pageErr  error
	)
	err := d.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(d.tableName),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		var batch []models.PersistedVehicle
		if pageErr = dynamodbattribute.UnmarshalListOfMaps(page.Items, &batch); pageErr != nil {
			return false
		}
		vehicles = append(vehicles, batch...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan vehicles: %w", err)
	}
	if pageErr != nil {
		return nil, fmt.Errorf("failed to unmarshal vehicles: %w", pageErr)
	}

	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].SKU < vehicles[j].SKU })
	return window(vehicles, limit, offset), nil
}

// GetVehicleBySKU retrieves a specific vehicle
func (d *DynamoDBStorage) GetVehicleBySKU(ctx context.Context, sku string) (*models.PersistedVehicle, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"sku": {S: aws.String(sku)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle %s: %w", sku, err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var vehicle models.PersistedVehicle
	if err := dynamodbattribute.UnmarshalMap(result.Item, &vehicle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vehicle: %w", err)
	}
	return &vehicle, nil
}

// DeleteAllVehicles deletes every item one key at a time
func (d *DynamoDBStorage) DeleteAllVehicles(ctx context.Context) (int64, error) {
	var keys []string
	err := d.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(d.tableName),
		ProjectionExpression: aws.String("sku"),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			if v, ok := item["sku"]; ok && v.S != nil {
				keys = append(keys, *v.S)
			}
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan vehicle keys: %w", err)
	}

	var deleted int64
	for _, sku := range keys {
		_, err := d.client.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(d.tableName),
			Key: map[string]*dynamodb.AttributeValue{
				"sku": {S: aws.String(sku)},
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete vehicle %s: %w", sku, err)
		}
		deleted++
	}
	return deleted, nil
}

// UpdateMigrationStatus updates the status item of a stage
func (d *DynamoDBStorage) UpdateMigrationStatus(ctx context.Context, status models.MigrationStatus) error {
	item, err := dynamodbattribute.MarshalMap(status)
	if err != nil {
		return fmt.Errorf("failed to marshal migration status: %w", err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.statusTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to update migration status: %w", err)
	}
	return nil
}

// GetMigrationStatus retrieves the status item of a stage
func (d *DynamoDBStorage) GetMigrationStatus(ctx context.Context, stage string) (*models.MigrationStatus, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.statusTable),
		Key: map[string]*dynamodb.AttributeValue{
			"stage": {S: aws.String(stage)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}

	if result.Item == nil {
		return neverRun(stage), nil
	}

	var status models.MigrationStatus
	if err := dynamodbattribute.UnmarshalMap(result.Item, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal migration status: %w", err)
	}
	return &status, nil
}

// Close closes the DynamoDB connection
func (d *DynamoDBStorage) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}

// window returns the [offset, offset+limit) slice of vehicles.
func window(vehicles []models.PersistedVehicle, limit, offset int) []models.PersistedVehicle {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(vehicles) {
		return []models.PersistedVehicle{}
	}
	end := offset + limit
	if end > len(vehicles) {
		end = len(vehicles)
	}
	return vehicles[offset:end]
}
