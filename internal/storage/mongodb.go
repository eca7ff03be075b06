package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dsas-mobility/fleet-migration/internal/config"
	"github.com/dsas-mobility/fleet-migration/internal/models"
)

// MongoDBStorage implements Storage using a MongoDB collection with a unique
// index on sku
type MongoDBStorage struct {
	client   *mongo.Client
	vehicles *mongo.Collection
	status   *mongo.Collection
}

// NewMongoDBStorage connects and ensures the sku index exists
func NewMongoDBStorage(ctx context.Context, cfg config.StorageConfig) (*MongoDBStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	m := &MongoDBStorage{
		client:   client,
		vehicles: db.Collection(cfg.TableName),
		status:   db.Collection(cfg.TableName + "_status"),
	}

	_, err = m.vehicles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sku", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create sku index: %w", err)
	}

	return m, nil
}

// UpsertVehicle replaces the document with the same SKU, inserting if absent
func (m *MongoDBStorage) UpsertVehicle(ctx context.Context, vehicle models.PersistedVehicle) error {
	_, err := m.vehicles.ReplaceOne(ctx,
		bson.M{"sku": vehicle.SKU},
		vehicle,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle %s: %w", vehicle.SKU, err)
	}
	return nil
}

// GetVehicles returns a page of vehicles ordered by SKU
func (m *MongoDBStorage) GetVehicles(ctx context.Context, limit int, offset int) ([]models.PersistedVehicle, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sku", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := m.vehicles.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicles: %w", err)
	}

	var vehicles []models.PersistedVehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("failed to decode vehicles: %w", err)
	}
	return vehicles, nil
}

// GetVehicleBySKU returns nil when no document has the SKU
func (m *MongoDBStorage) GetVehicleBySKU(ctx context.Context, sku string) (*models.PersistedVehicle, error) {
	var vehicle models.PersistedVehicle
	err := m.vehicles.FindOne(ctx, bson.M{"sku": sku}).Decode(&vehicle)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle %s: %w", sku, err)
	}
	return &vehicle, nil
}

// DeleteAllVehicles removes every vehicle document
func (m *MongoDBStorage) DeleteAllVehicles(ctx context.Context) (int64, error) {
	res, err := m.vehicles.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete vehicles: %w", err)
	}
	return res.DeletedCount, nil
}

// UpdateMigrationStatus records the status of a stage
func (m *MongoDBStorage) UpdateMigrationStatus(ctx context.Context, status models.MigrationStatus) error {
	_, err := m.status.ReplaceOne(ctx,
		bson.M{"stage": status.Stage},
		status,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to update migration status: %w", err)
	}
	return nil
}

// GetMigrationStatus returns the last recorded status of a stage
func (m *MongoDBStorage) GetMigrationStatus(ctx context.Context, stage string) (*models.MigrationStatus, error) {
	var status models.MigrationStatus
	err := m.status.FindOne(ctx, bson.M{"stage": stage}).Decode(&status)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return neverRun(stage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}
	return &status, nil
}

// Close disconnects the client
func (m *MongoDBStorage) Close() error {
	return m.client.Disconnect(context.Background())
}
