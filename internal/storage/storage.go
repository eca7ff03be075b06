package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dsas-mobility/fleet-migration/internal/config"
	"github.com/dsas-mobility/fleet-migration/internal/models"
)

// ErrUnsupportedStorage is returned by NewStorage for an unknown sink type.
var ErrUnsupportedStorage = errors.New("unsupported storage type")

// Storage interface defines the contract for the vehicle sink. UpsertVehicle
// replaces any existing record with the same SKU.
type Storage interface {
	UpsertVehicle(ctx context.Context, vehicle models.PersistedVehicle) error
	GetVehicles(ctx context.Context, limit int, offset int) ([]models.PersistedVehicle, error)
	GetVehicleBySKU(ctx context.Context, sku string) (*models.PersistedVehicle, error)
	DeleteAllVehicles(ctx context.Context) (int64, error)
	UpdateMigrationStatus(ctx context.Context, status models.MigrationStatus) error
	GetMigrationStatus(ctx context.Context, stage string) (*models.MigrationStatus, error)
	Close() error
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "postgresql":
		return NewPostgreSQLStorage(ctx, cfg)
	case "mongodb":
		return NewMongoDBStorage(ctx, cfg)
	case "dynamodb":
		return NewDynamoDBStorage(cfg)
	case "firestore":
		return NewFirestoreStorage(ctx, cfg)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStorage, cfg.Type)
	}
}

// neverRun is reported for a stage that has no recorded status yet.
func neverRun(stage string) *models.MigrationStatus {
	return &models.MigrationStatus{Stage: stage, Status: "never_run"}
}
