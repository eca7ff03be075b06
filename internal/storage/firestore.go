package storage

import (
	"context"
	"fmt"
	"net/url"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dsas-mobility/fleet-migration/internal/config"
	"github.com/dsas-mobility/fleet-migration/internal/models"
)

// FirestoreStorage implements Storage with one document per vehicle. The
// document ID is the path-escaped SKU, so Set replaces on conflict.
type FirestoreStorage struct {
	client     *firestore.Client
	collection string
	statusColl string
}

// NewFirestoreStorage creates a Firestore client for the configured project
func NewFirestoreStorage(ctx context.Context, cfg config.StorageConfig) (*FirestoreStorage, error) {
	client, err := firestore.NewClient(ctx, cfg.FirestoreProject)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &FirestoreStorage{
		client:     client,
		collection: cfg.TableName,
		statusColl: cfg.TableName + "_status",
	}, nil
}

func docID(sku string) string {
	return url.PathEscape(sku)
}

// UpsertVehicle overwrites the vehicle document
func (f *FirestoreStorage) UpsertVehicle(ctx context.Context, vehicle models.PersistedVehicle) error {
	_, err := f.client.Collection(f.collection).Doc(docID(vehicle.SKU)).Set(ctx, vehicle)
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle %s: %w", vehicle.SKU, err)
	}
	return nil
}

// GetVehicles returns a page of vehicles ordered by SKU
func (f *FirestoreStorage) GetVehicles(ctx context.Context, limit int, offset int) ([]models.PersistedVehicle, error) {
	iter := f.client.Collection(f.collection).
		OrderBy("sku", firestore.Asc).
		Offset(offset).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var vehicles []models.PersistedVehicle
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate vehicles: %w", err)
		}
		var v models.PersistedVehicle
		if err := doc.DataTo(&v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vehicle %s: %w", doc.Ref.ID, err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

// GetVehicleBySKU returns nil when the document does not exist
func (f *FirestoreStorage) GetVehicleBySKU(ctx context.Context, sku string) (*models.PersistedVehicle, error) {
	doc, err := f.client.Collection(f.collection).Doc(docID(sku)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vehicle %s: %w", sku, err)
	}

	var v models.PersistedVehicle
	if err := doc.DataTo(&v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vehicle: %w", err)
	}
	return &v, nil
}

// DeleteAllVehicles deletes every document in the collection
func (f *FirestoreStorage) DeleteAllVehicles(ctx context.Context) (int64, error) {
	iter := f.client.Collection(f.collection).Documents(ctx)
	defer iter.Stop()

	var deleted int64
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to iterate vehicles: %w", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return deleted, fmt.Errorf("failed to delete vehicle %s: %w", doc.Ref.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

// UpdateMigrationStatus overwrites the status document of a stage
func (f *FirestoreStorage) UpdateMigrationStatus(ctx context.Context, s models.MigrationStatus) error {
	if _, err := f.client.Collection(f.statusColl).Doc(s.Stage).Set(ctx, s); err != nil {
		return fmt.Errorf("failed to update migration status: %w", err)
	}
	return nil
}

// GetMigrationStatus returns the status document of a stage
func (f *FirestoreStorage) GetMigrationStatus(ctx context.Context, stage string) (*models.MigrationStatus, error) {
	doc, err := f.client.Collection(f.statusColl).Doc(stage).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return neverRun(stage), nil
		}
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}

	var s models.MigrationStatus
	if err := doc.DataTo(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal migration status: %w", err)
	}
	return &s, nil
}

// Close closes the Firestore client
func (f *FirestoreStorage) Close() error {
	return f.client.Close()
}
