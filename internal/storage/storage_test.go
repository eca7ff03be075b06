package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dsas-mobility/fleet-migration/internal/config"
	"github.com/dsas-mobility/fleet-migration/internal/models"
)

func fee(v float64) *float64 { return &v }

func TestNewStorage_Unsupported(t *testing.T) {
	_, err := NewStorage(context.Background(), config.StorageConfig{Type: "sqlite"})
	assert.ErrorIs(t, err, ErrUnsupportedStorage)
}

func TestNewStorage_Memory(t *testing.T) {
	store, err := NewStorage(context.Background(), config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, store)
}

func TestMemoryStorage_UpsertReplacesBySKU(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	require.NoError(t, store.UpsertVehicle(ctx, models.PersistedVehicle{SKU: "A", Title: "old", MonthlyFee: fee(100)}))
	require.NoError(t, store.UpsertVehicle(ctx, models.PersistedVehicle{SKU: "B", Title: "other"}))
	require.NoError(t, store.UpsertVehicle(ctx, models.PersistedVehicle{SKU: "A", Title: "new", MonthlyFee: fee(120)}))

	assert.Equal(t, 2, store.Len())
	got, err := store.GetVehicleBySKU(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, 120.0, *got.MonthlyFee)

	missing, err := store.GetVehicleBySKU(ctx, "Z")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStorage_GetVehiclesPaging(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	for _, sku := range []string{"C", "A", "D", "B"} {
		require.NoError(t, store.UpsertVehicle(ctx, models.PersistedVehicle{SKU: sku}))
	}

	page, err := store.GetVehicles(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "B", page[0].SKU)
	assert.Equal(t, "C", page[1].SKU)

	empty, err := store.GetVehicles(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStorage_GetVehiclesBadWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	for _, sku := range []string{"A", "B"} {
		require.NoError(t, store.UpsertVehicle(ctx, models.PersistedVehicle{SKU: sku}))
	}

	page, err := store.GetVehicles(ctx, -1, 0)
	require.NoError(t, err)
	assert.Empty(t, page)

	page, err = store.GetVehicles(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page)

	page, err = store.GetVehicles(ctx, 1, -3)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "A", page[0].SKU)
}

func TestMemoryStorage_DeleteAllAndStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	require.NoError(t, store.UpsertVehicle(ctx, models.PersistedVehicle{SKU: "A"}))
	require.NoError(t, store.UpsertVehicle(ctx, models.PersistedVehicle{SKU: "B"}))

	n, err := store.DeleteAllVehicles(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, store.Len())

	status, err := store.GetMigrationStatus(ctx, "upload")
	require.NoError(t, err)
	assert.Equal(t, "never_run", status.Status)

	require.NoError(t, store.UpdateMigrationStatus(ctx, models.MigrationStatus{Stage: "upload", Status: "success", Succeeded: 3}))
	status, err = store.GetMigrationStatus(ctx, "upload")
	require.NoError(t, err)
	assert.Equal(t, "success", status.Status)
	assert.Equal(t, 3, status.Succeeded)
}

func TestUpsertQuery(t *testing.T) {
	q := upsertQuery(`"veicoli"`)

	assert.True(t, strings.HasPrefix(q, `INSERT INTO "veicoli" (sku, titolo, marca,`))
	assert.Contains(t, q, "ON CONFLICT (sku) DO UPDATE SET titolo = EXCLUDED.titolo")
	assert.NotContains(t, q, "sku = EXCLUDED.sku")
	assert.Contains(t, q, "updated_at = NOW()")
	assert.Contains(t, q, "$25)")
	assert.Len(t, vehicleValues(models.PersistedVehicle{}), len(vehicleColumns))
}

func TestSelectColumns(t *testing.T) {
	cols := selectColumns()
	assert.Contains(t, cols, "COALESCE(durata_mesi, 48)")
	assert.Contains(t, cols, "COALESCE(sku, '')")
	assert.Contains(t, cols, ", canone_mensile,")
}

// mockDynamo stubs the subset of the DynamoDB API the storage uses
type mockDynamo struct {
	dynamodbiface.DynamoDBAPI
	mock.Mock
}

func (m *mockDynamo) PutItemWithContext(ctx aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func (m *mockDynamo) GetItemWithContext(ctx aws.Context, in *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func TestDynamoDBStorage_UpsertVehicle(t *testing.T) {
	client := new(mockDynamo)
	store := &DynamoDBStorage{client: client, tableName: "veicoli", statusTable: "veicoli_status"}

	client.On("PutItemWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return *in.TableName == "veicoli" &&
			*in.Item["sku"].S == "YAR-01" &&
			*in.Item["canone_mensile"].N == "299.5"
	})).Return(nil)

	err := store.UpsertVehicle(context.Background(), models.PersistedVehicle{SKU: "YAR-01", MonthlyFee: fee(299.5)})
	assert.NoError(t, err)
	client.AssertExpectations(t)
}

func TestDynamoDBStorage_UpsertVehicle_Error(t *testing.T) {
	client := new(mockDynamo)
	store := &DynamoDBStorage{client: client, tableName: "veicoli"}
	client.On("PutItemWithContext", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	err := store.UpsertVehicle(context.Background(), models.PersistedVehicle{SKU: "X"})
	assert.ErrorContains(t, err, "failed to store vehicle X")
}

func TestDynamoDBStorage_GetVehicleBySKU(t *testing.T) {
	client := new(mockDynamo)
	store := &DynamoDBStorage{client: client, tableName: "veicoli", statusTable: "veicoli_status"}

	item, err := dynamodbattribute.MarshalMap(models.PersistedVehicle{SKU: "A", Title: "Audi A1", DurationMonths: 48})
	require.NoError(t, err)

	client.On("GetItemWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return *in.Key["sku"].S == "A"
	})).Return(&dynamodb.GetItemOutput{Item: item}, nil)
	client.On("GetItemWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return *in.Key["sku"].S == "missing"
	})).Return(&dynamodb.GetItemOutput{}, nil)

	got, err := store.GetVehicleBySKU(context.Background(), "A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Audi A1", got.Title)
	assert.Equal(t, 48, got.DurationMonths)
	assert.Nil(t, got.MonthlyFee)

	none, err := store.GetVehicleBySKU(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDynamoDBStorage_GetMigrationStatus_NeverRun(t *testing.T) {
	client := new(mockDynamo)
	store := &DynamoDBStorage{client: client, tableName: "veicoli", statusTable: "veicoli_status"}
	client.On("GetItemWithContext", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	status, err := store.GetMigrationStatus(context.Background(), "convert")
	require.NoError(t, err)
	assert.Equal(t, "never_run", status.Status)
	assert.Equal(t, "convert", status.Stage)
}
