package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/dsas-mobility/fleet-migration/internal/models"
)

// MemoryStorage keeps everything in process. Used for dry runs and tests.
type MemoryStorage struct {
	mu       sync.RWMutex
	vehicles map[string]models.PersistedVehicle
	status   map[string]models.MigrationStatus
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		vehicles: make(map[string]models.PersistedVehicle),
		status:   make(map[string]models.MigrationStatus),
	}
}

func (m *MemoryStorage) UpsertVehicle(ctx context.Context, vehicle models.PersistedVehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[vehicle.SKU] = vehicle
	return nil
}

func (m *MemoryStorage) GetVehicles(ctx context.Context, limit int, offset int) ([]models.PersistedVehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.PersistedVehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SKU < all[j].SKU })
	return window(all, limit, offset), nil
}

func (m *MemoryStorage) GetVehicleBySKU(ctx context.Context, sku string) (*models.PersistedVehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[sku]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *MemoryStorage) DeleteAllVehicles(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.vehicles))
	m.vehicles = make(map[string]models.PersistedVehicle)
	return n, nil
}

func (m *MemoryStorage) UpdateMigrationStatus(ctx context.Context, status models.MigrationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[status.Stage] = status
	return nil
}

func (m *MemoryStorage) GetMigrationStatus(ctx context.Context, stage string) (*models.MigrationStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.status[stage]
	if !ok {
		return neverRun(stage), nil
	}
	return &s, nil
}

// Len reports how many vehicles are stored.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vehicles)
}

func (m *MemoryStorage) Close() error {
	return nil
}
