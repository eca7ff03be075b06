package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/dsas-mobility/fleet-migration/internal/config"
	"github.com/dsas-mobility/fleet-migration/internal/models"
)

// vehicleColumns lists the table columns in the order of vehicleValues and
// scanVehicle. Non-nullable fields are read through COALESCE since rows
// edited by hand in the admin UI may carry NULLs.
var vehicleColumns = []struct {
	name     string
	fallback string
}{
	{"sku", "''"}, {"titolo", "''"}, {"marca", "''"}, {"modello", "''"}, {"versione", "''"},
	{"categoria", "''"}, {"slug", "''"}, {"immagine_url", "''"}, {"alimentazione", "''"}, {"cambio", "''"},
	{"canone_mensile", ""}, {"anticipo", ""}, {"durata_mesi", "48"}, {"km_annui", "10000"},
	{"noleggio_breve", "FALSE"}, {"prezzo_giornaliero", ""}, {"km_giornaliero", ""},
	{"prezzo_settimanale", ""}, {"km_settimanale", ""}, {"prezzo_mensile_breve", ""},
	{"km_mensile_breve", ""}, {"cauzione_richiesta", ""}, {"costo_per_km", ""},
	{"promo", "FALSE"}, {"tempo_consegna", "''"},
}

// PostgreSQLStorage implements Storage on a Postgres table with a unique
// sku column.
type PostgreSQLStorage struct {
	db          *sql.DB
	table       string
	statusTable string
}

// NewPostgreSQLStorage opens the database and ensures both tables exist
func NewPostgreSQLStorage(ctx context.Context, cfg config.StorageConfig) (*PostgreSQLStorage, error) {
	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &PostgreSQLStorage{
		db:          db,
		table:       pq.QuoteIdentifier(cfg.TableName),
		statusTable: pq.QuoteIdentifier(cfg.TableName + "_status"),
	}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return s, nil
}

func (p *PostgreSQLStorage) ensureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id                   BIGSERIAL PRIMARY KEY,
			sku                  TEXT NOT NULL UNIQUE,
			titolo               TEXT,
			marca                TEXT,
			modello              TEXT,
			versione             TEXT,
			categoria            TEXT,
			slug                 TEXT,
			immagine_url         TEXT,
			alimentazione        TEXT,
			cambio               TEXT,
			canone_mensile       NUMERIC,
			anticipo             NUMERIC,
			durata_mesi          INTEGER DEFAULT 48,
			km_annui             INTEGER DEFAULT 10000,
			noleggio_breve       BOOLEAN DEFAULT FALSE,
			prezzo_giornaliero   NUMERIC,
			km_giornaliero       INTEGER,
			prezzo_settimanale   NUMERIC,
			km_settimanale       INTEGER,
			prezzo_mensile_breve NUMERIC,
			km_mensile_breve     INTEGER,
			cauzione_richiesta   NUMERIC,
			costo_per_km         NUMERIC,
			promo                BOOLEAN DEFAULT FALSE,
			tempo_consegna       TEXT,
			created_at           TIMESTAMPTZ DEFAULT NOW(),
			updated_at           TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS %s (
			stage         TEXT PRIMARY KEY,
			run_id        TEXT NOT NULL,
			status        TEXT NOT NULL,
			started_at    TIMESTAMPTZ,
			finished_at   TIMESTAMPTZ,
			processed     INTEGER DEFAULT 0,
			succeeded     INTEGER DEFAULT 0,
			failed        INTEGER DEFAULT 0,
			relocated     INTEGER DEFAULT 0,
			error_message TEXT DEFAULT ''
		);
	`, p.table, p.statusTable))
	return err
}

// upsertQuery builds the INSERT ... ON CONFLICT (sku) statement.
func upsertQuery(table string) string {
	names := make([]string, len(vehicleColumns))
	params := make([]string, len(vehicleColumns))
	var updates []string
	for i, c := range vehicleColumns {
		names[i] = c.name
		params[i] = fmt.Sprintf("$%d", i+1)
		if c.name != "sku" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c.name, c.name))
		}
	}
	updates = append(updates, "updated_at = NOW()")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (sku) DO UPDATE SET %s",
		table, strings.Join(names, ", "), strings.Join(params, ", "), strings.Join(updates, ", "))
}

func selectColumns() string {
	cols := make([]string, len(vehicleColumns))
	for i, c := range vehicleColumns {
		if c.fallback != "" {
			cols[i] = fmt.Sprintf("COALESCE(%s, %s)", c.name, c.fallback)
		} else {
			cols[i] = c.name
		}
	}
	return strings.Join(cols, ", ")
}

func vehicleValues(v models.PersistedVehicle) []any {
	return []any{
		v.SKU, v.Title, v.Make, v.Model, v.Version,
		v.Category, v.Slug, v.ImageURL, v.FuelType, v.Transmission,
		v.MonthlyFee, v.DownPayment, v.DurationMonths, v.AnnualKm,
		v.ShortTermEnabled, v.DailyPrice, v.DailyKm,
		v.WeeklyPrice, v.WeeklyKm, v.MonthlyPrice,
		v.MonthlyKm, v.Deposit, v.CostPerKm,
		v.Promo, v.DeliveryTime,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (*models.PersistedVehicle, error) {
	var v models.PersistedVehicle
	err := row.Scan(
		&v.SKU, &v.Title, &v.Make, &v.Model, &v.Version,
		&v.Category, &v.Slug, &v.ImageURL, &v.FuelType, &v.Transmission,
		&v.MonthlyFee, &v.DownPayment, &v.DurationMonths, &v.AnnualKm,
		&v.ShortTermEnabled, &v.DailyPrice, &v.DailyKm,
		&v.WeeklyPrice, &v.WeeklyKm, &v.MonthlyPrice,
		&v.MonthlyKm, &v.Deposit, &v.CostPerKm,
		&v.Promo, &v.DeliveryTime,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// UpsertVehicle inserts the vehicle or replaces the row with the same SKU
func (p *PostgreSQLStorage) UpsertVehicle(ctx context.Context, vehicle models.PersistedVehicle) error {
	if _, err := p.db.ExecContext(ctx, upsertQuery(p.table), vehicleValues(vehicle)...); err != nil {
		return fmt.Errorf("failed to upsert vehicle %s: %w", vehicle.SKU, err)
	}
	return nil
}

// GetVehicles returns a page of vehicles ordered by SKU
func (p *PostgreSQLStorage) GetVehicles(ctx context.Context, limit int, offset int) ([]models.PersistedVehicle, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY sku LIMIT $1 OFFSET $2", selectColumns(), p.table)
	rows, err := p.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.PersistedVehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

// GetVehicleBySKU returns nil when no row has the SKU
func (p *PostgreSQLStorage) GetVehicleBySKU(ctx context.Context, sku string) (*models.PersistedVehicle, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE sku = $1", selectColumns(), p.table)
	v, err := scanVehicle(p.db.QueryRowContext(ctx, query, sku))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle %s: %w", sku, err)
	}
	return v, nil
}

// DeleteAllVehicles empties the table and reports how many rows went
func (p *PostgreSQLStorage) DeleteAllVehicles(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", p.table))
	if err != nil {
		return 0, fmt.Errorf("failed to delete vehicles: %w", err)
	}
	return res.RowsAffected()
}

// UpdateMigrationStatus records the status of a stage
func (p *PostgreSQLStorage) UpdateMigrationStatus(ctx context.Context, status models.MigrationStatus) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s
			(stage, run_id, status, started_at, finished_at, processed, succeeded, failed, relocated, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (stage) DO UPDATE SET
			run_id        = EXCLUDED.run_id,
			status        = EXCLUDED.status,
			started_at    = EXCLUDED.started_at,
			finished_at   = EXCLUDED.finished_at,
			processed     = EXCLUDED.processed,
			succeeded     = EXCLUDED.succeeded,
			failed        = EXCLUDED.failed,
			relocated     = EXCLUDED.relocated,
			error_message = EXCLUDED.error_message
	`, p.statusTable),
		status.Stage, status.RunID, status.Status, status.StartedAt, nullTime(status.FinishedAt),
		status.Processed, status.Succeeded, status.Failed, status.Relocated, status.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to update migration status: %w", err)
	}
	return nil
}

// GetMigrationStatus returns the last recorded status of a stage
func (p *PostgreSQLStorage) GetMigrationStatus(ctx context.Context, stage string) (*models.MigrationStatus, error) {
	var (
		s        models.MigrationStatus
		finished pq.NullTime
	)
	err := p.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT stage, run_id, status, started_at, finished_at,
		       processed, succeeded, failed, relocated, COALESCE(error_message, '')
		FROM %s WHERE stage = $1
	`, p.statusTable), stage).Scan(
		&s.Stage, &s.RunID, &s.Status, &s.StartedAt, &finished,
		&s.Processed, &s.Succeeded, &s.Failed, &s.Relocated, &s.ErrorMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return neverRun(stage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}
	if finished.Valid {
		s.FinishedAt = finished.Time
	}
	return &s, nil
}

// Close closes the connection pool
func (p *PostgreSQLStorage) Close() error {
	return p.db.Close()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
