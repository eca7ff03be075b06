// Package convert turns the two legacy XML exports into the intermediate
// vehicle table.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"github.com/dsas-mobility/fleet-migration/internal/config"
	"github.com/dsas-mobility/fleet-migration/internal/export"
	"github.com/dsas-mobility/fleet-migration/internal/models"
	"github.com/dsas-mobility/fleet-migration/internal/table"
)

// StageName identifies this stage in the migration status store.
const StageName = "convert"

// StatusRecorder persists stage outcomes. storage.Storage satisfies it.
type StatusRecorder interface {
	UpdateMigrationStatus(ctx context.Context, status models.MigrationStatus) error
}

// Report summarizes one conversion
type Report struct {
	RunID          string
	Attachments    int
	Scanned        int
	Retained       int
	ImagesResolved int
	Columns        []string
}

// Service handles the XML to table conversion
type Service struct {
	config config.ConvertConfig
	status StatusRecorder
}

// NewService creates a converter. status may be nil.
func NewService(cfg config.ConvertConfig, status StatusRecorder) *Service {
	return &Service{config: cfg, status: status}
}

// Run reads both exports, builds the table and writes it to OutputFile.
// Either export being unreadable is fatal.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	started := time.Now().UTC()
	ctx = context.WithoutCancel(ctx)

	if err := s.run(report); err != nil {
		s.recordStatus(ctx, report, "failure", started, err.Error())
		return nil, err
	}
	s.recordStatus(ctx, report, "success", started, "")
	return report, nil
}

func (s *Service) run(report *Report) error {
	mediaDoc, err := readSource(s.config.MediaFile, s.config.SourceEncoding)
	if err != nil {
		return err
	}
	vehiclesDoc, err := readSource(s.config.VehiclesFile, s.config.SourceEncoding)
	if err != nil {
		return err
	}

	media, mediaStats := export.BuildMediaIndex(mediaDoc)
	report.Attachments = mediaStats.Attachments

	result := export.NormalizeVehicles(vehiclesDoc, media, export.Options{
		TargetPostType: s.config.TargetPostType,
		ThumbnailKey:   s.config.ThumbnailKey,
	})
	report.Scanned = result.Stats.Scanned
	report.Retained = result.Stats.Retained
	report.ImagesResolved = result.Stats.ImagesResolved

	report.Columns = table.ResolveColumns(result.Columns, s.config.PriorityColumns)
	content := table.Serialize(result.Records, report.Columns)
	if err := table.WriteFile(s.config.OutputFile, content); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.config.OutputFile, err)
	}

	slog.Info("conversion complete",
		"run_id", report.RunID,
		"output", s.config.OutputFile,
		"records", report.Retained,
		"columns", len(report.Columns))
	return nil
}

func (s *Service) recordStatus(ctx context.Context, r *Report, status string, started time.Time, errMsg string) {
	if s.status == nil {
		return
	}
	err := s.status.UpdateMigrationStatus(ctx, models.MigrationStatus{
		RunID:        r.RunID,
		Stage:        StageName,
		Status:       status,
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
		Processed:    r.Scanned,
		Succeeded:    r.Retained,
		ErrorMessage: errMsg,
	})
	if err != nil {
		slog.Warn("failed to record migration status", "stage", StageName, "error", err)
	}
}

// readSource loads an export and decodes it to UTF-8.
func readSource(path, encoding string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cm *charmap.Charmap
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return string(raw), nil
	case "windows-1252", "cp1252":
		cm = charmap.Windows1252
	case "iso-8859-1", "latin1":
		cm = charmap.ISO8859_1
	case "iso-8859-15", "latin9":
		cm = charmap.ISO8859_15
	default:
		return "", fmt.Errorf("unsupported source encoding %q", encoding)
	}

	decoded, err := cm.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s as %s: %w", path, encoding, err)
	}
	return string(decoded), nil
}
