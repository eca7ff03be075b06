// Package upload loads the intermediate table into the destination store,
// relocating legacy images along the way.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dsas-mobility/fleet-migration/internal/config"
	"github.com/dsas-mobility/fleet-migration/internal/models"
	"github.com/dsas-mobility/fleet-migration/internal/storage"
	"github.com/dsas-mobility/fleet-migration/internal/table"
)

// StageName identifies this stage in the migration status store.
const StageName = "upload"

// Relocator copies an image to the CDN and returns its new URL.
type Relocator interface {
	Relocate(ctx context.Context, sourceURL, name string) (string, error)
}

// Report summarizes one upload run
type Report struct {
	RunID     string
	Processed int
	Succeeded int
	Failed    int
	Relocated int
}

// Service handles loading vehicles into the destination store
type Service struct {
	config    config.UploadConfig
	storage   storage.Storage
	relocator Relocator
	validate  *validator.Validate
}

// NewService creates a new upload service. relocator may be nil, in which
// case image URLs are stored as they are.
func NewService(cfg config.UploadConfig, store storage.Storage, relocator Relocator) *Service {
	return &Service{
		config:    cfg,
		storage:   store,
		relocator: relocator,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Run reads the intermediate file and upserts every row. Per-record failures
// are counted and logged; only an unreadable input file aborts the run.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	started := time.Now().UTC()
	log := slog.With("run_id", report.RunID, "stage", StageName)
	// status writes must land even after the run is cancelled
	statusCtx := context.WithoutCancel(ctx)

	s.recordStatus(statusCtx, report, "running", started, time.Time{}, "")

	header, rows, err := table.ReadFile(s.config.InputFile)
	if err != nil {
		s.recordStatus(statusCtx, report, "failure", started, time.Now().UTC(), err.Error())
		return nil, fmt.Errorf("failed to read %s: %w", s.config.InputFile, err)
	}
	log.Info("loaded vehicles", "file", s.config.InputFile, "rows", len(rows), "columns", len(header), "dry_run", s.config.DryRun)

	var prefetched []string
	if s.config.RelocateWorkers > 1 && s.relocating() {
		prefetched = s.prefetchImages(ctx, rows)
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			s.recordStatus(statusCtx, report, "failure", started, time.Now().UTC(), err.Error())
			return report, err
		}

		report.Processed++
		recLog := log.With("title", row[models.FieldTitle], "sku", row[colSKU])

		imageURL := row[models.FieldImageURL]
		if prefetched != nil {
			imageURL = prefetched[i]
		} else if s.needsRelocation(imageURL) {
			imageURL = s.relocate(ctx, row, imageURL)
		}
		if imageURL != row[models.FieldImageURL] {
			report.Relocated++
		}

		vehicle := MapVehicle(row, imageURL)
		if err := s.validate.StructCtx(ctx, vehicle); err != nil {
			recLog.Error("invalid vehicle", "error", err)
			report.Failed++
			continue
		}

		if s.config.DryRun {
			recLog.Debug("dry run, not saved")
			report.Succeeded++
			continue
		}

		if err := s.storage.UpsertVehicle(ctx, vehicle); err != nil {
			recLog.Error("failed to save vehicle", "error", err)
			report.Failed++
			continue
		}
		recLog.Debug("saved vehicle")
		report.Succeeded++
	}

	s.recordStatus(statusCtx, report, "success", started, time.Now().UTC(), "")
	log.Info("migration complete",
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"relocated", report.Relocated)
	return report, nil
}

func (s *Service) relocating() bool {
	return s.relocator != nil && s.config.RelocateImages && !s.config.DryRun
}

func (s *Service) needsRelocation(imageURL string) bool {
	return s.relocating() && imageURL != "" && strings.Contains(imageURL, s.config.LegacyHost)
}

// relocate returns the new URL, or the original one when relocation fails.
func (s *Service) relocate(ctx context.Context, row models.VehicleRecord, imageURL string) string {
	name := RelocationName(row)
	newURL, err := s.relocator.Relocate(ctx, imageURL, name)
	if err != nil {
		slog.Warn("image relocation failed, keeping original url", "url", imageURL, "name", name, "error", err)
		return imageURL
	}
	slog.Debug("image relocated", "url", imageURL, "public_url", newURL)
	return newURL
}

// prefetchImages relocates all images with at most RelocateWorkers requests
// in flight. The result is indexed like rows.
func (s *Service) prefetchImages(ctx context.Context, rows []models.VehicleRecord) []string {
	urls := make([]string, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.RelocateWorkers)

	for i, row := range rows {
		urls[i] = row[models.FieldImageURL]
		if !s.needsRelocation(urls[i]) {
			continue
		}
		g.Go(func() error {
			urls[i] = s.relocate(gctx, row, urls[i])
			return nil
		})
	}
	_ = g.Wait()
	return urls
}

func (s *Service) recordStatus(ctx context.Context, r *Report, status string, started, finished time.Time, errMsg string) {
	if s.config.DryRun {
		return
	}
	err := s.storage.UpdateMigrationStatus(ctx, models.MigrationStatus{
		RunID:        r.RunID,
		Stage:        StageName,
		Status:       status,
		StartedAt:    started,
		FinishedAt:   finished,
		Processed:    r.Processed,
		Succeeded:    r.Succeeded,
		Failed:       r.Failed,
		Relocated:    r.Relocated,
		ErrorMessage: errMsg,
	})
	if err != nil {
		slog.Warn("failed to record migration status", "stage", StageName, "error", err)
	}
}
