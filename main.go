package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dsas-mobility/fleet-migration/internal/cdn"
	"github.com/dsas-mobility/fleet-migration/internal/config"
	"github.com/dsas-mobility/fleet-migration/internal/convert"
	"github.com/dsas-mobility/fleet-migration/internal/models"
	"github.com/dsas-mobility/fleet-migration/internal/server"
	"github.com/dsas-mobility/fleet-migration/internal/storage"
	"github.com/dsas-mobility/fleet-migration/internal/upload"
)

const usage = `usage: fleet-migration <command> [flags]

commands:
  convert   XML exports -> intermediate table
  upload    intermediate table -> destination store
  reset     delete every stored vehicle
  inspect   print a sample of stored vehicles
  serve     read-only HTTP API over the destination store`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "convert":
		err = runConvert(ctx, cfg, args)
	case "upload":
		err = runUpload(ctx, cfg, args)
	case "reset":
		err = runReset(ctx, cfg, args)
	case "inspect":
		err = runInspect(ctx, cfg, args)
	case "serve":
		err = runServe(ctx, cfg)
	default:
		fmt.Fprintln(os.Stderr, usage)
		stop()
		os.Exit(2)
	}
	stop()

	if err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func runConvert(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	fs.StringVar(&cfg.Convert.VehiclesFile, "vehicles", cfg.Convert.VehiclesFile, "vehicle export (XML)")
	fs.StringVar(&cfg.Convert.MediaFile, "media", cfg.Convert.MediaFile, "media export (XML)")
	fs.StringVar(&cfg.Convert.OutputFile, "out", cfg.Convert.OutputFile, "intermediate table to write")
	fs.Parse(args)

	// status tracking is best effort here; conversion needs no sink
	var recorder convert.StatusRecorder
	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		slog.Warn("storage unavailable, conversion status will not be recorded", "error", err)
	} else {
		defer store.Close()
		recorder = store
	}

	_, err = convert.NewService(cfg.Convert, recorder).Run(ctx)
	return err
}

func runUpload(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	fs.StringVar(&cfg.Upload.InputFile, "in", cfg.Upload.InputFile, "intermediate table to read")
	fs.BoolVar(&cfg.Upload.DryRun, "dry-run", cfg.Upload.DryRun, "parse, map and validate without writing")
	fs.Parse(args)

	var store storage.Storage = storage.NewMemoryStorage()
	if !cfg.Upload.DryRun {
		var err error
		if store, err = openStorage(ctx, cfg.Storage); err != nil {
			return err
		}
	}
	defer store.Close()

	relocator, closeRelocator, err := newRelocator(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRelocator()

	report, err := upload.NewService(cfg.Upload, store, relocator).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Success: %d\nFailed: %d\nRelocated: %d\n", report.Succeeded, report.Failed, report.Relocated)
	return nil
}

// newRelocator returns nil when relocation is disabled or pointless.
func newRelocator(ctx context.Context, cfg *config.Config) (upload.Relocator, func(), error) {
	noop := func() {}
	if !cfg.Upload.RelocateImages || cfg.Upload.DryRun {
		return nil, noop, nil
	}
	if err := cfg.CDN.Validate(); err != nil {
		return nil, noop, err
	}

	var cache cdn.Cache
	closeCache := noop
	if cfg.Cache.RedisURL != "" {
		rc, err := cdn.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.KeyPrefix)
		if err != nil {
			slog.Warn("relocation cache disabled", "error", err)
		} else {
			cache = rc
			closeCache = func() { rc.Close() }
		}
	}

	relocator, err := cdn.NewS3Relocator(cfg.CDN, cache)
	if err != nil {
		closeCache()
		return nil, noop, err
	}
	return relocator, closeCache, nil
}

func runReset(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	yes := fs.Bool("yes", false, "confirm deletion of every stored vehicle")
	fs.Parse(args)

	if !*yes {
		return errors.New("refusing to delete all vehicles without -yes")
	}

	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	started := time.Now().UTC()
	slog.Warn("deleting all vehicles", "table", cfg.Storage.TableName)
	deleted, err := store.DeleteAllVehicles(ctx)

	status := models.MigrationStatus{
		RunID:      uuid.NewString(),
		Stage:      "reset",
		Status:     "success",
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Processed:  int(deleted),
		Succeeded:  int(deleted),
	}
	if err != nil {
		status.Status = "failure"
		status.ErrorMessage = err.Error()
	}
	if serr := store.UpdateMigrationStatus(ctx, status); serr != nil {
		slog.Warn("failed to record migration status", "stage", "reset", "error", serr)
	}
	if err != nil {
		return fmt.Errorf("failed to delete vehicles: %w", err)
	}

	slog.Info("table is clean", "deleted", deleted)
	return nil
}

func runInspect(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	limit := fs.Int("limit", 10, "number of vehicles to print")
	fs.Parse(args)

	if *limit < 1 {
		return fmt.Errorf("invalid -limit %d: must be at least 1", *limit)
	}

	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	vehicles, err := store.GetVehicles(ctx, *limit, 0)
	if err != nil {
		return fmt.Errorf("failed to list vehicles: %w", err)
	}

	fmt.Println("--- DATA START ---")
	for _, v := range vehicles {
		fmt.Printf("SKU: %q | Title: %q | Cambio: %q | Alimentazione: %q\n", v.SKU, v.Title, v.Transmission, v.FuelType)
	}
	fmt.Println("--- DATA END ---")
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	httpServer := server.NewServer(cfg.Server, store)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, gracefully shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}
