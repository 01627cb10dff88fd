package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driven/bundlewatch"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driven/cache"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driven/config/file"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driving/api"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/services"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the classification and training server",
	Long: `Starts the HTTP server: classification against the latest published
bundle, training-job submission, and automatic hot swap when a new
bundle appears in the bundle directory.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, else :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	addr := serveAddr
	if addr == "" {
		addr = e.cfg.GetString(file.KeyListenAddr)
	}
	if addr == "" {
		addr = ":8080"
	}

	opts := inferenceOptions(e.cfg)
	maxEntries := e.cfg.GetInt(file.KeyCacheMaxEntries)
	if maxEntries <= 0 {
		maxEntries = cache.DefaultMaxEntries
	}
	opts.Cache = cache.NewMemory(maxEntries)
	inference := services.NewInferenceService(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if bundle, err := e.bundles.Latest(ctx); err == nil {
		if err := inference.LoadBundle(bundle); err != nil {
			logger.Warn("serve: latest bundle %s not loadable: %v", bundle.Version, err)
		}
	} else if !errors.Is(err, domain.ErrNoBundle) {
		return fmt.Errorf("failed to load latest bundle: %w", err)
	} else {
		logger.Info("serve: no bundle published yet, classification unavailable until training completes")
	}

	watcher, err := bundlewatch.New(e.bundleDir, func(version string) {
		bundle, err := e.bundles.Load(context.Background(), version)
		if err != nil {
			logger.Warn("serve: new bundle %s not loadable: %v", version, err)
			return
		}
		if err := inference.LoadBundle(bundle); err != nil {
			logger.Warn("serve: new bundle %s rejected: %v", version, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to watch bundle directory: %w", err)
	}
	go func() {
		if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("serve: bundle watcher stopped: %v", err)
		}
	}()

	workers := e.cfg.GetInt(file.KeyTrainingConcurrency)
	if workers <= 0 {
		workers = services.DefaultWorkers
	}
	pipeline := services.NewTrainingPipeline(e.store.DatasetStore(), e.bundles)
	coordinator := services.NewJobCoordinator(
		e.store.JobStore(), e.store.DatasetStore(), pipeline, workers, services.DefaultQueueDepth)
	coordinator.Start()
	defer coordinator.Stop()

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.Use(middleware.Recover())
	api.NewServer(inference, coordinator, e.bundles).Register(router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Start(addr)
	}()
	cmd.Printf("Listening on %s\n", addr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := router.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
