// Package cli wires the cobra command tree. Commands talk to the core
// services directly; only `serve` exposes them over HTTP.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driven/config/file"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driven/storage/sqlite"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/bundle"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
)

var version = "dev"

var (
	verbose   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "marlin",
	Short: "Environmental DNA species classification",
	Long: `M.A.R.L.IN trains and serves species classifiers for environmental
DNA reads: quality control, k-mer embedding, density clustering,
calibrated classification and content-addressed model bundles.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.marlin)")
}

// Execute runs the root command. v overrides the build version when set.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}

// env bundles the adapters shared by every command that touches state.
type env struct {
	cfg       *file.ConfigStore
	store     *sqlite.Store
	bundles   *bundle.ModelPackager
	bundleDir string
}

func openEnv() (*env, error) {
	cfg, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := sqlite.NewStore(cfg.GetString(file.KeyDataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	bundleDir := cfg.GetString(file.KeyBundleDir)
	if bundleDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		bundleDir = filepath.Join(home, ".marlin", "bundles")
	}
	bundles, err := bundle.NewModelPackager(bundleDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open bundle store: %w", err)
	}

	return &env{cfg: cfg, store: store, bundles: bundles, bundleDir: bundleDir}, nil
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
}
