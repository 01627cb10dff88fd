package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driven/config/file"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driven/reference"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driving"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/services"
)

var (
	classifyBundle  string
	classifyJSON    bool
	classifyTimeout time.Duration
)

var classifyCmd = &cobra.Command{
	Use:   "classify [fasta-file]",
	Short: "Classify reads against a trained bundle",
	Long: `Classifies every read in a FASTA file against a published model
bundle (the latest one unless --bundle names a version) and prints the
calibrated taxon assignments.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyBundle, "bundle", "", "bundle version (default: latest)")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "output results as JSON")
	classifyCmd.Flags().DurationVar(&classifyTimeout, "timeout", time.Minute, "overall deadline")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	reads, err := parseFasta(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(context.Background(), classifyTimeout)
	defer cancel()

	var bundle *domain.ModelBundle
	if classifyBundle != "" {
		bundle, err = e.bundles.Load(ctx, classifyBundle)
	} else {
		bundle, err = e.bundles.Latest(ctx)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNoBundle) {
			return errors.New("no bundle published yet; run `marlin train` first")
		}
		return fmt.Errorf("failed to load bundle: %w", err)
	}

	svc := services.NewInferenceService(inferenceOptions(e.cfg))
	if err := svc.LoadBundle(bundle); err != nil {
		return fmt.Errorf("failed to load bundle %s: %w", bundle.Version, err)
	}

	results, err := svc.Classify(ctx, reads)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	if classifyJSON {
		return outputResultsJSON(cmd, results)
	}
	return outputResultsTable(cmd, bundle.Version, results)
}

// inferenceOptions builds serving options from the config file. Shared
// by classify and serve so both paths behave identically.
func inferenceOptions(cfg *file.ConfigStore) services.InferenceOptions {
	opts := services.InferenceOptions{
		FallbackThreshold: cfg.GetFloat(file.KeyFallbackThreshold),
		RatePerSecond:     cfg.GetFloat(file.KeyRatePerSecond),
	}
	if ttl := cfg.GetInt(file.KeyCacheTTLSeconds); ttl > 0 {
		opts.CacheTTL = time.Duration(ttl) * time.Second
	}
	if endpoint := cfg.GetString(file.KeyFallbackEndpoint); endpoint != "" {
		opts.Fallback = reference.NewClient(endpoint)
	}
	return opts
}

func outputResultsJSON(cmd *cobra.Command, results []driving.ClassifyResult) error {
	type item struct {
		ReadID     string             `json:"read_id"`
		Prediction *domain.Prediction `json:"prediction,omitempty"`
		Error      string             `json:"error,omitempty"`
	}
	out := make([]item, len(results))
	for i, r := range results {
		out[i] = item{ReadID: r.ReadID, Prediction: r.Prediction}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputResultsTable(cmd *cobra.Command, version string, results []driving.ClassifyResult) error {
	cmd.Printf("Bundle %s\n", version)
	cmd.Println()
	for _, r := range results {
		if r.Err != nil {
			cmd.Printf("  %s: rejected (%s)\n", r.ReadID, r.Err)
			continue
		}
		top := r.Prediction.Top()
		marker := ""
		if r.Prediction.FallbackRouted {
			marker = " [fallback]"
		}
		cmd.Printf("  %s: %s (%.3f)%s\n", r.ReadID, top.TaxonName, top.Confidence, marker)
	}
	return nil
}
