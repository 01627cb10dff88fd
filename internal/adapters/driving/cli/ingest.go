package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

var (
	ingestName        string
	ingestDescription string
	ingestSource      string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [fasta-file]",
	Short: "Ingest a FASTA file as a new dataset",
	Long: `Reads a FASTA file and stores its reads as a new dataset.

Header fields are pipe-separated: >read_id|taxon|location|source.
The taxon field, when present, becomes the read's ground-truth label.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "dataset name (default: file name)")
	ingestCmd.Flags().StringVar(&ingestDescription, "description", "", "provenance notes")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "default source for reads without one")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	reads, err := parseFasta(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}
	for i := range reads {
		if reads[i].Sample.Source == "" {
			reads[i].Sample.Source = ingestSource
		}
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	name := ingestName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}

	ctx := context.Background()
	dataset := &domain.Dataset{
		ID:          uuid.New().String(),
		Name:        name,
		Description: ingestDescription,
		CreatedAt:   time.Now().UTC(),
	}
	store := e.store.DatasetStore()
	if err := store.SaveDataset(ctx, dataset); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	if err := store.SaveReads(ctx, dataset.ID, reads); err != nil {
		return fmt.Errorf("failed to save reads: %w", err)
	}

	labeled := 0
	for _, r := range reads {
		if r.Label != "" {
			labeled++
		}
	}

	cmd.Printf("Dataset %s created\n", dataset.ID)
	cmd.Printf("  Name:    %s\n", name)
	cmd.Printf("  Reads:   %d (%d labeled)\n", len(reads), labeled)
	return nil
}
