package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/services"
)

var (
	trainEpochs      int
	trainMinExamples int
	trainHoldout     float64
	trainKmer        int
	trainCollapse    bool
	trainSeed        int64
)

var trainCmd = &cobra.Command{
	Use:   "train [dataset-id]",
	Short: "Train a classifier on a dataset",
	Long: `Runs the full training pipeline on an ingested dataset: quality
control, embedding, clustering, classifier fitting, calibration,
evaluation and bundle packaging. Blocks until the job finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func init() {
	defaults := domain.DefaultTrainParams()
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", defaults.Epochs, "gradient-descent epochs")
	trainCmd.Flags().IntVar(&trainMinExamples, "min-examples", defaults.MinExamplesPerClass, "minimum examples per class")
	trainCmd.Flags().Float64Var(&trainHoldout, "holdout", defaults.HoldoutFrac, "held-out fraction for calibration and evaluation")
	trainCmd.Flags().IntVar(&trainKmer, "kmer", domain.DefaultPreprocessConfig().K, "k-mer size")
	trainCmd.Flags().BoolVar(&trainCollapse, "collapse-duplicates", false, "collapse near-duplicate reads")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", defaults.Seed, "random seed")
	rootCmd.AddCommand(trainCmd)
}

func trainParams() domain.TrainingParams {
	params := domain.DefaultTrainingParams()
	params.Train.Epochs = trainEpochs
	params.Train.MinExamplesPerClass = trainMinExamples
	params.Train.HoldoutFrac = trainHoldout
	params.Train.Seed = trainSeed
	params.Preprocess.K = trainKmer
	params.Preprocess.CollapseNearDuplicates = trainCollapse
	params.Cluster.Seed = trainSeed
	return params
}

func runTrain(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	pipeline := services.NewTrainingPipeline(e.store.DatasetStore(), e.bundles)
	coordinator := services.NewJobCoordinator(
		e.store.JobStore(), e.store.DatasetStore(), pipeline, 1, 1)
	coordinator.Start()
	defer coordinator.Stop()

	ctx := context.Background()
	jobID, err := coordinator.Submit(ctx, args[0], trainParams())
	if err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}
	cmd.Printf("Job %s submitted\n", jobID)

	lastStage := ""
	for {
		job, err := coordinator.Status(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to poll job: %w", err)
		}
		if job.Stage != "" && job.Stage != lastStage {
			cmd.Printf("  %s...\n", job.Stage)
			lastStage = job.Stage
		}
		if job.State.Terminal() {
			return reportJob(cmd, job)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func reportJob(cmd *cobra.Command, job *domain.TrainingJob) error {
	switch job.State {
	case domain.JobSucceeded:
		cmd.Printf("Job %s succeeded\n", job.ID)
		cmd.Printf("  Bundle: %s\n", job.BundleVersion)
		return nil
	case domain.JobCancelled:
		return fmt.Errorf("job %s was cancelled", job.ID)
	default:
		return fmt.Errorf("job %s failed (%s): %s", job.ID, job.ErrorKind, job.ErrorReason)
	}
}
