package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect training jobs",
	RunE:  runJobsList,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all training jobs, newest first",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show one job's state and failure reason",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Cancel a queued training job",
	Long: `Cancels a job that has not started running. Jobs running inside a
server process are cancelled through its HTTP API instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsCancel,
}

func init() {
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	jobs, err := e.store.JobStore().List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(jobs) == 0 {
		cmd.Println("No training jobs.")
		return nil
	}

	for i := range jobs {
		printJob(cmd, &jobs[i])
	}
	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	job, err := e.store.JobStore().Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	printJob(cmd, job)
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	store := e.store.JobStore()
	job, err := store.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if !job.State.CanTransition(domain.JobCancelled) {
		return fmt.Errorf("%w: job %s is %s", domain.ErrJobNotCancellable, job.ID, job.State)
	}
	if job.State == domain.JobRunning {
		return fmt.Errorf("job %s is running; cancel it through the server API", job.ID)
	}

	job.State = domain.JobCancelled
	job.FinishedAt = time.Now().UTC()
	if err := store.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	cmd.Printf("Job %s cancelled\n", job.ID)
	return nil
}

func printJob(cmd *cobra.Command, job *domain.TrainingJob) {
	cmd.Printf("%s  %s  dataset=%s", job.ID, job.State, job.DatasetID)
	switch {
	case job.State == domain.JobRunning && job.Stage != "":
		cmd.Printf("  stage=%s", job.Stage)
	case job.State == domain.JobSucceeded:
		cmd.Printf("  bundle=%s", job.BundleVersion)
	case job.State == domain.JobFailed:
		cmd.Printf("  error=%s: %s", job.ErrorKind, job.ErrorReason)
	}
	cmd.Println()
}
