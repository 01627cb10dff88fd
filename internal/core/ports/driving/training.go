package driving

import (
	"context"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

// TrainingService is the training trigger interface consumed by
// external job-orchestration callers.
type TrainingService interface {
	// Submit enqueues a training job for a dataset and returns its
	// job identifier.
	Submit(ctx context.Context, datasetID string, params domain.TrainingParams) (string, error)

	// Status reports a job's current state, including the structured
	// failure reason on FAILED jobs.
	Status(ctx context.Context, jobID string) (*domain.TrainingJob, error)

	// List returns all known jobs, newest first.
	List(ctx context.Context) ([]domain.TrainingJob, error)

	// Cancel requests cancellation of a queued or running job.
	// Cancellation takes effect between pipeline stages; a job that has
	// begun packaging either completes or rolls back fully, so no
	// partially-written bundle is ever marked SUCCEEDED.
	Cancel(ctx context.Context, jobID string) error
}
