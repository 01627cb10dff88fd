package driven

import (
	"context"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

// DatasetStore persists datasets and their reads.
// Reads are immutable once ingested; datasets are referenced by
// training jobs, never duplicated.
type DatasetStore interface {
	// SaveDataset stores or updates dataset metadata.
	SaveDataset(ctx context.Context, dataset *domain.Dataset) error

	// GetDataset retrieves a dataset by ID.
	// Returns domain.ErrNotFound when the dataset does not exist.
	GetDataset(ctx context.Context, id string) (*domain.Dataset, error)

	// ListDatasets returns all datasets.
	ListDatasets(ctx context.Context) ([]domain.Dataset, error)

	// SaveReads appends reads to a dataset, preserving order.
	SaveReads(ctx context.Context, datasetID string, reads []domain.Read) error

	// GetReads returns a dataset's reads in ingestion order.
	GetReads(ctx context.Context, datasetID string) ([]domain.Read, error)
}

// JobStore persists training-job state transitions.
type JobStore interface {
	// Save stores or updates a training job.
	Save(ctx context.Context, job *domain.TrainingJob) error

	// Get retrieves a job by ID.
	// Returns domain.ErrNotFound when the job does not exist.
	Get(ctx context.Context, id string) (*domain.TrainingJob, error)

	// List returns all jobs, newest first.
	List(ctx context.Context) ([]domain.TrainingJob, error)
}

// BundleStore publishes and loads model bundles.
// A published bundle is read-only; publication is atomic so a
// partially-written bundle is never visible.
type BundleStore interface {
	// Publish writes a complete bundle and returns its content-derived
	// version tag. Publishing the same content twice yields the same
	// version and is not an error.
	Publish(ctx context.Context, bundle *domain.ModelBundle) (string, error)

	// Load reads a published bundle by version tag.
	// Returns domain.ErrNotFound when the version does not exist.
	Load(ctx context.Context, version string) (*domain.ModelBundle, error)

	// Latest returns the most recently published bundle.
	// Returns domain.ErrNoBundle when nothing has been published.
	Latest(ctx context.Context) (*domain.ModelBundle, error)

	// List returns all published version tags, newest first.
	List(ctx context.Context) ([]string, error)
}
