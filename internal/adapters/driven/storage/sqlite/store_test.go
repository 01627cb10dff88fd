package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreMigratesIdempotently(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not re-run applied migrations.
	store, err = NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestDatasetRoundTrip(t *testing.T) {
	ctx := context.Background()
	datasets := newTestStore(t).DatasetStore()

	dataset := &domain.Dataset{
		ID:          "ds-1",
		Name:        "river survey",
		Description: "spring sampling run",
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, datasets.SaveDataset(ctx, dataset))

	got, err := datasets.GetDataset(ctx, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, "river survey", got.Name)
	assert.Equal(t, "spring sampling run", got.Description)
}

func TestDatasetNotFound(t *testing.T) {
	ctx := context.Background()
	datasets := newTestStore(t).DatasetStore()

	_, err := datasets.GetDataset(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveReadsPreservesOrderAndCounts(t *testing.T) {
	ctx := context.Background()
	datasets := newTestStore(t).DatasetStore()

	require.NoError(t, datasets.SaveDataset(ctx, &domain.Dataset{ID: "ds-1", Name: "n"}))

	first := []domain.Read{
		{ID: "r1", Sequence: "ACGT", Label: "Cyprinus carpio",
			Sample:  domain.SampleMetadata{Location: "site A", Source: "run-7"},
			Quality: domain.QualityStats{Length: 4, GCContent: 0.5}},
		{ID: "r2", Sequence: "TGCA"},
	}
	require.NoError(t, datasets.SaveReads(ctx, "ds-1", first))
	require.NoError(t, datasets.SaveReads(ctx, "ds-1", []domain.Read{{ID: "r3", Sequence: "GGCC"}}))

	reads, err := datasets.GetReads(ctx, "ds-1")
	require.NoError(t, err)
	require.Len(t, reads, 3)
	assert.Equal(t, "r1", reads[0].ID)
	assert.Equal(t, "r2", reads[1].ID)
	assert.Equal(t, "r3", reads[2].ID)
	assert.Equal(t, "site A", reads[0].Sample.Location)
	assert.Equal(t, 0.5, reads[0].Quality.GCContent)

	dataset, err := datasets.GetDataset(ctx, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, 3, dataset.ReadCount)
	assert.Equal(t, 1, dataset.LabeledCount)
}

func TestSaveReadsUnknownDataset(t *testing.T) {
	ctx := context.Background()
	datasets := newTestStore(t).DatasetStore()

	err := datasets.SaveReads(ctx, "missing", []domain.Read{{ID: "r1"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRoundTrip(t *testing.T) {
	ctx := context.Background()
	jobs := newTestStore(t).JobStore()

	job := &domain.TrainingJob{
		ID:        "job-1",
		DatasetID: "ds-1",
		Params:    domain.DefaultTrainingParams(),
		State:     domain.JobQueued,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, jobs.Save(ctx, job))

	got, err := jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, got.State)
	assert.Equal(t, domain.DefaultTrainingParams(), got.Params)
	assert.True(t, got.StartedAt.IsZero())
}

func TestJobUpdateTransitions(t *testing.T) {
	ctx := context.Background()
	jobs := newTestStore(t).JobStore()

	job := &domain.TrainingJob{
		ID: "job-1", DatasetID: "ds-1",
		Params: domain.DefaultTrainingParams(), State: domain.JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, jobs.Save(ctx, job))

	job.State = domain.JobRunning
	job.Stage = domain.StageEmbed
	job.StartedAt = time.Now().UTC()
	require.NoError(t, jobs.Save(ctx, job))

	job.State = domain.JobFailed
	job.Stage = ""
	job.ErrorKind = "insufficient_training_data"
	job.ErrorReason = "class tax-002 has 2 examples, need at least 10"
	job.FinishedAt = time.Now().UTC()
	require.NoError(t, jobs.Save(ctx, job))

	got, err := jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, got.State)
	assert.Equal(t, "insufficient_training_data", got.ErrorKind)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestJobListNewestFirst(t *testing.T) {
	ctx := context.Background()
	jobs := newTestStore(t).JobStore()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, jobs.Save(ctx, &domain.TrainingJob{
		ID: "old", DatasetID: "ds", Params: domain.DefaultTrainingParams(),
		State: domain.JobSucceeded, CreatedAt: base,
	}))
	require.NoError(t, jobs.Save(ctx, &domain.TrainingJob{
		ID: "new", DatasetID: "ds", Params: domain.DefaultTrainingParams(),
		State: domain.JobQueued, CreatedAt: base.Add(time.Hour),
	}))

	list, err := jobs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
}
