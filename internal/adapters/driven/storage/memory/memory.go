// Package memory provides in-memory store implementations. They back
// unit tests and make the server usable without a database file; data
// does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driven"
)

// DatasetStore is an in-memory driven.DatasetStore.
type DatasetStore struct {
	mu       sync.RWMutex
	datasets map[string]domain.Dataset
	reads    map[string][]domain.Read
}

var _ driven.DatasetStore = (*DatasetStore)(nil)

// NewDatasetStore creates an empty dataset store.
func NewDatasetStore() *DatasetStore {
	return &DatasetStore{
		datasets: map[string]domain.Dataset{},
		reads:    map[string][]domain.Read{},
	}
}

func (s *DatasetStore) SaveDataset(_ context.Context, dataset *domain.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[dataset.ID] = *dataset
	return nil
}

func (s *DatasetStore) GetDataset(_ context.Context, id string) (*domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dataset, ok := s.datasets[id]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %s", domain.ErrNotFound, id)
	}
	return &dataset, nil
}

func (s *DatasetStore) ListDatasets(_ context.Context) ([]domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Dataset, 0, len(s.datasets))
	for _, dataset := range s.datasets {
		out = append(out, dataset)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *DatasetStore) SaveReads(_ context.Context, datasetID string, reads []domain.Read) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dataset, ok := s.datasets[datasetID]
	if !ok {
		return fmt.Errorf("%w: dataset %s", domain.ErrNotFound, datasetID)
	}
	s.reads[datasetID] = append(s.reads[datasetID], reads...)

	dataset.ReadCount = len(s.reads[datasetID])
	labelled := 0
	for _, r := range s.reads[datasetID] {
		if r.Label != "" {
			labelled++
		}
	}
	dataset.LabeledCount = labelled
	s.datasets[datasetID] = dataset
	return nil
}

func (s *DatasetStore) GetReads(_ context.Context, datasetID string) ([]domain.Read, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.datasets[datasetID]; !ok {
		return nil, fmt.Errorf("%w: dataset %s", domain.ErrNotFound, datasetID)
	}
	return append([]domain.Read(nil), s.reads[datasetID]...), nil
}

// JobStore is an in-memory driven.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.TrainingJob
}

var _ driven.JobStore = (*JobStore)(nil)

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: map[string]domain.TrainingJob{}}
}

func (s *JobStore) Save(_ context.Context, job *domain.TrainingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *JobStore) Get(_ context.Context, id string) (*domain.TrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	return &job, nil
}

func (s *JobStore) List(_ context.Context) ([]domain.TrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TrainingJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// BundleStore is an in-memory driven.BundleStore keyed by version.
// Versions are assigned by insertion order, not content, which is
// sufficient for tests.
type BundleStore struct {
	mu      sync.RWMutex
	bundles map[string]domain.ModelBundle
	order   []string
}

var _ driven.BundleStore = (*BundleStore)(nil)

// NewBundleStore creates an empty bundle store.
func NewBundleStore() *BundleStore {
	return &BundleStore{bundles: map[string]domain.ModelBundle{}}
}

func (s *BundleStore) Publish(_ context.Context, bundle *domain.ModelBundle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version := bundle.Version
	if version == "" {
		version = fmt.Sprintf("mem-%04d", len(s.order)+1)
	}
	stored := *bundle
	stored.Version = version
	if _, exists := s.bundles[version]; !exists {
		s.order = append(s.order, version)
	}
	s.bundles[version] = stored
	return version, nil
}

func (s *BundleStore) Load(_ context.Context, version string) (*domain.ModelBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bundle, ok := s.bundles[version]
	if !ok {
		return nil, fmt.Errorf("%w: bundle %s", domain.ErrNotFound, version)
	}
	return &bundle, nil
}

func (s *BundleStore) Latest(_ context.Context) (*domain.ModelBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil, fmt.Errorf("%w: no bundles published", domain.ErrNoBundle)
	}
	bundle := s.bundles[s.order[len(s.order)-1]]
	return &bundle, nil
}

func (s *BundleStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	for i := range s.order {
		out[i] = s.order[len(s.order)-1-i]
	}
	return out, nil
}
