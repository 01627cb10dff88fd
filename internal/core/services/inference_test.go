package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driven/cache"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driven/storage/memory"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

// trainBundle runs the full pipeline on the synthetic dataset and
// returns the published bundle.
func trainBundle(t *testing.T) *domain.ModelBundle {
	t.Helper()
	datasets := memory.NewDatasetStore()
	bundles := memory.NewBundleStore()
	datasetID := seedDataset(t, datasets, 16)

	pipeline := NewTrainingPipeline(datasets, bundles)
	job := &domain.TrainingJob{ID: "job-1", DatasetID: datasetID, Params: testParams()}
	version, err := pipeline.Run(context.Background(), job, nil)
	require.NoError(t, err)

	bundle, err := bundles.Load(context.Background(), version)
	require.NoError(t, err)
	return bundle
}

type stubFallback struct {
	assignment *domain.Assignment
	err        error
	calls      int
}

func (s *stubFallback) Lookup(_ context.Context, _ string) (*domain.Assignment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.assignment, nil
}

func TestClassifyWithoutBundle(t *testing.T) {
	svc := NewInferenceService(InferenceOptions{})
	_, err := svc.Classify(context.Background(), []domain.Read{{ID: "r1", Sequence: baseCarp}})
	assert.ErrorIs(t, err, domain.ErrNoBundle)
	assert.Empty(t, svc.BundleVersion())
}

func TestClassifyPredictsTrainedSpecies(t *testing.T) {
	bundle := trainBundle(t)
	svc := NewInferenceService(InferenceOptions{})
	require.NoError(t, svc.LoadBundle(bundle))
	assert.Equal(t, bundle.Version, svc.BundleVersion())

	reads := []domain.Read{
		{ID: "carp", Sequence: mutate(baseCarp, 30)},
		{ID: "trout", Sequence: mutate(baseTrout, 30)},
	}
	results, err := svc.Classify(context.Background(), reads)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		require.NoError(t, r.Err)
		require.NotNil(t, r.Prediction)
		assert.Equal(t, bundle.Version, r.Prediction.BundleVersion)
		assert.False(t, r.Prediction.CacheHit)
	}
	assert.Equal(t, "Cyprinus carpio", results[0].Prediction.Top().TaxonName)
	assert.Equal(t, "Salmo trutta", results[1].Prediction.Top().TaxonName)
}

func TestClassifyIsolatesInvalidReads(t *testing.T) {
	bundle := trainBundle(t)
	svc := NewInferenceService(InferenceOptions{})
	require.NoError(t, svc.LoadBundle(bundle))

	reads := []domain.Read{
		{ID: "bad", Sequence: "ACGT"}, // below the bundle's minimum length
		{ID: "good", Sequence: mutate(baseCarp, 12)},
	}
	results, err := svc.Classify(context.Background(), reads)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.ErrorIs(t, results[0].Err, domain.ErrInvalidSequence)
	assert.Nil(t, results[0].Prediction)
	require.NoError(t, results[1].Err)
	assert.NotNil(t, results[1].Prediction)
}

func TestClassifyCacheHitMatchesFreshResult(t *testing.T) {
	bundle := trainBundle(t)
	svc := NewInferenceService(InferenceOptions{Cache: cache.NewMemory(64)})
	require.NoError(t, svc.LoadBundle(bundle))

	read := domain.Read{ID: "carp", Sequence: mutate(baseCarp, 7)}

	first, err := svc.Classify(context.Background(), []domain.Read{read})
	require.NoError(t, err)
	require.NoError(t, first[0].Err)
	assert.False(t, first[0].Prediction.CacheHit)

	second, err := svc.Classify(context.Background(), []domain.Read{read})
	require.NoError(t, err)
	require.NoError(t, second[0].Err)
	assert.True(t, second[0].Prediction.CacheHit)

	// Identical content apart from the cache-hit marker.
	assert.Equal(t, first[0].Prediction.Assignments, second[0].Prediction.Assignments)
	assert.Equal(t, first[0].Prediction.BundleVersion, second[0].Prediction.BundleVersion)
}

func TestClassifyRoutesLowConfidenceToFallback(t *testing.T) {
	bundle := trainBundle(t)
	fallback := &stubFallback{assignment: &domain.Assignment{
		TaxonID: "ref-7", TaxonName: "Rutilus rutilus", Confidence: 0.93,
	}}
	// Threshold above any achievable confidence: every read routes.
	svc := NewInferenceService(InferenceOptions{Fallback: fallback, FallbackThreshold: 1.01})
	require.NoError(t, svc.LoadBundle(bundle))

	results, err := svc.Classify(context.Background(),
		[]domain.Read{{ID: "carp", Sequence: mutate(baseCarp, 9)}})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	p := results[0].Prediction
	assert.True(t, p.FallbackRouted)
	assert.Equal(t, "ref-7", p.Top().TaxonID)
	// The local model's assignments remain for comparison.
	assert.Greater(t, len(p.Assignments), 1)
	assert.Equal(t, 1, fallback.calls)
}

func TestClassifyKeepsLocalResultWhenFallbackFails(t *testing.T) {
	bundle := trainBundle(t)
	fallback := &stubFallback{err: errors.New("reference db offline")}
	svc := NewInferenceService(InferenceOptions{Fallback: fallback, FallbackThreshold: 1.01})
	require.NoError(t, svc.LoadBundle(bundle))

	results, err := svc.Classify(context.Background(),
		[]domain.Read{{ID: "carp", Sequence: mutate(baseCarp, 9)}})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	p := results[0].Prediction
	assert.False(t, p.FallbackRouted)
	assert.Equal(t, "Cyprinus carpio", p.Top().TaxonName)
}

func TestClassifySkipsFallbackAboveThreshold(t *testing.T) {
	bundle := trainBundle(t)
	fallback := &stubFallback{assignment: &domain.Assignment{TaxonID: "ref-7"}}
	svc := NewInferenceService(InferenceOptions{Fallback: fallback, FallbackThreshold: 0.0001})
	require.NoError(t, svc.LoadBundle(bundle))

	results, err := svc.Classify(context.Background(),
		[]domain.Read{{ID: "carp", Sequence: mutate(baseCarp, 9)}})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	assert.False(t, results[0].Prediction.FallbackRouted)
	assert.Zero(t, fallback.calls)
}

func TestClassifyTimesOutRemainingReads(t *testing.T) {
	bundle := trainBundle(t)
	svc := NewInferenceService(InferenceOptions{})
	require.NoError(t, svc.LoadBundle(bundle))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	reads := make([]domain.Read, 3)
	for i := range reads {
		reads[i] = domain.Read{ID: fmt.Sprintf("r%d", i), Sequence: mutate(baseCarp, i)}
	}
	results, err := svc.Classify(ctx, reads)
	if err != nil {
		// The rate limiter may reject the expired context up front.
		assert.Error(t, err)
		return
	}
	require.Len(t, results, 3)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, domain.ErrTimeout)
	}
}

func TestLoadBundleRejectsVersionMismatch(t *testing.T) {
	bundle := trainBundle(t)
	bundle.EmbedderVersion = "kmer-comp-v0-d16-c16"

	svc := NewInferenceService(InferenceOptions{})
	err := svc.LoadBundle(bundle)
	assert.ErrorIs(t, err, domain.ErrEmbedderVersionMismatch)
}

func TestBundleSwapInvalidatesCacheKey(t *testing.T) {
	a := cacheKey("ACGT", "version-a")
	b := cacheKey("ACGT", "version-b")
	assert.NotEqual(t, a, b)
}
