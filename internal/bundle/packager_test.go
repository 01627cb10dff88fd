package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

func sampleBundle(createdAt time.Time) *domain.ModelBundle {
	return &domain.ModelBundle{
		Preprocess:      domain.DefaultPreprocessConfig(),
		EmbedderVersion: "kmer-comp-v1-d256-c2048",
		Embed:           domain.DefaultEmbedParams(),
		Classifier: domain.ClassifierWeights{
			Classes:    []string{"tax-001", "tax-002"},
			Weights:    [][]float64{{0.5, -0.5}, {-0.5, 0.5}},
			Bias:       []float64{0.1, -0.1},
			FeatureDim: 2,
			Provenance: map[string]string{
				"tax-001": domain.ProvenanceGroundTruth,
				"tax-002": domain.ProvenanceCluster,
			},
		},
		Calibration: domain.Calibration{Temperature: 1.4, FittedOn: 40},
		Labels: domain.NewLabelMap([]domain.Taxon{
			{ID: "tax-001", Name: "Cyprinus carpio", Lineage: "Animalia; Chordata; Actinopterygii"},
			{ID: "tax-002", Name: "Salmo trutta"},
		}),
		Clusters: []domain.ClusterMetadata{
			{ID: 0, ExemplarReadID: "r7", Centroid: []float32{1, 0}, Size: 12, DominantLabel: "Cyprinus carpio"},
		},
		Eval: domain.EvaluationReport{
			Accuracy:     0.95,
			PerTaxon:     map[string]domain.TaxonMetrics{"tax-001": {Precision: 1, Recall: 0.9, F1: 0.947, Support: 10}},
			Silhouette:   0.8,
			HeldOutCount: 40,
		},
		CreatedAt: createdAt,
	}
}

func TestPublishAndLoadRoundTrip(t *testing.T) {
	store, err := NewModelPackager(t.TempDir())
	require.NoError(t, err)

	original := sampleBundle(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	version, err := store.Publish(context.Background(), original)
	require.NoError(t, err)
	require.NotEmpty(t, version)

	loaded, err := store.Load(context.Background(), version)
	require.NoError(t, err)

	assert.Equal(t, version, loaded.Version)
	assert.Equal(t, original.Preprocess, loaded.Preprocess)
	assert.Equal(t, original.EmbedderVersion, loaded.EmbedderVersion)
	assert.Equal(t, original.Embed, loaded.Embed)
	assert.Equal(t, original.Classifier, loaded.Classifier)
	assert.Equal(t, original.Calibration, loaded.Calibration)
	assert.Equal(t, original.Labels.Taxa(), loaded.Labels.Taxa())
	assert.Equal(t, original.Clusters, loaded.Clusters)
	assert.Equal(t, original.Eval.Accuracy, loaded.Eval.Accuracy)
	assert.Equal(t, original.CreatedAt, loaded.CreatedAt)
}

func TestPublishIsContentAddressed(t *testing.T) {
	store, err := NewModelPackager(t.TempDir())
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v1, err := store.Publish(context.Background(), sampleBundle(created))
	require.NoError(t, err)

	// Same content, different timestamp: same version, no duplicate.
	v2, err := store.Publish(context.Background(), sampleBundle(created.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	versions, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{v1}, versions)
}

func TestPublishDifferentContentDifferentVersion(t *testing.T) {
	store, err := NewModelPackager(t.TempDir())
	require.NoError(t, err)

	a := sampleBundle(time.Now().UTC())
	v1, err := store.Publish(context.Background(), a)
	require.NoError(t, err)

	b := sampleBundle(time.Now().UTC())
	b.Calibration.Temperature = 2.0
	v2, err := store.Publish(context.Background(), b)
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}

func TestLatestPicksNewest(t *testing.T) {
	store, err := NewModelPackager(t.TempDir())
	require.NoError(t, err)

	older := sampleBundle(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = store.Publish(context.Background(), older)
	require.NoError(t, err)

	newer := sampleBundle(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	newer.Calibration.Temperature = 2.0
	newerVersion, err := store.Publish(context.Background(), newer)
	require.NoError(t, err)

	latest, err := store.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, newerVersion, latest.Version)
}

func TestLatestEmptyStore(t *testing.T) {
	store, err := NewModelPackager(t.TempDir())
	require.NoError(t, err)

	_, err = store.Latest(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoBundle)
}

func TestLoadUnknownVersion(t *testing.T) {
	store, err := NewModelPackager(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "deadbeefdeadbeef")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadDetectsCorruption(t *testing.T) {
	root := t.TempDir()
	store, err := NewModelPackager(root)
	require.NoError(t, err)

	version, err := store.Publish(context.Background(), sampleBundle(time.Now().UTC()))
	require.NoError(t, err)

	tampered := filepath.Join(root, version, "classifier", "calibration.yaml")
	require.NoError(t, os.WriteFile(tampered, []byte("temperature: 0.01\n"), 0o644))

	_, err = store.Load(context.Background(), version)
	assert.ErrorIs(t, err, domain.ErrConfigMismatch)
}

func TestListSkipsForeignDirectories(t *testing.T) {
	root := t.TempDir()
	store, err := NewModelPackager(root)
	require.NoError(t, err)

	version, err := store.Publish(context.Background(), sampleBundle(time.Now().UTC()))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "scratch"), 0o755))

	versions, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{version}, versions)
}
