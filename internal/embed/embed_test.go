package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/preprocess"
)

// tokenSeq canonicalizes a raw sequence with relaxed QC for test input.
func tokenSeq(t *testing.T, id, raw string) domain.TokenSequence {
	t.Helper()
	cfg := domain.DefaultPreprocessConfig()
	cfg.MinLength = 4
	cfg.MinGC = 0
	cfg.MaxGC = 1
	p, err := preprocess.New(cfg)
	require.NoError(t, err)
	seq, err := p.Canonicalize(domain.Read{ID: id, Sequence: raw})
	require.NoError(t, err)
	return seq
}

func TestEmbedBatch_Deterministic(t *testing.T) {
	e := New(domain.EmbedParams{})
	seq := tokenSeq(t, "r1", "ATGCGTACGTTAGCATGCGTACGTTAGCATGCGTACGTTAGC")

	first, err := e.EmbedBatch(context.Background(), []domain.TokenSequence{seq})
	require.NoError(t, err)
	second, err := e.EmbedBatch(context.Background(), []domain.TokenSequence{seq})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, e.Version(), first[0].EmbedderVersion)
	assert.Len(t, first[0].Values, e.Dimensions())
}

func TestEmbedBatch_UnitNorm(t *testing.T) {
	e := New(domain.EmbedParams{})
	seq := tokenSeq(t, "r1", "ATGCGTACGTTAGCATGCGTACGTTAGC")

	vectors, err := e.EmbedBatch(context.Background(), []domain.TokenSequence{seq})
	require.NoError(t, err)

	var sum float64
	for _, v := range vectors[0].Values {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestEmbedBatch_ContextCapDoesNotAffectShortSequences(t *testing.T) {
	capped := New(domain.EmbedParams{ContextLength: 64})
	uncapped := New(domain.EmbedParams{ContextLength: 2048})

	seq := tokenSeq(t, "r1", "ATGCGTACGTTAGCATGCGTACGTTAGC")
	require.Less(t, len(seq.Tokens), 64)

	a, err := capped.EmbedBatch(context.Background(), []domain.TokenSequence{seq})
	require.NoError(t, err)
	b, err := uncapped.EmbedBatch(context.Background(), []domain.TokenSequence{seq})
	require.NoError(t, err)

	assert.Equal(t, a[0].Values, b[0].Values)
}

func TestEmbedBatch_OversizedBatchRejected(t *testing.T) {
	e := New(domain.EmbedParams{MaxBatchSize: 2})

	batch := []domain.TokenSequence{
		tokenSeq(t, "a", "ATGCGTAC"),
		tokenSeq(t, "b", "ATGCGTAG"),
		tokenSeq(t, "c", "ATGCGTAT"),
	}

	_, err := e.EmbedBatch(context.Background(), batch)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrResourceExhausted)

	// A smaller retry succeeds.
	_, err = e.EmbedBatch(context.Background(), batch[:2])
	assert.NoError(t, err)
}

func TestVersion_DerivedFromParams(t *testing.T) {
	a := New(domain.EmbedParams{KmerDim: 256, ContextLength: 2048})
	b := New(domain.EmbedParams{KmerDim: 256, ContextLength: 2048})
	c := New(domain.EmbedParams{KmerDim: 128, ContextLength: 2048})

	assert.Equal(t, a.Version(), b.Version())
	assert.NotEqual(t, a.Version(), c.Version())
}

func TestComposition_GCSkew(t *testing.T) {
	out := make([]float32, compositionDims)
	composition("GGGC", out)

	// GC content 1.0, GC skew (3-1)/(3+1)=0.5, AT skew 0.
	assert.InDelta(t, 1.0, float64(out[20]), 1e-6)
	assert.InDelta(t, 0.5, float64(out[21]), 1e-6)
	assert.InDelta(t, 0.0, float64(out[22]), 1e-6)
	assert.False(t, math.IsNaN(float64(out[23])))
}
