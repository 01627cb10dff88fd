package preprocess

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

// testConfig returns a config with a 50bp minimum, matching the
// development defaults.
func testConfig() domain.PreprocessConfig {
	return domain.DefaultPreprocessConfig()
}

// validSequence is 60bp with balanced GC content.
const validSequence = "ATGCGTACGTTAGCATGCGTACGTTAGCATGCGTACGTTAGCATGCGTACGTTAGCATGC"

func TestNew_RejectsBadKmerSize(t *testing.T) {
	cfg := testConfig()
	cfg.K = 0
	_, err := New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigMismatch)

	cfg.K = 16
	_, err = New(cfg)
	assert.ErrorIs(t, err, domain.ErrConfigMismatch)
}

func TestCanonicalize_Idempotent(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	read := domain.Read{ID: "r1", Sequence: "  " + strings.ToLower(validSequence) + "\n"}

	first, err := p.Canonicalize(read)
	require.NoError(t, err)
	second, err := p.Canonicalize(read)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, validSequence, first.Canonical)
	assert.Equal(t, len(validSequence)-6+1, len(first.Tokens))
}

func TestCanonicalize_KSizeChangesTokenCount(t *testing.T) {
	read := domain.Read{ID: "r1", Sequence: validSequence}

	cfg4 := testConfig()
	cfg4.K = 4
	p4, err := New(cfg4)
	require.NoError(t, err)

	cfg6 := testConfig()
	cfg6.K = 6
	p6, err := New(cfg6)
	require.NoError(t, err)

	seq4, err := p4.Canonicalize(read)
	require.NoError(t, err)
	seq6, err := p6.Canonicalize(read)
	require.NoError(t, err)

	assert.Equal(t, len(validSequence)-4+1, len(seq4.Tokens))
	assert.Equal(t, len(validSequence)-6+1, len(seq6.Tokens))
	assert.NotEqual(t, seq4.Tokens[0], seq6.Tokens[0])
}

func TestCanonicalize_ShortReadRejected(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	// 10bp against a 50bp minimum.
	_, err = p.Canonicalize(domain.Read{ID: "short", Sequence: "ATGCATGCAT"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidSequence)
	assert.Contains(t, err.Error(), "below minimum")
}

func TestCanonicalize_TooAmbiguousRejected(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	// 10% N content against a 5% threshold.
	dirty := validSequence[:54] + "NNNNNN"
	_, err = p.Canonicalize(domain.Read{ID: "dirty", Sequence: dirty})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidSequence)
}

func TestCanonicalize_GCBounds(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	// All-A sequence has 0% GC, below the 10% floor.
	_, err = p.Canonicalize(domain.Read{ID: "at", Sequence: strings.Repeat("A", 60)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidSequence)
}

func TestTokenize_RollingEncoding(t *testing.T) {
	// ACGT with k=2: AC=0b0001=1, CG=0b0110=6, GT=0b1011=11.
	tokens := tokenize("ACGT", 2)
	assert.Equal(t, []uint32{1, 6, 11}, tokens)
}

func TestClean_StripsAmbiguousAndWhitespace(t *testing.T) {
	canonical, frac := Clean("acg tNR\nACGT")
	assert.Equal(t, "ACGTACGT", canonical)
	assert.InDelta(t, 2.0/10.0, frac, 1e-9)
}

func TestQuality_ComputesStats(t *testing.T) {
	q := Quality("GGCC")
	assert.Equal(t, 4, q.Length)
	assert.InDelta(t, 1.0, q.GCContent, 1e-9)
	assert.InDelta(t, 0.0, q.AmbiguousFrac, 1e-9)
}

func TestCanonicalizeBatch_SkipsInvalidItems(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	reads := []domain.Read{
		{ID: "good", Sequence: validSequence},
		{ID: "short", Sequence: "ATGC"},
		{ID: "good2", Sequence: validSequence[1:] + "A"},
	}

	kept, rejected := p.CanonicalizeBatch(reads)
	assert.Len(t, kept, 2)
	require.Len(t, rejected, 1)
	assert.Equal(t, "short", rejected[0].ReadID)
	assert.True(t, errors.Is(rejected[0].Err, domain.ErrInvalidSequence))
}

func TestCanonicalizeBatch_ExactDedup(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	reads := []domain.Read{
		{ID: "a", Sequence: validSequence},
		{ID: "b", Sequence: strings.ToLower(validSequence)},
	}

	kept, rejected := p.CanonicalizeBatch(reads)
	assert.Len(t, kept, 1)
	assert.Empty(t, rejected)
	assert.Equal(t, "a", kept[0].ReadID)
}

func TestCanonicalizeBatch_NearDuplicateCollapseIsOptional(t *testing.T) {
	// One substitution apart.
	variant := "T" + validSequence[1:]

	reads := []domain.Read{
		{ID: "a", Sequence: validSequence},
		{ID: "b", Sequence: variant},
	}

	// Default: near-duplicates are kept as distinct samples.
	p, err := New(testConfig())
	require.NoError(t, err)
	kept, _ := p.CanonicalizeBatch(reads)
	assert.Len(t, kept, 2)

	// Opt-in collapse drops the variant.
	cfg := testConfig()
	cfg.CollapseNearDuplicates = true
	cfg.MaxEditDistance = 2
	p, err = New(cfg)
	require.NoError(t, err)
	kept, _ = p.CanonicalizeBatch(reads)
	assert.Len(t, kept, 1)
}

func TestWithinEditDistance(t *testing.T) {
	assert.True(t, withinEditDistance("ACGT", "ACGT", 0))
	assert.True(t, withinEditDistance("ACGT", "ACGA", 1))
	assert.False(t, withinEditDistance("ACGT", "TGCA", 1))
	assert.False(t, withinEditDistance("ACGT", "ACGTACGT", 2))
}
