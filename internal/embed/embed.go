// Package embed maps token sequences to fixed-length vectors using a
// deterministic k-mer/compositional encoder.
//
// The feature vector concatenates a hashed k-mer frequency histogram
// with a compositional block (mono- and di-nucleotide frequencies, GC
// content, GC skew, AT skew, normalized length) and is L2-normalized.
// Identical inputs always yield identical vectors: there is no
// sampling, dropout or other source of nondeterminism.
package embed

import (
	"context"
	"fmt"
	"math"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driven"
)

// compositionDims is the size of the compositional feature block:
// 4 mono-nucleotide + 16 di-nucleotide frequencies, GC content,
// GC skew, AT skew and normalized length.
const compositionDims = 24

// lengthScale normalizes the sequence-length feature; reads at or
// beyond this length saturate at 1.
const lengthScale = 2000

// knuthMultiplier spreads token IDs across histogram bins.
const knuthMultiplier = 2654435761

// Embedder is the versioned in-process encoder.
type Embedder struct {
	params  domain.EmbedParams
	version string
}

// Ensure Embedder implements the driven port.
var _ driven.Embedder = (*Embedder)(nil)

// New creates an embedder. Zero-valued parameters are filled from the
// defaults. The version tag is derived from the parameters, so two
// embedders with identical parameters are interchangeable and a
// parameter change is visible as a version change.
func New(params domain.EmbedParams) *Embedder {
	def := domain.DefaultEmbedParams()
	if params.KmerDim <= 0 {
		params.KmerDim = def.KmerDim
	}
	if params.ContextLength <= 0 {
		params.ContextLength = def.ContextLength
	}
	if params.MaxBatchSize <= 0 {
		params.MaxBatchSize = def.MaxBatchSize
	}

	return &Embedder{
		params:  params,
		version: fmt.Sprintf("kmer-comp-v1-d%d-c%d", params.KmerDim, params.ContextLength),
	}
}

// Version returns the immutable version tag attached to every vector.
func (e *Embedder) Version() string {
	return e.version
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.params.KmerDim + compositionDims
}

// Params returns the parameters this embedder was built from.
func (e *Embedder) Params() domain.EmbedParams {
	return e.params
}

// EmbedBatch encodes a batch of token sequences.
// Batches over the configured maximum fail with
// domain.ErrResourceExhausted so the caller can retry smaller.
func (e *Embedder) EmbedBatch(ctx context.Context, batch []domain.TokenSequence) ([]domain.EmbeddingVector, error) {
	if len(batch) > e.params.MaxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds maximum %d",
			domain.ErrResourceExhausted, len(batch), e.params.MaxBatchSize)
	}

	vectors := make([]domain.EmbeddingVector, len(batch))
	for i, seq := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = domain.EmbeddingVector{
			ReadID:          seq.ReadID,
			EmbedderVersion: e.version,
			Values:          e.embedOne(seq),
			Label:           seq.Label,
		}
	}
	return vectors, nil
}

// embedOne encodes a single sequence.
func (e *Embedder) embedOne(seq domain.TokenSequence) []float32 {
	values := make([]float32, e.Dimensions())

	tokens := seq.Tokens
	if len(tokens) > e.params.ContextLength {
		tokens = tokens[:e.params.ContextLength]
	}

	// Hashed k-mer histogram, averaged over real tokens only so the
	// context cap never dilutes short sequences.
	if len(tokens) > 0 {
		inv := 1 / float32(len(tokens))
		for _, token := range tokens {
			bin := (uint64(token) * knuthMultiplier) % uint64(e.params.KmerDim)
			values[bin] += inv
		}
	}

	composition(seq.Canonical, values[e.params.KmerDim:])

	normalize(values)
	return values
}

// composition fills the 24-value compositional block.
func composition(canonical string, out []float32) {
	n := len(canonical)
	if n == 0 {
		return
	}

	var counts [4]int
	for i := 0; i < n; i++ {
		counts[code(canonical[i])]++
	}
	for b := 0; b < 4; b++ {
		out[b] = float32(counts[b]) / float32(n)
	}

	if n > 1 {
		inv := 1 / float32(n-1)
		for i := 0; i < n-1; i++ {
			pair := code(canonical[i])*4 + code(canonical[i+1])
			out[4+pair] += inv
		}
	}

	a, c, g, tt := counts[0], counts[1], counts[2], counts[3]
	out[20] = float32(g+c) / float32(n)
	out[21] = skew(g, c)
	out[22] = skew(a, tt)
	out[23] = float32(math.Min(float64(n)/lengthScale, 1))
}

// code maps a canonical base to its index (A=0 C=1 G=2 T=3).
func code(b byte) int {
	switch b {
	case 'C':
		return 1
	case 'G':
		return 2
	case 'T':
		return 3
	}
	return 0
}

// skew returns (x-y)/(x+y), or 0 when both counts are zero.
func skew(x, y int) float32 {
	if x+y == 0 {
		return 0
	}
	return float32(x-y) / float32(x+y)
}

// normalize scales a vector to unit L2 norm in place.
func normalize(values []float32) {
	var sum float64
	for _, v := range values {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range values {
		values[i] *= inv
	}
}
