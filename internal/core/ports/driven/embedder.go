package driven

import (
	"context"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

// Embedder maps token sequences to fixed-length vectors using a
// versioned encoder.
//
// Implementations must be deterministic: identical weights and
// identical input bytes always yield identical vectors, with no
// sampling or dropout active at inference. Padding and truncation to
// the context length are the implementation's responsibility, and
// padded positions must not influence pooling.
type Embedder interface {
	// EmbedBatch encodes a batch of token sequences. Batches larger
	// than the configured maximum fail with domain.ErrResourceExhausted;
	// the caller retries with a smaller batch (back-off is the caller's
	// responsibility).
	EmbedBatch(ctx context.Context, batch []domain.TokenSequence) ([]domain.EmbeddingVector, error)

	// Version returns the immutable version tag attached to every
	// vector this embedder produces.
	Version() string

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// ReferenceLookup is the external reference-database collaborator that
// low-confidence predictions are delegated to. Out of core scope; only
// the boundary is specified here.
type ReferenceLookup interface {
	// Lookup resolves a canonical sequence against the reference
	// database and returns the best assignment, or domain.ErrNotFound
	// when the database has no match.
	Lookup(ctx context.Context, sequence string) (*domain.Assignment, error)
}
