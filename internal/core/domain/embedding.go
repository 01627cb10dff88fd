package domain

// TokenSequence is the canonical numeric encoding of a Read under a
// specific preprocessing configuration. It is a deterministic function
// of (Read, PreprocessConfig): identical inputs always yield identical
// output, byte for byte.
type TokenSequence struct {
	// ReadID identifies the read this sequence was derived from.
	ReadID string

	// Canonical is the cleaned, uppercased nucleotide string the tokens
	// were produced from. Used for deduplication and cache keys.
	Canonical string

	// K is the k-mer size the tokens encode.
	K int

	// Tokens are the overlapping k-mer token IDs in sequence order.
	// Each token is the base-4 encoding of one k-mer (A=0 C=1 G=2 T=3).
	Tokens []uint32

	// Label carries the read's ground-truth taxon name, if any.
	Label string
}

// EmbeddingVector is a fixed-dimension vector produced by one embedder
// version for one TokenSequence. Vectors from different embedder
// versions are never mixed in a single clustering or classification run.
type EmbeddingVector struct {
	// ReadID identifies the read this vector encodes.
	ReadID string

	// EmbedderVersion tags the encoder that produced the vector.
	EmbedderVersion string

	// Values is the L2-normalized feature vector.
	Values []float32

	// Label carries the read's ground-truth taxon name, if any.
	Label string
}
