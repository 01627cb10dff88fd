// Package preprocess validates, cleans, deduplicates and tokenizes raw
// eDNA reads into their canonical numeric representation.
//
// Canonicalization is a pure function of (read, config): it holds no
// mutable state and is safe to parallelize across reads.
package preprocess

import (
	"fmt"
	"strings"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

// ambiguousBases are the IUPAC codes counted against the ambiguity
// threshold before being stripped from the canonical sequence.
const ambiguousBases = "NRYSWKMBDHV"

// maxK bounds the k-mer size so a token fits a uint32 (4^15 < 2^31).
const maxK = 15

// baseCode maps a nucleotide to its 2-bit code, or -1 for non-ACGT.
func baseCode(b byte) int {
	switch b {
	case 'A':
		return 0
	case 'C':
		return 1
	case 'G':
		return 2
	case 'T':
		return 3
	}
	return -1
}

// Preprocessor canonicalizes reads under one immutable configuration.
type Preprocessor struct {
	cfg domain.PreprocessConfig
}

// New creates a preprocessor, validating the configuration.
// An out-of-range k-mer size is a fatal configuration error.
func New(cfg domain.PreprocessConfig) (*Preprocessor, error) {
	if cfg.K < 1 || cfg.K > maxK {
		return nil, fmt.Errorf("%w: k-mer size %d out of range [1,%d]",
			domain.ErrConfigMismatch, cfg.K, maxK)
	}
	if cfg.MinLength <= 0 || cfg.MaxLength < cfg.MinLength {
		return nil, fmt.Errorf("%w: length bounds [%d,%d]",
			domain.ErrInvalidInput, cfg.MinLength, cfg.MaxLength)
	}
	return &Preprocessor{cfg: cfg}, nil
}

// Config returns the immutable configuration.
func (p *Preprocessor) Config() domain.PreprocessConfig {
	return p.cfg
}

// Clean uppercases a raw sequence and strips whitespace and ambiguous
// IUPAC bases, returning the canonical ACGT-only string and the
// fraction of ambiguous bases observed.
func Clean(raw string) (canonical string, ambiguousFrac float64) {
	var b strings.Builder
	b.Grow(len(raw))

	total := 0
	ambiguous := 0
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		switch {
		case baseCode(c) >= 0:
			total++
			b.WriteByte(c)
		case strings.IndexByte(ambiguousBases, c) >= 0:
			total++
			ambiguous++
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			// whitespace is not counted at all
		default:
			// anything else counts as ambiguous content
			total++
			ambiguous++
		}
	}

	if total == 0 {
		return "", 0
	}
	return b.String(), float64(ambiguous) / float64(total)
}

// Quality computes per-read quality annotations for ingestion.
func Quality(raw string) domain.QualityStats {
	canonical, ambiguousFrac := Clean(raw)
	return domain.QualityStats{
		Length:        len(canonical),
		GCContent:     gcContent(canonical),
		AmbiguousFrac: ambiguousFrac,
	}
}

// gcContent returns the G+C fraction of a canonical sequence.
func gcContent(canonical string) float64 {
	if len(canonical) == 0 {
		return 0
	}
	gc := 0
	for i := 0; i < len(canonical); i++ {
		if canonical[i] == 'G' || canonical[i] == 'C' {
			gc++
		}
	}
	return float64(gc) / float64(len(canonical))
}

// Canonicalize validates and tokenizes one read.
// Returns domain.ErrInvalidSequence when the read fails quality
// control: too short, too long, too many ambiguous bases, or GC
// content outside the configured window.
func (p *Preprocessor) Canonicalize(read domain.Read) (domain.TokenSequence, error) {
	canonical, ambiguousFrac := Clean(read.Sequence)

	if ambiguousFrac > p.cfg.MaxAmbiguousFrac {
		return domain.TokenSequence{}, fmt.Errorf(
			"%w: read %s: ambiguous fraction %.3f exceeds %.3f",
			domain.ErrInvalidSequence, read.ID, ambiguousFrac, p.cfg.MaxAmbiguousFrac)
	}
	if len(canonical) < p.cfg.MinLength {
		return domain.TokenSequence{}, fmt.Errorf(
			"%w: read %s: length %d below minimum %d",
			domain.ErrInvalidSequence, read.ID, len(canonical), p.cfg.MinLength)
	}
	if len(canonical) > p.cfg.MaxLength {
		return domain.TokenSequence{}, fmt.Errorf(
			"%w: read %s: length %d above maximum %d",
			domain.ErrInvalidSequence, read.ID, len(canonical), p.cfg.MaxLength)
	}
	if gc := gcContent(canonical); gc < p.cfg.MinGC || gc > p.cfg.MaxGC {
		return domain.TokenSequence{}, fmt.Errorf(
			"%w: read %s: GC content %.3f outside [%.2f,%.2f]",
			domain.ErrInvalidSequence, read.ID, gc, p.cfg.MinGC, p.cfg.MaxGC)
	}

	return domain.TokenSequence{
		ReadID:    read.ID,
		Canonical: canonical,
		K:         p.cfg.K,
		Tokens:    tokenize(canonical, p.cfg.K),
		Label:     read.Label,
	}, nil
}

// tokenize produces overlapping k-mer token IDs using a rolling
// base-4 encoding.
func tokenize(canonical string, k int) []uint32 {
	if len(canonical) < k {
		return nil
	}
	tokens := make([]uint32, 0, len(canonical)-k+1)
	mask := uint32(1)<<(2*uint(k)) - 1

	var token uint32
	for i := 0; i < len(canonical); i++ {
		token = (token<<2 | uint32(baseCode(canonical[i]))) & mask
		if i >= k-1 {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
