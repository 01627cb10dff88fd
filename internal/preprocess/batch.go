package preprocess

import (
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
)

// ItemError records the rejection of one read within a batch.
type ItemError struct {
	ReadID string
	Err    error
}

// CanonicalizeBatch canonicalizes a batch of reads. Invalid reads are
// skipped and reported per-item; they never abort the batch.
//
// Exact duplicates (identical canonical sequence) are collapsed to the
// first occurrence. When near-duplicate collapse is enabled in the
// configuration, sequences within the configured edit distance of an
// already-kept sequence are collapsed as well.
func (p *Preprocessor) CanonicalizeBatch(reads []domain.Read) ([]domain.TokenSequence, []ItemError) {
	kept := make([]domain.TokenSequence, 0, len(reads))
	var rejected []ItemError

	seen := make(map[string]struct{}, len(reads))
	dropped := 0

	for _, read := range reads {
		seq, err := p.Canonicalize(read)
		if err != nil {
			rejected = append(rejected, ItemError{ReadID: read.ID, Err: err})
			continue
		}

		if _, dup := seen[seq.Canonical]; dup {
			dropped++
			continue
		}
		if p.cfg.CollapseNearDuplicates && p.nearDuplicate(kept, seq.Canonical) {
			dropped++
			continue
		}

		seen[seq.Canonical] = struct{}{}
		kept = append(kept, seq)
	}

	if dropped > 0 {
		logger.Debug("preprocess: collapsed %d duplicate reads (%d kept, %d rejected)",
			dropped, len(kept), len(rejected))
	}
	return kept, rejected
}

// nearDuplicate reports whether the candidate is within the configured
// edit distance of any kept sequence.
func (p *Preprocessor) nearDuplicate(kept []domain.TokenSequence, candidate string) bool {
	for i := range kept {
		if withinEditDistance(kept[i].Canonical, candidate, p.cfg.MaxEditDistance) {
			return true
		}
	}
	return false
}

// withinEditDistance reports whether the Levenshtein distance between
// a and b is at most max. Length difference alone can exceed the bound.
func withinEditDistance(a, b string, max int) bool {
	if max <= 0 {
		return a == b
	}
	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	if diff > max {
		return false
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > max {
			return false
		}
		prev, curr = curr, prev
	}
	return prev[len(b)] <= max
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
