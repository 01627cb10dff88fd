package driven

import (
	"context"
	"time"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

// ResultCache memoizes predictions keyed by the canonical hash of
// (normalized read sequence, bundle version).
//
// A cache hit must be indistinguishable in content from a fresh
// computation for the same (read, bundle version) pair. Writes are
// atomic at the granularity of one entry: a write racing a read never
// exposes partially-written data. Unavailability is a performance
// degradation, not a correctness failure - callers log and continue.
type ResultCache interface {
	// Get returns the cached prediction for a key. The boolean is false
	// on a miss. Returns domain.ErrCacheUnavailable when the cache
	// cannot be reached.
	Get(ctx context.Context, key string) (*domain.Prediction, bool, error)

	// Set stores a prediction under a key with a time-to-live.
	Set(ctx context.Context, key string, p domain.Prediction, ttl time.Duration) error
}
