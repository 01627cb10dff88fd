package domain

import "errors"

// Domain errors represent pipeline and inference failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidSequence indicates a read failed quality control:
	// too short, too long, or too many ambiguous bases.
	// Recovered per-item; never aborts a batch.
	ErrInvalidSequence = errors.New("invalid sequence")

	// ErrEmbedderVersionMismatch indicates a bundle and embedder disagree
	// on the embedder version. Fatal for the affected request or job;
	// never silently coerced.
	ErrEmbedderVersionMismatch = errors.New("embedder version mismatch")

	// ErrConfigMismatch indicates the preprocessing configuration used at
	// inference does not match the one the bundle was trained with.
	ErrConfigMismatch = errors.New("preprocessing config mismatch")

	// ErrInsufficientTrainingData indicates a class had fewer than the
	// configured minimum number of examples. Fails the training job.
	ErrInsufficientTrainingData = errors.New("insufficient training data")

	// ErrTimeout indicates a request exceeded its deadline.
	// Retryable at the caller's discretion.
	ErrTimeout = errors.New("timeout")

	// ErrResourceExhausted indicates the runtime is over capacity
	// (oversized embedding batch, full work queue). Retryable.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrCacheUnavailable indicates the result cache could not be reached.
	// Logged, never fatal: inference proceeds without it.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrNoBundle indicates no model bundle is loaded into the runtime.
	ErrNoBundle = errors.New("no model bundle loaded")

	// ErrJobNotCancellable indicates the job is already in a terminal state.
	ErrJobNotCancellable = errors.New("job not cancellable")
)

// ErrorKind returns the machine-readable kind for a domain error,
// suitable for external interfaces. Unknown errors map to "internal".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSequence):
		return "invalid_sequence"
	case errors.Is(err, ErrEmbedderVersionMismatch):
		return "embedder_version_mismatch"
	case errors.Is(err, ErrConfigMismatch):
		return "config_mismatch"
	case errors.Is(err, ErrInsufficientTrainingData):
		return "insufficient_training_data"
case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrResourceExhausted):
		return "resource_exhausted"
	case errors.Is(err, ErrCacheUnavailable):
		return "cache_unavailable"
	case errors.Is(err, ErrNoBundle):
		return "no_bundle"
	case errors.Is(err, ErrJobNotCancellable):
		return "job_not_cancellable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
