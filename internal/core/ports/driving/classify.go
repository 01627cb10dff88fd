package driving

import (
	"context"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

// ClassifyResult pairs one input read with its prediction or its
// per-item error. Errors local to one read never abort the batch.
type ClassifyResult struct {
	// ReadID identifies the input read.
	ReadID string

	// Prediction is set when classification succeeded.
	Prediction *domain.Prediction

	// Err is set when the read was rejected (e.g. invalid sequence).
	Err error
}

// ClassificationService exposes the inference path to external callers.
type ClassificationService interface {
	// Classify runs the preprocessing, embedding and classification path
	// for each read against the currently loaded bundle. Results are
	// returned in input order; malformed reads yield a per-item error
	// without affecting other reads in the batch.
	Classify(ctx context.Context, reads []domain.Read) ([]ClassifyResult, error)

	// BundleVersion returns the version tag of the loaded bundle, or
	// empty when none is loaded.
	BundleVersion() string
}
