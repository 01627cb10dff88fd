package classify

import (
	"fmt"
	"sort"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

// Predictor applies a trained, calibrated classification head.
// Safe for concurrent use; all state is read-only after construction.
type Predictor struct {
	weights     domain.ClassifierWeights
	calibration domain.Calibration
	labels      domain.LabelMap
}

// NewPredictor validates the head's internal consistency before use.
func NewPredictor(weights domain.ClassifierWeights, calibration domain.Calibration, labels domain.LabelMap) (*Predictor, error) {
	if len(weights.Classes) == 0 {
		return nil, fmt.Errorf("%w: classifier has no classes", domain.ErrConfigMismatch)
	}
	if len(weights.Weights) != len(weights.Classes) || len(weights.Bias) != len(weights.Classes) {
		return nil, fmt.Errorf("%w: classifier has %d classes but %d weight rows and %d biases",
			domain.ErrConfigMismatch, len(weights.Classes), len(weights.Weights), len(weights.Bias))
	}
	for c, row := range weights.Weights {
		if len(row) != weights.FeatureDim {
			return nil, fmt.Errorf("%w: weight row %d has %d features, expected %d",
				domain.ErrConfigMismatch, c, len(row), weights.FeatureDim)
		}
	}
	if calibration.Temperature <= 0 {
		calibration.Temperature = 1
	}
	return &Predictor{weights: weights, calibration: calibration, labels: labels}, nil
}

// Predict returns calibrated assignments for one embedding vector,
// sorted by descending confidence with ties broken by taxon ID. The
// confidences sum to 1 across all classes.
func (p *Predictor) Predict(vector []float32) ([]domain.Assignment, error) {
	if len(vector) != p.weights.FeatureDim {
		return nil, fmt.Errorf("%w: vector has %d dimensions, classifier expects %d",
			domain.ErrConfigMismatch, len(vector), p.weights.FeatureDim)
	}

	probs := make([]float64, len(p.weights.Classes))
	logitsInto(probs, p.weights.Weights, p.weights.Bias, vector)
	softmaxInPlace(probs, p.calibration.Temperature)

	assignments := make([]domain.Assignment, len(probs))
	for c, prob := range probs {
		id := p.weights.Classes[c]
		assignments[c] = domain.Assignment{
			TaxonID:    id,
			TaxonName:  p.labels.Name(id),
			Lineage:    p.labels.Lineage(id),
			Confidence: prob,
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].Confidence != assignments[j].Confidence {
			return assignments[i].Confidence > assignments[j].Confidence
		}
		return assignments[i].TaxonID < assignments[j].TaxonID
	})
	return assignments, nil
}
