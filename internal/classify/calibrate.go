package classify

import (
	"math"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
)

// Temperature search bounds. Below minTemperature the softmax
// saturates; above maxTemperature predictions are uniform noise.
const (
	minTemperature = 0.05
	maxTemperature = 10.0
)

// FitTemperature fits a temperature-scaling parameter on held-out
// examples by minimizing negative log-likelihood with a golden-section
// search. An empty holdout set yields the identity temperature.
func FitTemperature(weights domain.ClassifierWeights, holdout []Example) domain.Calibration {
	if len(holdout) == 0 {
		return domain.Calibration{Temperature: 1}
	}

	classIdx := make(map[string]int, len(weights.Classes))
	for i, class := range weights.Classes {
		classIdx[class] = i
	}

	// Logits are fixed; only the temperature moves during the search.
	logits := make([][]float64, 0, len(holdout))
	targets := make([]int, 0, len(holdout))
	for _, ex := range holdout {
		target, ok := classIdx[ex.Class]
		if !ok {
			continue
		}
		row := make([]float64, len(weights.Classes))
		logitsInto(row, weights.Weights, weights.Bias, ex.Vector)
		logits = append(logits, row)
		targets = append(targets, target)
	}
	if len(logits) == 0 {
		return domain.Calibration{Temperature: 1}
	}

	nll := func(temperature float64) float64 {
		var total float64
		probs := make([]float64, len(weights.Classes))
		for i, row := range logits {
			copy(probs, row)
			softmaxInPlace(probs, temperature)
			p := probs[targets[i]]
			if p < 1e-12 {
				p = 1e-12
			}
			total -= math.Log(p)
		}
		return total
	}

	temperature := goldenSection(nll, minTemperature, maxTemperature)
	logger.Debug("classify: fitted temperature %.3f on %d held-out examples",
		temperature, len(logits))

	return domain.Calibration{
		Temperature: temperature,
		FittedOn:    len(logits),
	}
}

// goldenSection minimizes f over [lo, hi] assuming unimodality.
func goldenSection(f func(float64) float64, lo, hi float64) float64 {
	const (
		ratio = 0.6180339887498949
		tol   = 1e-4
	)
	a, b := lo, hi
	x1 := b - ratio*(b-a)
	x2 := a + ratio*(b-a)
	f1, f2 := f(x1), f(x2)
	for b-a > tol {
		if f1 < f2 {
			b, x2, f2 = x2, x1, f1
			x1 = b - ratio*(b-a)
			f1 = f(x1)
		} else {
			a, x1, f1 = x1, x2, f2
			x2 = a + ratio*(b-a)
			f2 = f(x2)
		}
	}
	return (a + b) / 2
}
