// Package classify trains and applies the species classification head.
//
// The head is a multinomial logistic regression over embedding vectors,
// fitted with full-batch gradient descent so training is deterministic
// for a fixed seed. Raw scores are never exposed: a temperature fitted
// on held-out data scales logits before the softmax.
package classify

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
)

// l2Penalty is the ridge term keeping weights bounded on small datasets.
const l2Penalty = 1e-4

// Example is one training observation: an embedding vector labelled
// with a taxon ID and the provenance of that label.
type Example struct {
	ReadID     string
	Vector     []float32
	Class      string
	Provenance string
}

// Trainer fits classification heads under one parameter set.
type Trainer struct {
	params domain.TrainParams
}

// NewTrainer creates a trainer, filling zero-valued parameters from
// the defaults.
func NewTrainer(params domain.TrainParams) *Trainer {
	def := domain.DefaultTrainParams()
	if params.MinExamplesPerClass <= 0 {
		params.MinExamplesPerClass = def.MinExamplesPerClass
	}
	if params.HoldoutFrac <= 0 || params.HoldoutFrac >= 1 {
		params.HoldoutFrac = def.HoldoutFrac
	}
	if params.LearningRate <= 0 {
		params.LearningRate = def.LearningRate
	}
	if params.Epochs <= 0 {
		params.Epochs = def.Epochs
	}
	return &Trainer{params: params}
}

// CheckCounts verifies every class meets the minimum example count.
// The error names the offending class and how to remediate.
func (t *Trainer) CheckCounts(examples []Example) error {
	counts := map[string]int{}
	for _, ex := range examples {
		counts[ex.Class]++
	}
	if len(counts) < 2 {
		return fmt.Errorf("%w: %d classes present, need at least 2; add labeled reads for more taxa",
			domain.ErrInsufficientTrainingData, len(counts))
	}

	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		if counts[class] < t.params.MinExamplesPerClass {
			return fmt.Errorf("%w: class %q has %d examples, need at least %d; add labeled reads or lower min_examples_per_class",
				domain.ErrInsufficientTrainingData, class, counts[class], t.params.MinExamplesPerClass)
		}
	}
	return nil
}

// Split partitions examples into a training set and a disjoint
// held-out set, stratified per class so every class appears in both
// sides when it has enough examples. The split is stable for a fixed
// seed.
func (t *Trainer) Split(examples []Example) (train, holdout []Example) {
	byClass := map[string][]Example{}
	for _, ex := range examples {
		byClass[ex.Class] = append(byClass[ex.Class], ex)
	}

	classes := make([]string, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	rng := rand.New(rand.NewSource(t.params.Seed))
	for _, class := range classes {
		group := byClass[class]
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})

		held := int(float64(len(group)) * t.params.HoldoutFrac)
		if held >= len(group) {
			held = len(group) - 1
		}
		if held == 0 && len(group) > 1 {
			held = 1
		}
		holdout = append(holdout, group[:held]...)
		train = append(train, group[held:]...)
	}
	return train, holdout
}

// Fit trains the classification head on the given examples. The
// context is checked between epochs so a cancelled job stops promptly.
func (t *Trainer) Fit(ctx context.Context, examples []Example) (domain.ClassifierWeights, error) {
	if err := t.CheckCounts(examples); err != nil {
		return domain.ClassifierWeights{}, err
	}

	classes, classIdx := classIndex(examples)
	dim := len(examples[0].Vector)
	for _, ex := range examples {
		if len(ex.Vector) != dim {
			return domain.ClassifierWeights{}, fmt.Errorf(
				"%w: example %q has %d dimensions, expected %d",
				domain.ErrInvalidInput, ex.ReadID, len(ex.Vector), dim)
		}
	}

	nClasses := len(classes)
	weights := make([][]float64, nClasses)
	for c := range weights {
		weights[c] = make([]float64, dim)
	}
	bias := make([]float64, nClasses)

	gradW := make([][]float64, nClasses)
	for c := range gradW {
		gradW[c] = make([]float64, dim)
	}
	gradB := make([]float64, nClasses)
	probs := make([]float64, nClasses)

	step := t.params.LearningRate / float64(len(examples))
	for epoch := 0; epoch < t.params.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return domain.ClassifierWeights{}, err
		}

		for c := range gradW {
			for d := range gradW[c] {
				gradW[c][d] = 0
			}
			gradB[c] = 0
		}

		for _, ex := range examples {
			logitsInto(probs, weights, bias, ex.Vector)
			softmaxInPlace(probs, 1)
			target := classIdx[ex.Class]
			for c := range probs {
				delta := probs[c]
				if c == target {
					delta -= 1
				}
				for d, v := range ex.Vector {
					gradW[c][d] += delta * float64(v)
				}
				gradB[c] += delta
			}
		}

		for c := range weights {
			for d := range weights[c] {
				weights[c][d] -= step*gradW[c][d] + t.params.LearningRate*l2Penalty*weights[c][d]
			}
			bias[c] -= step * gradB[c]
		}
	}

	logger.Info("classify: fitted %d-class head on %d examples (dim %d)",
		nClasses, len(examples), dim)

	return domain.ClassifierWeights{
		Classes:    classes,
		Weights:    weights,
		Bias:       bias,
		FeatureDim: dim,
		Provenance: provenanceByClass(examples),
	}, nil
}

// classIndex returns the sorted class list and its reverse lookup.
func classIndex(examples []Example) ([]string, map[string]int) {
	seen := map[string]bool{}
	for _, ex := range examples {
		seen[ex.Class] = true
	}
	classes := make([]string, 0, len(seen))
	for class := range seen {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	idx := make(map[string]int, len(classes))
	for i, class := range classes {
		idx[class] = i
	}
	return classes, idx
}

// provenanceByClass records per class whether any example carried a
// ground-truth label. Ground truth wins over cluster-derived labels.
func provenanceByClass(examples []Example) map[string]string {
	out := map[string]string{}
	for _, ex := range examples {
		if out[ex.Class] != domain.ProvenanceGroundTruth {
			out[ex.Class] = ex.Provenance
		}
	}
	return out
}

// logitsInto writes w·x + b for each class into dst.
func logitsInto(dst []float64, weights [][]float64, bias []float64, x []float32) {
	for c := range weights {
		sum := bias[c]
		row := weights[c]
		for d, v := range x {
			sum += row[d] * float64(v)
		}
		dst[c] = sum
	}
}

// softmaxInPlace converts logits to probabilities at the given
// temperature, using the max-subtraction trick for stability.
func softmaxInPlace(logits []float64, temperature float64) {
	if temperature <= 0 {
		temperature = 1
	}
	max := math.Inf(-1)
	for _, l := range logits {
		if l > max {
			max = l
		}
	}
	var sum float64
	for i, l := range logits {
		e := math.Exp((l - max) / temperature)
		logits[i] = e
		sum += e
	}
	for i := range logits {
		logits[i] /= sum
	}
}
