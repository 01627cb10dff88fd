// Package evaluate computes held-out quality metrics for a training
// run: classification accuracy, per-taxon precision/recall/F1, a
// reliability curve, clustering silhouette and the suggested novelty
// threshold. Every metric is computed on data disjoint from the
// training split.
package evaluate

import (
	"fmt"
	"math"
	"sort"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/classify"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
)

// bucketCount fixes the reliability-curve resolution.
const bucketCount = 10

// noveltyPercentile is the held-out distance percentile suggested as
// the novel-taxon cutoff.
const noveltyPercentile = 0.95

// maxUnitDistance normalizes distances between unit vectors into [0,1].
const maxUnitDistance = 2.0

// Report evaluates a trained head against its held-out examples and
// the training clustering.
func Report(predictor *classify.Predictor, holdout []classify.Example,
	clustering domain.Clustering, vectors []domain.EmbeddingVector) (domain.EvaluationReport, error) {

	predicted := make([]string, len(holdout))
	confidences := make([]float64, len(holdout))
	for i, ex := range holdout {
		assignments, err := predictor.Predict(ex.Vector)
		if err != nil {
			return domain.EvaluationReport{}, fmt.Errorf("evaluating read %q: %w", ex.ReadID, err)
		}
		predicted[i] = assignments[0].TaxonID
		confidences[i] = assignments[0].Confidence
	}

	report := domain.EvaluationReport{
		Accuracy:             accuracy(holdout, predicted),
		PerTaxon:             perTaxon(holdout, predicted),
		Silhouette:           Silhouette(clustering, vectors),
		Calibration:          reliability(holdout, predicted, confidences),
		DegenerateClustering: clustering.Degenerate,
		NoveltyThreshold:     noveltyThreshold(holdout, clustering),
		HeldOutCount:         len(holdout),
	}

	logger.Info("evaluate: accuracy %.3f over %d held-out examples (ECE %.3f, silhouette %.3f)",
		report.Accuracy, report.HeldOutCount, report.Calibration.ECE, report.Silhouette)
	return report, nil
}

func accuracy(holdout []classify.Example, predicted []string) float64 {
	if len(holdout) == 0 {
		return 0
	}
	correct := 0
	for i, ex := range holdout {
		if predicted[i] == ex.Class {
			correct++
		}
	}
	return float64(correct) / float64(len(holdout))
}

// perTaxon computes precision, recall and F1 for every taxon appearing
// in either the truth or the predictions.
func perTaxon(holdout []classify.Example, predicted []string) map[string]domain.TaxonMetrics {
	tp := map[string]int{}
	fp := map[string]int{}
	fn := map[string]int{}
	support := map[string]int{}
	for i, ex := range holdout {
		support[ex.Class]++
		if predicted[i] == ex.Class {
			tp[ex.Class]++
		} else {
			fp[predicted[i]]++
			fn[ex.Class]++
		}
	}

	out := map[string]domain.TaxonMetrics{}
	taxa := map[string]bool{}
	for t := range support {
		taxa[t] = true
	}
	for t := range fp {
		taxa[t] = true
	}
	for t := range taxa {
		precision := ratio(tp[t], tp[t]+fp[t])
		recall := ratio(tp[t], tp[t]+fn[t])
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		out[t] = domain.TaxonMetrics{
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   support[t],
		}
	}
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// reliability bins top-1 predictions by confidence and reports the
// gap between mean confidence and empirical accuracy per bin, plus
// the support-weighted expected calibration error.
func reliability(holdout []classify.Example, predicted []string, confidences []float64) domain.CalibrationCurve {
	type bin struct {
		confSum float64
		correct int
		count   int
	}
	bins := make([]bin, bucketCount)
	for i, conf := range confidences {
		b := int(conf * bucketCount)
		if b >= bucketCount {
			b = bucketCount - 1
		}
		bins[b].confSum += conf
		bins[b].count++
		if predicted[i] == holdout[i].Class {
			bins[b].correct++
		}
	}

	curve := domain.CalibrationCurve{}
	total := len(holdout)
	for b, bucket := range bins {
		if bucket.count == 0 {
			continue
		}
		meanConf := bucket.confSum / float64(bucket.count)
		acc := float64(bucket.correct) / float64(bucket.count)
		curve.Buckets = append(curve.Buckets, domain.CalibrationBucket{
			Lower:          float64(b) / bucketCount,
			MeanConfidence: meanConf,
			Accuracy:       acc,
			Count:          bucket.count,
		})
		curve.ECE += math.Abs(meanConf-acc) * float64(bucket.count) / float64(total)
	}
	return curve
}

// Silhouette scores clustering cohesion and separation in [-1,1].
// Fewer than two clusters score 0: separation is undefined.
func Silhouette(clustering domain.Clustering, vectors []domain.EmbeddingVector) float64 {
	if len(clustering.Clusters) < 2 {
		return 0
	}

	var total float64
	var n int
	for ci, cl := range clustering.Clusters {
		for _, m := range cl.Members {
			a := meanDistance(vectors[m].Values, cl.Members, m, vectors)
			b := math.Inf(1)
			for cj, other := range clustering.Clusters {
				if cj == ci {
					continue
				}
				if d := meanDistance(vectors[m].Values, other.Members, -1, vectors); d < b {
					b = d
				}
			}
			if max := math.Max(a, b); max > 0 {
				total += (b - a) / max
			}
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// meanDistance averages distance from x to the listed vectors,
// skipping the excluded index.
func meanDistance(x []float32, members []int, exclude int, vectors []domain.EmbeddingVector) float64 {
	var sum float64
	var count int
	for _, m := range members {
		if m == exclude {
			continue
		}
		sum += euclidean(x, vectors[m].Values)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// noveltyThreshold returns the 95th percentile of held-out distances
// to the nearest reference cluster centroid, normalized to [0,1].
// Clusters with a known dominant label are the references; without
// any, every cluster centroid serves.
func noveltyThreshold(holdout []classify.Example, clustering domain.Clustering) float64 {
	var refs [][]float32
	for _, cl := range clustering.Clusters {
		if cl.DominantLabel != domain.UnknownLabel {
			refs = append(refs, cl.Centroid)
		}
	}
	if len(refs) == 0 {
		for _, cl := range clustering.Clusters {
			refs = append(refs, cl.Centroid)
		}
	}
	if len(refs) == 0 || len(holdout) == 0 {
		return 1
	}

	distances := make([]float64, 0, len(holdout))
	for _, ex := range holdout {
		nearest := math.Inf(1)
		for _, ref := range refs {
			if d := euclidean(ex.Vector, ref); d < nearest {
				nearest = d
			}
		}
		normalized := nearest / maxUnitDistance
		if normalized > 1 {
			normalized = 1
		}
		distances = append(distances, normalized)
	}
	sort.Float64s(distances)

	idx := int(math.Ceil(noveltyPercentile*float64(len(distances)))) - 1
	if idx < 0 {
		idx = 0
	}
	return distances[idx]
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
