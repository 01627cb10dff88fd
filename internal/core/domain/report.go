package domain

// TaxonMetrics holds per-taxon classification quality on held-out data.
type TaxonMetrics struct {
	Precision float64 `yaml:"precision"`
	Recall    float64 `yaml:"recall"`
	F1        float64 `yaml:"f1"`
	Support   int     `yaml:"support"`
}

// CalibrationBucket is one confidence bucket of the reliability curve.
type CalibrationBucket struct {
	// Lower is the bucket's inclusive lower confidence bound.
	Lower float64 `yaml:"lower"`

	// MeanConfidence is the average predicted confidence in the bucket.
	MeanConfidence float64 `yaml:"mean_confidence"`

	// Accuracy is the empirical accuracy in the bucket.
	Accuracy float64 `yaml:"accuracy"`

	// Count is the number of held-out examples in the bucket.
	Count int `yaml:"count"`
}

// CalibrationCurve summarises how well predicted confidence tracks
// empirical accuracy across buckets.
type CalibrationCurve struct {
	Buckets []CalibrationBucket `yaml:"buckets"`

	// ECE is the expected calibration error: the support-weighted mean
	// absolute gap between confidence and accuracy.
	ECE float64 `yaml:"ece"`
}

// EvaluationReport holds held-out quality metrics for one training run.
// All metrics are computed on data disjoint from the training split.
type EvaluationReport struct {
	// Accuracy is overall held-out accuracy.
	Accuracy float64 `yaml:"accuracy"`

	// PerTaxon maps taxon ID to its precision/recall/F1.
	PerTaxon map[string]TaxonMetrics `yaml:"per_taxon"`

	// Silhouette is the clustering quality score in [-1,1].
	Silhouette float64 `yaml:"silhouette"`

	// Calibration is the reliability curve summary.
	Calibration CalibrationCurve `yaml:"calibration"`

	// DegenerateClustering is true when the clustering stage placed
	// every point in the noise bucket. Flagged here rather than treated
	// as success.
	DegenerateClustering bool `yaml:"degenerate_clustering"`

	// NoveltyThreshold is the 95th percentile of held-out distances to
	// the nearest reference cluster, a suggested cutoff for tagging
	// novel taxa.
	NoveltyThreshold float64 `yaml:"novelty_threshold"`

	// HeldOutCount is the number of held-out examples evaluated.
	HeldOutCount int `yaml:"held_out_count"`
}
