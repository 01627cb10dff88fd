package domain

import "time"

// Label provenance values recorded per class in classifier weights.
const (
	// ProvenanceGroundTruth marks classes trained on curated labels.
	ProvenanceGroundTruth = "ground-truth"

	// ProvenanceCluster marks classes whose labels were derived from
	// cluster membership. Ground truth wins when both are available.
	ProvenanceCluster = "cluster"
)

// ClassifierWeights holds the trained classification head.
type ClassifierWeights struct {
	// Classes are taxon IDs in class-index order.
	Classes []string `yaml:"classes"`

	// Weights is the [class][feature] coefficient matrix.
	Weights [][]float64 `yaml:"weights"`

	// Bias is the per-class intercept.
	Bias []float64 `yaml:"bias"`

	// FeatureDim is the expected embedding dimensionality.
	FeatureDim int `yaml:"feature_dim"`

	// Provenance records, per class, whether its labels were ground
	// truth or cluster-derived. Kept for auditability.
	Provenance map[string]string `yaml:"provenance"`
}

// Calibration holds temperature-scaling parameters fitted on held-out
// data. Raw classifier scores are never shipped as confidences.
type Calibration struct {
	// Temperature divides logits before the softmax. 1 means the raw
	// scores were already well calibrated.
	Temperature float64 `yaml:"temperature"`

	// FittedOn is the held-out example count the temperature was fitted on.
	FittedOn int `yaml:"fitted_on"`
}

// ClusterMetadata is the serializable summary of a clustering run kept
// in the bundle: exemplars and novelty scores, not raw memberships.
type ClusterMetadata struct {
	// ID is the cluster identifier.
	ID int `yaml:"id"`

	// ExemplarReadID identifies the representative sequence.
	ExemplarReadID string `yaml:"exemplar_read_id"`

	// Centroid is the cluster mean vector.
	Centroid []float32 `yaml:"centroid"`

	// Size is the member count.
	Size int `yaml:"size"`

	// Novelty is the [0,1] dissimilarity to the nearest reference taxon.
	Novelty float64 `yaml:"novelty"`

	// DominantLabel is the majority ground-truth label, or UnknownLabel.
	DominantLabel string `yaml:"dominant_label"`
}

// ModelBundle is the versioned, self-contained package of everything
// needed to reproduce inference behaviour. Read-only once published.
// The version tag is derived from the bundle's content, so two
// packaging runs with identical inputs yield the same version.
type ModelBundle struct {
	// Version is the content-derived tag identifying this bundle.
	Version string

	// Preprocess is the preprocessing configuration used at training
	// time. Inference must use the identical configuration.
	Preprocess PreprocessConfig

	// EmbedderVersion tags the encoder; every consumer verifies it
	// against the vectors it handles.
	EmbedderVersion string

	// Embed holds the embedder parameters the version was derived from.
	Embed EmbedParams

	// Classifier is the trained classification head.
	Classifier ClassifierWeights

	// Calibration is the fitted temperature scaling.
	Calibration Calibration

	// Labels maps taxon IDs to display names.
	Labels LabelMap

	// Clusters summarises the training clustering run.
	Clusters []ClusterMetadata

	// Eval is the held-out evaluation report.
	Eval EvaluationReport

	// CreatedAt is when the bundle was packaged.
	CreatedAt time.Time
}
