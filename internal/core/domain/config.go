package domain

// PreprocessConfig controls sequence quality control and tokenization.
// It is part of the model bundle: training and inference must use the
// same values, and a k-mer size mismatch is a fatal configuration error.
type PreprocessConfig struct {
	// MinLength rejects reads shorter than this many base pairs.
	MinLength int `yaml:"min_length" json:"min_length"`

	// MaxLength rejects reads longer than this many base pairs.
	MaxLength int `yaml:"max_length" json:"max_length"`

	// MaxAmbiguousFrac rejects reads whose ambiguous-base fraction
	// exceeds this threshold.
	MaxAmbiguousFrac float64 `yaml:"max_ambiguous_frac" json:"max_ambiguous_frac"`

	// MinGC and MaxGC bound the GC-content fraction in [0,1].
	MinGC float64 `yaml:"min_gc" json:"min_gc"`
	MaxGC float64 `yaml:"max_gc" json:"max_gc"`

	// K is the k-mer size used for tokenization.
	K int `yaml:"k" json:"k"`

	// CollapseNearDuplicates enables edit-distance collapse of
	// near-duplicate reads within a batch. Off by default so distinct
	// samples are never silently discarded.
	CollapseNearDuplicates bool `yaml:"collapse_near_duplicates" json:"collapse_near_duplicates"`

	// MaxEditDistance is the collapse radius when near-duplicate
	// collapse is enabled.
	MaxEditDistance int `yaml:"max_edit_distance" json:"max_edit_distance"`
}

// DefaultPreprocessConfig returns the quality-control defaults used
// during model development.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		MinLength:        50,
		MaxLength:        2000,
		MaxAmbiguousFrac: 0.05,
		MinGC:            0.10,
		MaxGC:            0.90,
		K:                6,
		MaxEditDistance:  2,
	}
}

// EmbedParams configures the deterministic k-mer embedder.
type EmbedParams struct {
	// KmerDim is the dimensionality of the hashed k-mer histogram block.
	KmerDim int `yaml:"kmer_dim" json:"kmer_dim"`

	// ContextLength caps the number of tokens considered per sequence.
	// Longer sequences are truncated; pooling averages over real tokens
	// only, so short sequences are unaffected by the cap.
	ContextLength int `yaml:"context_length" json:"context_length"`

	// MaxBatchSize bounds one embedding call. Larger batches are
	// rejected so the caller can back off.
	MaxBatchSize int `yaml:"max_batch_size" json:"max_batch_size"`
}

// DefaultEmbedParams returns the embedder defaults.
func DefaultEmbedParams() EmbedParams {
	return EmbedParams{
		KmerDim:       256,
		ContextLength: 2048,
		MaxBatchSize:  512,
	}
}

// TrainParams configures classifier fitting and calibration.
type TrainParams struct {
	// MinExamplesPerClass fails training when any class is rarer.
	MinExamplesPerClass int `yaml:"min_examples_per_class" json:"min_examples_per_class"`

	// HoldoutFrac is the fraction of examples withheld for calibration
	// and evaluation. Held-out data is disjoint from training data.
	HoldoutFrac float64 `yaml:"holdout_frac" json:"holdout_frac"`

	// LearningRate and Epochs drive gradient descent.
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	Epochs       int     `yaml:"epochs" json:"epochs"`

	// Seed fixes the holdout split and example order.
	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultTrainParams returns the trainer defaults.
func DefaultTrainParams() TrainParams {
	return TrainParams{
		MinExamplesPerClass: 10,
		HoldoutFrac:         0.2,
		LearningRate:        0.1,
		Epochs:              200,
		Seed:                42,
	}
}

// TrainingParams bundles every stage's configuration for one job.
type TrainingParams struct {
	Preprocess PreprocessConfig `yaml:"preprocess" json:"preprocess"`
	Embed      EmbedParams      `yaml:"embed" json:"embed"`
	Cluster    ClusterParams    `yaml:"cluster" json:"cluster"`
	Train      TrainParams      `yaml:"train" json:"train"`
}

// DefaultTrainingParams returns defaults for every stage.
func DefaultTrainingParams() TrainingParams {
	return TrainingParams{
		Preprocess: DefaultPreprocessConfig(),
		Embed:      DefaultEmbedParams(),
		Cluster:    DefaultClusterParams(),
		Train:      DefaultTrainParams(),
	}
}
