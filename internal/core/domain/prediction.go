package domain

// Assignment is one (taxon, confidence) pair in a prediction.
type Assignment struct {
	// TaxonID is the stable taxon identifier.
	TaxonID string `json:"taxon_id"`

	// TaxonName is the human-readable name from the bundle's label map.
	TaxonName string `json:"taxon_name"`

	// Lineage is the kingdom-level lineage when the source knows it
	// (reference lookups, annotated label maps). Empty otherwise.
	Lineage string `json:"lineage,omitempty"`

	// Confidence is the calibrated probability in [0,1].
	Confidence float64 `json:"confidence"`
}

// Prediction is the result of classifying one read. Created per
// inference call; never mutated.
type Prediction struct {
	// ReadID identifies the input read.
	ReadID string `json:"read_id"`

	// Assignments are (taxon, confidence) pairs ordered by descending
	// confidence.
	Assignments []Assignment `json:"assignments"`

	// BundleVersion is the model bundle the prediction was made with.
	BundleVersion string `json:"bundle_version"`

	// FallbackRouted is true when the top confidence fell below the
	// configured threshold and the request was delegated to the
	// reference-lookup collaborator. The model's best guess is still
	// present in Assignments so callers can distinguish the two paths.
	FallbackRouted bool `json:"fallback_routed"`

	// CacheHit is true when the prediction was served from the result
	// cache. Content is identical to a fresh computation for the same
	// (read, bundle version) pair.
	CacheHit bool `json:"cache_hit"`
}

// Top returns the highest-confidence assignment, or a zero Assignment
// when the prediction is empty.
func (p Prediction) Top() Assignment {
	if len(p.Assignments) == 0 {
		return Assignment{}
	}
	return p.Assignments[0]
}
