package domain

// NoiseClusterID marks points that did not meet density requirements.
// They are reported in the noise bucket rather than forced into a cluster.
const NoiseClusterID = -1

// UnknownLabel is the dominant-label estimate for clusters with no
// labeled members.
const UnknownLabel = "unknown"

// Cluster is one putative taxon group found by density clustering.
type Cluster struct {
	// ID is the cluster identifier, assigned in discovery order.
	ID int

	// Members are indices into the clustered vector set.
	Members []int

	// Centroid is the mean of the member vectors.
	Centroid []float32

	// Exemplar is the index of the representative member: the vector
	// with maximum local density, ties broken by lowest index.
	Exemplar int

	// ExemplarReadID identifies the exemplar's read for human inspection.
	ExemplarReadID string

	// Novelty scores dissimilarity to the nearest known reference
	// cluster in [0,1]. Clusters with no nearby reference score 1.
	// Novelty is not a classification confidence.
	Novelty float64

	// DominantLabel is the most common ground-truth label among members,
	// or UnknownLabel when no member is labeled.
	DominantLabel string
}

// Clustering is the result of one clustering run. Cluster membership
// partitions the input vector set plus the explicit noise bucket.
type Clustering struct {
	// Clusters are the discovered clusters.
	Clusters []Cluster

	// Noise are indices of points assigned to no cluster.
	Noise []int

	// Degenerate is true when every point landed in the noise bucket.
	// Recorded in the evaluation report; packaging may still proceed.
	Degenerate bool

	// EmbedderVersion tags the vectors the clustering was computed on.
	EmbedderVersion string
}

// ClusterParams configures the density clusterer.
type ClusterParams struct {
	// MinClusterSize dissolves smaller clusters into noise.
	MinClusterSize int `yaml:"min_cluster_size" json:"min_cluster_size"`

	// MinSamples is the neighbour count required for a core point.
	MinSamples int `yaml:"min_samples" json:"min_samples"`

	// Eps is the neighbourhood radius. Zero means estimate from the
	// k-distance curve.
	Eps float64 `yaml:"eps" json:"eps"`

	// Seed fixes tie-breaking order so runs are reproducible.
	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultClusterParams mirrors the defaults used during model development.
func DefaultClusterParams() ClusterParams {
	return ClusterParams{
		MinClusterSize: 10,
		MinSamples:     5,
		Seed:           42,
	}
}
