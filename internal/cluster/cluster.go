// Package cluster groups embedding vectors into putative taxon
// clusters using density-based clustering.
//
// Points that do not meet the density requirements are placed in an
// explicit noise bucket rather than forced into a cluster, so spurious
// taxa are never manufactured. Given fixed parameters and seed, the
// assignment, exemplar selection and novelty scores are stable across
// runs: all tie-breaking is rule-based (lowest index wins).
package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
)

// epsSampleSize caps the number of points used for eps estimation.
const epsSampleSize = 1000

// maxUnitDistance is the largest possible euclidean distance between
// two unit vectors, used to normalize novelty into [0,1].
const maxUnitDistance = 2.0

// Clusterer runs density clustering under one parameter set.
type Clusterer struct {
	params domain.ClusterParams
}

// New creates a clusterer, filling zero-valued parameters from the
// defaults.
func New(params domain.ClusterParams) *Clusterer {
	def := domain.DefaultClusterParams()
	if params.MinClusterSize <= 0 {
		params.MinClusterSize = def.MinClusterSize
	}
	if params.MinSamples <= 0 {
		params.MinSamples = def.MinSamples
	}
	return &Clusterer{params: params}
}

// Cluster partitions the vector set into clusters plus a noise bucket.
// All vectors must carry the same embedder version; a mix fails with
// domain.ErrEmbedderVersionMismatch. A run where every point lands in
// noise is returned with Degenerate set rather than as an error.
func (c *Clusterer) Cluster(vectors []domain.EmbeddingVector) (domain.Clustering, error) {
	if len(vectors) == 0 {
		return domain.Clustering{Degenerate: true}, nil
	}

	version := vectors[0].EmbedderVersion
	for i := range vectors {
		if vectors[i].EmbedderVersion != version {
			return domain.Clustering{}, fmt.Errorf(
				"%w: vector %d has version %q, expected %q",
				domain.ErrEmbedderVersionMismatch, i, vectors[i].EmbedderVersion, version)
		}
	}

	eps := c.params.Eps
	if eps <= 0 {
		eps = c.estimateEps(vectors)
		logger.Debug("cluster: estimated eps %.4f from k-distance curve", eps)
	}

	neighbours := neighbourLists(vectors, eps)
	labels := c.scan(neighbours)
	labels = c.dissolveSmall(labels)

	result := assemble(labels, vectors, neighbours)
	result.EmbedderVersion = version

	logger.Info("cluster: %d clusters, %d noise points (eps=%.4f)",
		len(result.Clusters), len(result.Noise), eps)
	return result, nil
}

// estimateEps implements the k-distance elbow heuristic: sort each
// point's distance to its MinSamples-th neighbour and take the point
// of maximum curvature. Large inputs are subsampled deterministically
// under the configured seed.
func (c *Clusterer) estimateEps(vectors []domain.EmbeddingVector) float64 {
	sample := make([]int, len(vectors))
	for i := range sample {
		sample[i] = i
	}
	if len(sample) > epsSampleSize {
		rng := rand.New(rand.NewSource(c.params.Seed))
		rng.Shuffle(len(sample), func(i, j int) {
			sample[i], sample[j] = sample[j], sample[i]
		})
		sample = sample[:epsSampleSize]
		sort.Ints(sample)
	}

	k := c.params.MinSamples
	kDistances := make([]float64, 0, len(sample))
	dists := make([]float64, 0, len(sample))
	for _, i := range sample {
		dists = dists[:0]
		for _, j := range sample {
			if i == j {
				continue
			}
			dists = append(dists, distance(vectors[i].Values, vectors[j].Values))
		}
		sort.Float64s(dists)
		idx := k - 1
		if idx >= len(dists) {
			idx = len(dists) - 1
		}
		if idx >= 0 {
			kDistances = append(kDistances, dists[idx])
		}
	}

	if len(kDistances) == 0 {
		return maxUnitDistance
	}
	sort.Float64s(kDistances)

	// Elbow: maximum second difference along the sorted curve.
	if len(kDistances) < 3 {
		return kDistances[len(kDistances)/2]
	}
	best, bestIdx := math.Inf(-1), len(kDistances)/2
	for i := 1; i < len(kDistances)-1; i++ {
		curvature := kDistances[i+1] - 2*kDistances[i] + kDistances[i-1]
		if curvature > best {
			best, bestIdx = curvature, i
		}
	}
	eps := kDistances[bestIdx]
	if eps <= 0 {
		eps = kDistances[len(kDistances)-1]
	}
	return eps
}

// neighbourLists computes, for every point, the indices within eps
// (excluding the point itself), in ascending index order.
func neighbourLists(vectors []domain.EmbeddingVector, eps float64) [][]int {
	n := len(vectors)
	neighbours := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if distance(vectors[i].Values, vectors[j].Values) <= eps {
				neighbours[i] = append(neighbours[i], j)
				neighbours[j] = append(neighbours[j], i)
			}
		}
	}
	for i := range neighbours {
		sort.Ints(neighbours[i])
	}
	return neighbours
}

// scan is the core density scan. A point is a core point when it has
// at least MinSamples neighbours (itself included). Clusters expand
// from core points in ascending index order, which makes labelling
// deterministic.
func (c *Clusterer) scan(neighbours [][]int) []int {
	n := len(neighbours)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = domain.NoiseClusterID
	}

	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != domain.NoiseClusterID || !c.isCore(neighbours, i) {
			continue
		}

		labels[i] = next
		queue := append([]int(nil), neighbours[i]...)
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			if labels[p] == next {
				continue
			}
			labels[p] = next
			if c.isCore(neighbours, p) {
				for _, q := range neighbours[p] {
					if labels[q] == domain.NoiseClusterID {
						queue = append(queue, q)
					}
				}
			}
		}
		next++
	}
	return labels
}

func (c *Clusterer) isCore(neighbours [][]int, i int) bool {
	return len(neighbours[i])+1 >= c.params.MinSamples
}

// dissolveSmall moves clusters below MinClusterSize into the noise
// bucket and renumbers the remainder densely in discovery order.
func (c *Clusterer) dissolveSmall(labels []int) []int {
	sizes := map[int]int{}
	for _, l := range labels {
		if l != domain.NoiseClusterID {
			sizes[l]++
		}
	}

	renumber := map[int]int{}
	next := 0
	for _, l := range labels {
		if l == domain.NoiseClusterID {
			continue
		}
		if _, done := renumber[l]; done {
			continue
		}
		if sizes[l] >= c.params.MinClusterSize {
			renumber[l] = next
			next++
		} else {
			renumber[l] = domain.NoiseClusterID
		}
	}

	out := make([]int, len(labels))
	for i, l := range labels {
		if l == domain.NoiseClusterID {
			out[i] = domain.NoiseClusterID
		} else {
			out[i] = renumber[l]
		}
	}
	return out
}

// assemble builds the Clustering value: members, centroids, exemplars
// and dominant labels.
func assemble(labels []int, vectors []domain.EmbeddingVector, neighbours [][]int) domain.Clustering {
	byCluster := map[int][]int{}
	var noise []int
	for i, l := range labels {
		if l == domain.NoiseClusterID {
			noise = append(noise, i)
		} else {
			byCluster[l] = append(byCluster[l], i)
		}
	}

	ids := make([]int, 0, len(byCluster))
	for id := range byCluster {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	clusters := make([]domain.Cluster, 0, len(ids))
	for _, id := range ids {
		members := byCluster[id]
		exemplar := pickExemplar(members, neighbours)
		clusters = append(clusters, domain.Cluster{
			ID:             id,
			Members:        members,
			Centroid:       centroid(members, vectors),
			Exemplar:       exemplar,
			ExemplarReadID: vectors[exemplar].ReadID,
			DominantLabel:  dominantLabel(members, vectors),
		})
	}

	return domain.Clustering{
		Clusters:   clusters,
		Noise:      noise,
		Degenerate: len(clusters) == 0 && len(vectors) > 0,
	}
}

// pickExemplar returns the member with maximum local density
// (neighbour count), ties broken by lowest index.
func pickExemplar(members []int, neighbours [][]int) int {
	best := members[0]
	bestDensity := len(neighbours[best])
	for _, m := range members[1:] {
		if d := len(neighbours[m]); d > bestDensity || (d == bestDensity && m < best) {
			best, bestDensity = m, d
		}
	}
	return best
}

// centroid returns the mean of the member vectors.
func centroid(members []int, vectors []domain.EmbeddingVector) []float32 {
	if len(members) == 0 {
		return nil
	}
	dim := len(vectors[members[0]].Values)
	sum := make([]float64, dim)
	for _, m := range members {
		for d, v := range vectors[m].Values {
			sum[d] += float64(v)
		}
	}
	out := make([]float32, dim)
	inv := 1 / float64(len(members))
	for d := range sum {
		out[d] = float32(sum[d] * inv)
	}
	return out
}

// dominantLabel returns the majority ground-truth label among members,
// ties broken lexicographically, or UnknownLabel when no member is
// labelled.
func dominantLabel(members []int, vectors []domain.EmbeddingVector) string {
	counts := map[string]int{}
	for _, m := range members {
		if vectors[m].Label != "" {
			counts[vectors[m].Label]++
		}
	}
	if len(counts) == 0 {
		return domain.UnknownLabel
	}

	best, bestCount := "", -1
	for label, count := range counts {
		if count > bestCount || (count == bestCount && label < best) {
			best, bestCount = label, count
		}
	}
	return best
}

// distance returns the euclidean distance between two vectors.
func distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
