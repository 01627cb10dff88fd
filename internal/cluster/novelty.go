package cluster

import (
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

// ScoreNovelty assigns each cluster a novelty score in [0,1]:
// the normalized centroid distance to the nearest cluster carrying a
// ground-truth dominant label. Labelled clusters score 0 (they are
// their own nearest reference); when no labelled cluster exists at
// all, every cluster scores 1.
func ScoreNovelty(clustering *domain.Clustering) {
	var refs [][]float32
	for i := range clustering.Clusters {
		if clustering.Clusters[i].DominantLabel != domain.UnknownLabel {
			refs = append(refs, clustering.Clusters[i].Centroid)
		}
	}

	for i := range clustering.Clusters {
		cl := &clustering.Clusters[i]
		if cl.DominantLabel != domain.UnknownLabel {
			cl.Novelty = 0
			continue
		}
		if len(refs) == 0 {
			cl.Novelty = 1
			continue
		}
		nearest := distance(cl.Centroid, refs[0])
		for _, ref := range refs[1:] {
			if d := distance(cl.Centroid, ref); d < nearest {
				nearest = d
			}
		}
		novelty := nearest / maxUnitDistance
		if novelty > 1 {
			novelty = 1
		}
		cl.Novelty = novelty
	}
}

// Metadata converts a clustering into the summary records stored in a
// model bundle.
func Metadata(clustering domain.Clustering, vectors []domain.EmbeddingVector) []domain.ClusterMetadata {
	out := make([]domain.ClusterMetadata, 0, len(clustering.Clusters))
	for _, cl := range clustering.Clusters {
		out = append(out, domain.ClusterMetadata{
			ID:             cl.ID,
			ExemplarReadID: cl.ExemplarReadID,
			Centroid:       cl.Centroid,
			Size:           len(cl.Members),
			Novelty:        cl.Novelty,
			DominantLabel:  cl.DominantLabel,
		})
	}
	return out
}
