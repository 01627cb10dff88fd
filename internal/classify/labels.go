package classify

import (
	"fmt"
	"sort"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

// BuildLabelMap assigns stable taxon IDs to the distinct label names
// appearing in the examples, in sorted-name order so the assignment is
// reproducible.
func BuildLabelMap(names []string) domain.LabelMap {
	seen := map[string]bool{}
	distinct := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		distinct = append(distinct, name)
	}
	sort.Strings(distinct)

	taxa := make([]domain.Taxon, len(distinct))
	for i, name := range distinct {
		taxa[i] = domain.Taxon{ID: fmt.Sprintf("tax-%03d", i+1), Name: name}
	}
	return domain.NewLabelMap(taxa)
}

// BuildExamples labels each clustered vector for classifier training.
// A vector's own ground-truth label always wins; an unlabelled member
// of a cluster with a known dominant label inherits that label with
// cluster provenance. Noise points and members of unknown clusters
// contribute nothing.
func BuildExamples(vectors []domain.EmbeddingVector, clustering domain.Clustering, labels domain.LabelMap) []Example {
	var examples []Example

	appendExample := func(idx int, name, provenance string) {
		id, ok := labels.ID(name)
		if !ok {
			return
		}
		examples = append(examples, Example{
			ReadID:     vectors[idx].ReadID,
			Vector:     vectors[idx].Values,
			Class:      id,
			Provenance: provenance,
		})
	}

	clustered := map[int]bool{}
	for _, cl := range clustering.Clusters {
		for _, m := range cl.Members {
			clustered[m] = true
			if vectors[m].Label != "" {
				appendExample(m, vectors[m].Label, domain.ProvenanceGroundTruth)
			} else if cl.DominantLabel != domain.UnknownLabel {
				appendExample(m, cl.DominantLabel, domain.ProvenanceCluster)
			}
		}
	}

	// Labelled noise points still count: curation beats density.
	for i := range vectors {
		if !clustered[i] && vectors[i].Label != "" {
			appendExample(i, vectors[i].Label, domain.ProvenanceGroundTruth)
		}
	}
	return examples
}
