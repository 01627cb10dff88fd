package domain

import "sort"

// LabelMap is a bidirectional mapping between taxon identifiers and
// human-readable names, with optional lineage annotations. Immutable
// once attached to a model bundle.
type LabelMap struct {
	idToName    map[string]string
	nameToID    map[string]string
	idToLineage map[string]string
}

// Taxon pairs a stable taxon identifier with its display name and an
// optional kingdom-level lineage (e.g. "Animalia; Chordata;
// Actinopterygii").
type Taxon struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Lineage string `yaml:"lineage,omitempty"`
}

// NewLabelMap builds a LabelMap from taxon pairs. Later duplicates of
// an ID overwrite earlier ones.
func NewLabelMap(taxa []Taxon) LabelMap {
	m := LabelMap{
		idToName:    make(map[string]string, len(taxa)),
		nameToID:    make(map[string]string, len(taxa)),
		idToLineage: make(map[string]string, len(taxa)),
	}
	for _, t := range taxa {
		m.idToName[t.ID] = t.Name
		m.nameToID[t.Name] = t.ID
		if t.Lineage != "" {
			m.idToLineage[t.ID] = t.Lineage
		}
	}
	return m
}

// Name returns the display name for a taxon ID, or the ID itself when
// the taxon is not mapped.
func (m LabelMap) Name(id string) string {
	if name, ok := m.idToName[id]; ok {
		return name
	}
	return id
}

// ID returns the taxon ID for a display name.
func (m LabelMap) ID(name string) (string, bool) {
	id, ok := m.nameToID[name]
	return id, ok
}

// Lineage returns the lineage annotation for a taxon ID, or empty when
// none was recorded.
func (m LabelMap) Lineage(id string) string {
	return m.idToLineage[id]
}

// Len returns the number of mapped taxa.
func (m LabelMap) Len() int {
	return len(m.idToName)
}

// Taxa returns the mapping as a slice sorted by taxon ID, for stable
// serialization.
func (m LabelMap) Taxa() []Taxon {
	taxa := make([]Taxon, 0, len(m.idToName))
	for id, name := range m.idToName {
		taxa = append(taxa, Taxon{ID: id, Name: name, Lineage: m.idToLineage[id]})
	}
	sort.Slice(taxa, func(i, j int) bool { return taxa[i].ID < taxa[j].ID })
	return taxa
}
