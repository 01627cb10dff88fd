package domain

import "time"

// Read represents one raw environmental-DNA read.
// Reads are immutable once ingested and owned by their Dataset.
type Read struct {
	// ID is the unique identifier for the read.
	ID string

	// Sequence is the raw nucleotide string as ingested.
	Sequence string

	// Sample describes where and when the read was collected.
	Sample SampleMetadata

	// Label is the ground-truth taxon name if the read is labeled,
	// empty otherwise. Stable taxon IDs are assigned from the distinct
	// names when a label map is built at training time.
	Label string

	// Quality holds quality annotations computed at ingestion.
	Quality QualityStats
}

// SampleMetadata describes the environmental sample a read came from.
type SampleMetadata struct {
	// Location is a free-form sampling site description or coordinate pair.
	Location string

	// CollectedAt is when the sample was taken.
	CollectedAt time.Time

	// Source names the sequencing run or database the read came from.
	Source string
}

// QualityStats holds per-read quality annotations.
type QualityStats struct {
	// Length is the raw sequence length in base pairs.
	Length int

	// GCContent is the fraction of G and C bases in [0,1].
	GCContent float64

	// AmbiguousFrac is the fraction of ambiguous IUPAC bases in [0,1].
	AmbiguousFrac float64
}

// Dataset is an ordered collection of reads plus provenance.
// Created on ingestion; training jobs reference it by ID, never copy it.
type Dataset struct {
	// ID is the unique identifier for the dataset.
	ID string

	// Name is a human-readable name.
	Name string

	// Description records provenance notes.
	Description string

	// ReadCount is the number of reads in the dataset.
	ReadCount int

	// LabeledCount is the number of reads carrying a ground-truth label.
	LabeledCount int

	// CreatedAt is when the dataset was ingested.
	CreatedAt time.Time
}
