package domain

import "time"

// SourceTranslationLink is a directed edge from an origin (or reference)
// source to the translated source it contributes to. Created once, never
// updated; removed only by the source-deletion cascade.
type SourceTranslationLink struct {
	OriginSourceID     string
	TranslatedSourceID string
	CreatedAt          time.Time
}

// SegmentTranslationLink is a directed provenance edge from a specific
// origin segment version to the translated segment version it produced.
// The edge set is many-to-many: in multi-source mode one translated
// segment draws on the origin segment plus one version of every reference
// source's storage segment.
type SegmentTranslationLink struct {
	OriginSegmentID            string
	OriginSegmentTimestamp     time.Time
	TranslatedSegmentID        string
	TranslatedSegmentTimestamp time.Time

	// AlignedText carries the reference-language rendition aligned to the
	// translated segment, when the edge originates from a reference
	// source. Reference text is never re-persisted as content rows; this
	// annotation is the only record of the alignment.
	AlignedText string
	// AlignedLanguage is the language of AlignedText, empty for plain
	// origin->translated edges.
	AlignedLanguage Language

	CreatedAt time.Time
}
