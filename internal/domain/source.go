package domain

import (
	"fmt"
	"time"
)

// SourceType describes what kind of document a source holds.
type SourceType string

const (
	SourceTypeBook    SourceType = "book"
	SourceTypeChapter SourceType = "chapter"
	SourceTypeArticle SourceType = "article"
)

// Property keys understood by the translation pipeline.
const (
	PropIsOrigin = "is_origin"
)

// Source is a logical document. Unlike segments, sources are mutated in
// place for metadata; a source is never versioned.
type Source struct {
	ID               string
	Name             string
	Language         Language
	Type             SourceType
	OriginalSourceID string // optional, set on translation targets
	Properties       map[string]any
	CreatedBy        string
	CreatedAt        time.Time
	ModifiedBy       string
	ModifiedAt       time.Time
}

// NewSource creates a new Source instance
func NewSource(id, name string, language Language, sourceType SourceType, actor string, now time.Time) *Source {
	return &Source{
		ID:         id,
		Name:       name,
		Language:   language,
		Type:       sourceType,
		Properties: map[string]any{},
		CreatedBy:  actor,
		CreatedAt:  now,
		ModifiedBy: actor,
		ModifiedAt: now,
	}
}

// IsOrigin reports whether the source is a human-authored origin document.
func (s *Source) IsOrigin() bool {
	if s.Properties == nil {
		return false
	}
	v, ok := s.Properties[PropIsOrigin].(bool)
	return ok && v
}

// ValidateSource validates a Source instance
func ValidateSource(s *Source) error {
	if s == nil {
		return fmt.Errorf("source cannot be nil")
	}

	if s.ID == "" {
		return fmt.Errorf("source ID is required")
	}

	if s.Name == "" {
		return fmt.Errorf("source Name is required")
	}

	if !IsValidLanguage(s.Language) {
		return fmt.Errorf("source Language is invalid: %s", s.Language)
	}

	return nil
}

// SourceMeta is a Source augmented with segment statistics for listings.
type SourceMeta struct {
	Source
	SegmentCount int
	LastModified *time.Time
}
