package domain

import (
	"fmt"
	"strings"
	"time"
)

// Segment property keys.
const (
	PropSegmentType        = "segment_type"
	PropMultiSourceStorage = "multi_source_storage"
	PropMultiSource        = "multi_source"
	PropOriginOrder        = "origin_order"
	PropTranslationType    = "translation_type"
)

// Segment type property values.
const (
	SegmentTypeFile        = "file"
	SegmentTypeTranslation = "translation"
	SegmentTypeStorage     = "multi_source_storage"
)

// StorageSegmentOrder is the reserved order slot for not-yet-consumed
// reference text. Content segments always live at order >= 1.
const StorageSegmentOrder = 0

// Segment is one paragraph-equivalent unit of text at a position within a
// source. Identity is (ID, Timestamp): every edit inserts a new row with
// the same ID and a later timestamp, and the live value of a segment is
// the row with the maximum timestamp for that ID. SourceID and Order
// never change across versions of the same ID.
type Segment struct {
	ID         string
	Timestamp  time.Time
	SourceID   string
	Order      int
	Text       string
	Properties map[string]any
	CreatedBy  string

	// Origin provenance, set on translated segments.
	OriginSegmentID        string
	OriginSegmentTimestamp *time.Time
}

// NewSegment creates a new content segment version.
func NewSegment(id, sourceID string, order int, text, actor string, ts time.Time) *Segment {
	return &Segment{
		ID:         id,
		Timestamp:  ts,
		SourceID:   sourceID,
		Order:      order,
		Text:       text,
		Properties: map[string]any{},
		CreatedBy:  actor,
	}
}

// NewStorageSegment creates the order-0 working segment that holds
// not-yet-consumed reference text between multi-source batches.
func NewStorageSegment(id, sourceID, text, actor string, ts time.Time) *Segment {
	return &Segment{
		ID:        id,
		Timestamp: ts,
		SourceID:  sourceID,
		Order:     StorageSegmentOrder,
		Text:      text,
		Properties: map[string]any{
			PropMultiSourceStorage: true,
			PropSegmentType:        SegmentTypeStorage,
		},
		CreatedBy: actor,
	}
}

// IsStorage reports whether the segment is a multi-source storage segment.
func (s *Segment) IsStorage() bool {
	if s.Order != StorageSegmentOrder || s.Properties == nil {
		return false
	}
	v, ok := s.Properties[PropMultiSourceStorage].(bool)
	return ok && v
}

// ValidateSegment validates a Segment instance
func ValidateSegment(s *Segment) error {
	if s == nil {
		return fmt.Errorf("segment cannot be nil")
	}

	if s.ID == "" {
		return fmt.Errorf("segment ID is required")
	}

	if s.SourceID == "" {
		return fmt.Errorf("segment SourceID is required")
	}

	if s.Timestamp.IsZero() {
		return fmt.Errorf("segment Timestamp is required")
	}

	if s.Order < 0 {
		return fmt.Errorf("segment Order must not be negative: %d", s.Order)
	}

	return nil
}

// FindStorageSegment returns the storage segment among the given segments,
// or nil if none exists.
func FindStorageSegment(segments []*Segment) *Segment {
	for _, seg := range segments {
		if seg.IsStorage() {
			return seg
		}
	}
	return nil
}

// CollectContentText joins the text of all content segments (order > 0)
// with blank lines, preserving segment order. Used to seed a storage
// segment from a source's existing segments.
func CollectContentText(segments []*Segment) string {
	var texts []string
	for _, seg := range segments {
		if seg.Order <= StorageSegmentOrder {
			continue
		}
		if t := strings.TrimSpace(seg.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n")
}
