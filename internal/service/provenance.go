package service

import (
	"context"
	"log"
	"time"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/telemetry"
)

// LinkRepositoryInterface defines the repository interface for provenance
// link persistence
type LinkRepositoryInterface interface {
	SourceLinkExists(ctx context.Context, originSourceID, translatedSourceID string) (bool, error)
	CreateSourceLink(ctx context.Context, link *domain.SourceTranslationLink) error
	ListSourceLinks(ctx context.Context, translatedSourceID string) ([]*domain.SourceTranslationLink, error)
	HasSourceLinks(ctx context.Context, translatedSourceID string) (bool, error)
	SegmentLinkExists(ctx context.Context, originID string, originTS time.Time, translatedID string, translatedTS time.Time) (bool, error)
	CreateSegmentLink(ctx context.Context, link *domain.SegmentTranslationLink) error
	ListSegmentLinksByTranslated(ctx context.Context, translatedID string, translatedTS time.Time) ([]*domain.SegmentTranslationLink, error)
	DeleteBySource(ctx context.Context, sourceID string) error
}

// ProvenanceLinker records the provenance graph. Links are created
// idempotently; a failed segment-link creation is logged and skipped
// because the translated content is already durably stored by the time
// links are written.
type ProvenanceLinker struct {
	linkRepo LinkRepositoryInterface
}

// NewProvenanceLinker creates a new ProvenanceLinker instance
func NewProvenanceLinker(linkRepo LinkRepositoryInterface) *ProvenanceLinker {
	return &ProvenanceLinker{linkRepo: linkRepo}
}

// LinkSources creates an origin->translated source edge if it does not
// already exist. Returns whether a new edge was created.
func (p *ProvenanceLinker) LinkSources(ctx context.Context, originSourceID, translatedSourceID string) (bool, error) {
	exists, err := p.linkRepo.SourceLinkExists(ctx, originSourceID, translatedSourceID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	err = p.linkRepo.CreateSourceLink(ctx, &domain.SourceTranslationLink{
		OriginSourceID:     originSourceID,
		TranslatedSourceID: translatedSourceID,
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Initialized reports whether any source link points at the translated
// source, i.e. whether multi-source translation was set up for it.
func (p *ProvenanceLinker) Initialized(ctx context.Context, translatedSourceID string) (bool, error) {
	return p.linkRepo.HasSourceLinks(ctx, translatedSourceID)
}

// LinkedOrigins returns the source links pointing at a translated source.
func (p *ProvenanceLinker) LinkedOrigins(ctx context.Context, translatedSourceID string) ([]*domain.SourceTranslationLink, error) {
	return p.linkRepo.ListSourceLinks(ctx, translatedSourceID)
}

// LinkSegments creates a segment provenance edge if the identical 4-tuple
// does not already exist. Returns whether a new edge was created.
func (p *ProvenanceLinker) LinkSegments(ctx context.Context, link *domain.SegmentTranslationLink) (bool, error) {
	exists, err := p.linkRepo.SegmentLinkExists(ctx,
		link.OriginSegmentID, link.OriginSegmentTimestamp,
		link.TranslatedSegmentID, link.TranslatedSegmentTimestamp)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	if err := p.linkRepo.CreateSegmentLink(ctx, link); err != nil {
		return false, err
	}
	return true, nil
}

// LinkSegmentBatch creates a batch of segment edges, logging and skipping
// individual failures. Returns the number of edges actually created.
func (p *ProvenanceLinker) LinkSegmentBatch(ctx context.Context, links []*domain.SegmentTranslationLink) int {
	created := 0
	for _, link := range links {
		ok, err := p.LinkSegments(ctx, link)
		if err != nil {
			log.Printf("provenance: failed to link segment %s -> %s: %v",
				link.OriginSegmentID, link.TranslatedSegmentID, err)
			telemetry.CaptureError(ctx, err)
			continue
		}
		if ok {
			created++
		}
	}
	return created
}

// SegmentProvenance returns the provenance edges of a translated segment
// version.
func (p *ProvenanceLinker) SegmentProvenance(ctx context.Context, translatedID string, translatedTS time.Time) ([]*domain.SegmentTranslationLink, error) {
	return p.linkRepo.ListSegmentLinksByTranslated(ctx, translatedID, translatedTS)
}
