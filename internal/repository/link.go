package repository

import (
	"context"
	"time"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LinkRepository persists the provenance graph: source-level and
// segment-level translation links. Links are created once and never
// updated; the only delete path is the source-deletion cascade.
type LinkRepository struct {
	db dbtx
}

func NewLinkRepository(pool *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{db: pool}
}

func NewLinkRepositoryWithTx(tx pgx.Tx) *LinkRepository {
	return &LinkRepository{db: tx}
}

func (r *LinkRepository) SourceLinkExists(ctx context.Context, originSourceID, translatedSourceID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM source_translation_links
			WHERE origin_source_id = $1 AND translated_source_id = $2
		 )`,
		originSourceID, translatedSourceID,
	).Scan(&exists)
	return exists, err
}

func (r *LinkRepository) CreateSourceLink(ctx context.Context, link *domain.SourceTranslationLink) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO source_translation_links (origin_source_id, translated_source_id, created_at)
		 VALUES ($1, $2, $3)`,
		link.OriginSourceID, link.TranslatedSourceID, link.CreatedAt,
	)
	return err
}

// ListSourceLinks returns all links pointing at a translated source.
func (r *LinkRepository) ListSourceLinks(ctx context.Context, translatedSourceID string) ([]*domain.SourceTranslationLink, error) {
	rows, err := r.db.Query(ctx,
		`SELECT origin_source_id, translated_source_id, created_at
		 FROM source_translation_links
		 WHERE translated_source_id = $1
		 ORDER BY created_at`,
		translatedSourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*domain.SourceTranslationLink
	for rows.Next() {
		var l domain.SourceTranslationLink
		if err := rows.Scan(&l.OriginSourceID, &l.TranslatedSourceID, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, &l)
	}
	return links, rows.Err()
}

// HasSourceLinks reports whether any link points at the translated source,
// i.e. whether multi-source translation was initialized for it.
func (r *LinkRepository) HasSourceLinks(ctx context.Context, translatedSourceID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM source_translation_links WHERE translated_source_id = $1
		 )`,
		translatedSourceID,
	).Scan(&exists)
	return exists, err
}

func (r *LinkRepository) SegmentLinkExists(ctx context.Context, originID string, originTS time.Time, translatedID string, translatedTS time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM segment_translation_links
			WHERE origin_segment_id = $1 AND origin_segment_timestamp = $2
			  AND translated_segment_id = $3 AND translated_segment_timestamp = $4
		 )`,
		originID, originTS, translatedID, translatedTS,
	).Scan(&exists)
	return exists, err
}

func (r *LinkRepository) CreateSegmentLink(ctx context.Context, link *domain.SegmentTranslationLink) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO segment_translation_links
		 (origin_segment_id, origin_segment_timestamp, translated_segment_id, translated_segment_timestamp, aligned_text, aligned_language, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		link.OriginSegmentID, link.OriginSegmentTimestamp,
		link.TranslatedSegmentID, link.TranslatedSegmentTimestamp,
		nullableString(link.AlignedText), nullableString(string(link.AlignedLanguage)), link.CreatedAt,
	)
	return err
}

// ListSegmentLinksByTranslated returns all provenance edges pointing at a
// translated segment version.
func (r *LinkRepository) ListSegmentLinksByTranslated(ctx context.Context, translatedID string, translatedTS time.Time) ([]*domain.SegmentTranslationLink, error) {
	rows, err := r.db.Query(ctx,
		`SELECT origin_segment_id, origin_segment_timestamp, translated_segment_id, translated_segment_timestamp, aligned_text, aligned_language, created_at
		 FROM segment_translation_links
		 WHERE translated_segment_id = $1 AND translated_segment_timestamp = $2
		 ORDER BY created_at`,
		translatedID, translatedTS,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSegmentLinkRows(rows)
}

// DeleteBySource removes every link that touches a source being deleted:
// source links on either side and segment links whose origin or
// translated segment belongs to the source.
func (r *LinkRepository) DeleteBySource(ctx context.Context, sourceID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM source_translation_links
		 WHERE origin_source_id = $1 OR translated_source_id = $1`,
		sourceID,
	)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`DELETE FROM segment_translation_links l
		 USING segments s
		 WHERE s.source_id = $1
		   AND ((l.origin_segment_id = s.id AND l.origin_segment_timestamp = s.timestamp)
		     OR (l.translated_segment_id = s.id AND l.translated_segment_timestamp = s.timestamp))`,
		sourceID,
	)
	return err
}

func scanSegmentLinkRows(rows pgx.Rows) ([]*domain.SegmentTranslationLink, error) {
	var links []*domain.SegmentTranslationLink
	for rows.Next() {
		var l domain.SegmentTranslationLink
		var alignedText, alignedLanguage *string
		if err := rows.Scan(&l.OriginSegmentID, &l.OriginSegmentTimestamp,
			&l.TranslatedSegmentID, &l.TranslatedSegmentTimestamp,
			&alignedText, &alignedLanguage, &l.CreatedAt); err != nil {
			return nil, err
		}
		if alignedText != nil {
			l.AlignedText = *alignedText
		}
		if alignedLanguage != nil {
			l.AlignedLanguage = domain.Language(*alignedLanguage)
		}
		links = append(links, &l)
	}
	return links, rows.Err()
}
