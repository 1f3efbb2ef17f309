package repository

import (
	"context"
	"errors"
	"time"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SegmentRepository is the append-only versioned store for segments.
// Rows are keyed by (id, timestamp); Put never updates in place, and
// reads resolve the version with the maximum timestamp at or before the
// query bound.
type SegmentRepository struct {
	db dbtx
}

func NewSegmentRepository(pool *pgxpool.Pool) *SegmentRepository {
	return &SegmentRepository{db: pool}
}

func NewSegmentRepositoryWithTx(tx pgx.Tx) *SegmentRepository {
	return &SegmentRepository{db: tx}
}

const segmentColumns = `id, timestamp, source_id, "order", text, properties, created_by, origin_segment_id, origin_segment_timestamp`

// Put inserts a new version row. A duplicate (id, timestamp) returns
// domain.ErrSegmentVersionConflict; the caller retries with a refreshed
// clock.
func (r *SegmentRepository) Put(ctx context.Context, s *domain.Segment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO segments (id, timestamp, source_id, "order", text, properties, created_by, origin_segment_id, origin_segment_timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.Timestamp, s.SourceID, s.Order, s.Text, s.Properties, s.CreatedBy,
		nullableString(s.OriginSegmentID), s.OriginSegmentTimestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrSegmentVersionConflict
		}
		return err
	}
	return nil
}

// LatestAsOf returns the version of a segment with the maximum timestamp
// at or before the given bound. A nil bound returns the true latest.
func (r *SegmentRepository) LatestAsOf(ctx context.Context, id string, bound *time.Time) (*domain.Segment, error) {
	var row pgx.Row
	if bound != nil {
		row = r.db.QueryRow(ctx,
			`SELECT `+segmentColumns+` FROM segments
			 WHERE id = $1 AND timestamp <= $2
			 ORDER BY timestamp DESC LIMIT 1`,
			id, *bound,
		)
	} else {
		row = r.db.QueryRow(ctx,
			`SELECT `+segmentColumns+` FROM segments
			 WHERE id = $1
			 ORDER BY timestamp DESC LIMIT 1`,
			id,
		)
	}

	seg, err := scanSegment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSegmentNotFound
		}
		return nil, err
	}
	return seg, nil
}

// LatestBySource returns the live view of a source: for every order slot,
// the version with the maximum timestamp. Order is the external identity
// within a source, so the max-timestamp grouping runs per order and is
// joined back to fetch the full row.
func (r *SegmentRepository) LatestBySource(ctx context.Context, sourceID string) ([]*domain.Segment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.timestamp, s.source_id, s."order", s.text, s.properties, s.created_by, s.origin_segment_id, s.origin_segment_timestamp
		 FROM segments s
		 JOIN (
			SELECT "order", MAX(timestamp) AS max_timestamp
			FROM segments
			WHERE source_id = $1
			GROUP BY "order"
		 ) latest ON s."order" = latest."order" AND s.timestamp = latest.max_timestamp
		 WHERE s.source_id = $1
		 ORDER BY s."order"`,
		sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSegmentRows(rows)
}

// MaxOrder returns the highest live content order (> 0) in a source, or 0
// if the source has no content segments.
func (r *SegmentRepository) MaxOrder(ctx context.Context, sourceID string) (int, error) {
	var max int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX("order"), 0) FROM segments WHERE source_id = $1 AND "order" > 0`,
		sourceID,
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max, nil
}

// GetStorageSegment returns the live storage segment (order 0) of a
// source, or domain.ErrStorageSegmentNotFound.
func (r *SegmentRepository) GetStorageSegment(ctx context.Context, sourceID string) (*domain.Segment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+segmentColumns+` FROM segments
		 WHERE source_id = $1 AND "order" = 0
		 ORDER BY timestamp DESC LIMIT 1`,
		sourceID,
	)

	seg, err := scanSegment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrStorageSegmentNotFound
		}
		return nil, err
	}
	if !seg.IsStorage() {
		return nil, domain.ErrStorageSegmentNotFound
	}
	return seg, nil
}

// DeleteStorageSegments physically removes all storage-segment versions of
// a source. Storage segments are working state, not content rows, so this
// is the one place (besides the source-deletion cascade) where rows are
// deleted.
func (r *SegmentRepository) DeleteStorageSegments(ctx context.Context, sourceID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM segments WHERE source_id = $1 AND "order" = 0`,
		sourceID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListOrphanStorageSourceIDs returns the source ids that still hold
// storage segments but no longer participate in any translation as an
// origin or reference. Their working state is leftover and safe to
// discard.
func (r *SegmentRepository) ListOrphanStorageSourceIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT s.source_id
		 FROM segments s
		 WHERE s."order" = 0
		   AND NOT EXISTS (
			SELECT 1 FROM source_translation_links l
			WHERE l.origin_source_id = s.source_id
		 )`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteBySource removes all segment versions of a source. Used by the
// source-deletion cascade only.
func (r *SegmentRepository) DeleteBySource(ctx context.Context, sourceID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM segments WHERE source_id = $1`, sourceID)
	return err
}

// Versions returns every version of a segment ordered oldest first.
func (r *SegmentRepository) Versions(ctx context.Context, id string) ([]*domain.Segment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE id = $1 ORDER BY timestamp`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	segments, err := scanSegmentRows(rows)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, domain.ErrSegmentNotFound
	}
	return segments, nil
}

type segmentScanner interface {
	Scan(dest ...any) error
}

func scanSegment(row segmentScanner) (*domain.Segment, error) {
	var s domain.Segment
	var originID *string
	if err := row.Scan(&s.ID, &s.Timestamp, &s.SourceID, &s.Order, &s.Text, &s.Properties, &s.CreatedBy, &originID, &s.OriginSegmentTimestamp); err != nil {
		return nil, err
	}
	if originID != nil {
		s.OriginSegmentID = *originID
	}
	return &s, nil
}

func scanSegmentRows(rows pgx.Rows) ([]*domain.Segment, error) {
	var results []*domain.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, seg)
	}
	return results, rows.Err()
}
