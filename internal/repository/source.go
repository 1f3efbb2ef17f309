package repository

import (
	"context"
	"errors"
	"time"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/pagination"
	"github.com/glossa-works/glossa/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SourceRepository struct {
	db dbtx
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: pool}
}

func NewSourceRepositoryWithTx(tx pgx.Tx) *SourceRepository {
	return &SourceRepository{db: tx}
}

const sourceColumns = `id, name, language, type, original_source_id, properties, created_by, created_at, modified_by, modified_at`

func (r *SourceRepository) Create(ctx context.Context, s *domain.Source) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sources (id, name, language, type, original_source_id, properties, created_by, created_at, modified_by, modified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.Name, s.Language, s.Type, nullableString(s.OriginalSourceID), s.Properties,
		s.CreatedBy, s.CreatedAt, s.ModifiedBy, s.ModifiedAt,
	)
	return err
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)

	src, err := scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}
	return src, nil
}

func (r *SourceRepository) List(ctx context.Context) ([]*domain.Source, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY modified_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSourceRows(rows)
}

func (r *SourceRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.SourcePageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+sourceColumns+` FROM sources
			 WHERE (modified_at, id) < ($1, $2)
			 ORDER BY modified_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+sourceColumns+` FROM sources
			 ORDER BY modified_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanSourceRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.ModifiedAt)
	}

	return &service.SourcePageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListMeta lists sources with live-segment counts and the timestamp of the
// newest segment version. Segments are versioned, so counts group one
// segment per order.
func (r *SourceRepository) ListMeta(ctx context.Context) ([]*domain.SourceMeta, error) {
	rows, err := r.db.Query(ctx,
		`SELECT src.id, src.name, src.language, src.type, src.original_source_id, src.properties,
		        src.created_by, src.created_at, src.modified_by, src.modified_at,
		        COALESCE(seg.count, 0), seg.last_modified
		 FROM sources src
		 LEFT JOIN (
			SELECT source_id, COUNT(DISTINCT "order") AS count, MAX(timestamp) AS last_modified
			FROM segments
			WHERE "order" > 0
			GROUP BY source_id
		 ) seg ON seg.source_id = src.id
		 ORDER BY src.modified_at DESC, src.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.SourceMeta
	for rows.Next() {
		var m domain.SourceMeta
		var originalID *string
		var lastModified *time.Time
		if err := rows.Scan(&m.ID, &m.Name, &m.Language, &m.Type, &originalID, &m.Properties,
			&m.CreatedBy, &m.CreatedAt, &m.ModifiedBy, &m.ModifiedAt,
			&m.SegmentCount, &lastModified); err != nil {
			return nil, err
		}
		if originalID != nil {
			m.OriginalSourceID = *originalID
		}
		m.LastModified = lastModified
		results = append(results, &m)
	}
	return results, rows.Err()
}

func (r *SourceRepository) Update(ctx context.Context, s *domain.Source) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE sources SET name = $1, language = $2, type = $3, original_source_id = $4,
		        properties = $5, modified_by = $6, modified_at = $7
		 WHERE id = $8`,
		s.Name, s.Language, s.Type, nullableString(s.OriginalSourceID), s.Properties,
		s.ModifiedBy, s.ModifiedAt, s.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

// Touch stamps the audit fields after segment writes without changing any
// other metadata.
func (r *SourceRepository) Touch(ctx context.Context, id, actor string, at time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE sources SET modified_by = $1, modified_at = $2 WHERE id = $3`,
		actor, at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

func (r *SourceRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

func scanSource(row segmentScanner) (*domain.Source, error) {
	var s domain.Source
	var originalID *string
	if err := row.Scan(&s.ID, &s.Name, &s.Language, &s.Type, &originalID, &s.Properties,
		&s.CreatedBy, &s.CreatedAt, &s.ModifiedBy, &s.ModifiedAt); err != nil {
		return nil, err
	}
	if originalID != nil {
		s.OriginalSourceID = *originalID
	}
	return &s, nil
}

func scanSourceRows(rows pgx.Rows) ([]*domain.Source, error) {
	var results []*domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, src)
	}
	return results, rows.Err()
}
