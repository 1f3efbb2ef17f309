//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linkFixture struct {
	sourceRepo  *SourceRepository
	segmentRepo *SegmentRepository
	linkRepo    *LinkRepository

	origin     *domain.Source
	translated *domain.Source
	originSeg  *domain.Segment
	transSeg   *domain.Segment
}

func newLinkFixture(ctx context.Context, t *testing.T, sourceRepo *SourceRepository, segmentRepo *SegmentRepository, linkRepo *LinkRepository) *linkFixture {
	base := time.Now().UTC().Truncate(time.Microsecond)

	origin := domain.NewSource(uuid.NewString(), "Origin", domain.LanguageHebrew, domain.SourceTypeBook, "tester", base)
	require.NoError(t, sourceRepo.Create(ctx, origin))

	translated := domain.NewSource(uuid.NewString(), "Translation", domain.LanguageEnglish, domain.SourceTypeBook, "tester", base)
	translated.OriginalSourceID = origin.ID
	require.NoError(t, sourceRepo.Create(ctx, translated))

	originSeg := domain.NewSegment(uuid.NewString(), origin.ID, 1, "origin text", "tester", base)
	require.NoError(t, segmentRepo.Put(ctx, originSeg))

	transSeg := domain.NewSegment(uuid.NewString(), translated.ID, 1, "translated text", "tester", base.Add(time.Second))
	require.NoError(t, segmentRepo.Put(ctx, transSeg))

	return &linkFixture{
		sourceRepo:  sourceRepo,
		segmentRepo: segmentRepo,
		linkRepo:    linkRepo,
		origin:      origin,
		translated:  translated,
		originSeg:   originSeg,
		transSeg:    transSeg,
	}
}

func TestLinkRepository_SourceLinks(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sourceRepo := NewSourceRepository(pool)
	segmentRepo := NewSegmentRepository(pool)
	linkRepo := NewLinkRepository(pool)

	f := newLinkFixture(ctx, t, sourceRepo, segmentRepo, linkRepo)

	exists, err := linkRepo.SourceLinkExists(ctx, f.origin.ID, f.translated.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	hasLinks, err := linkRepo.HasSourceLinks(ctx, f.translated.ID)
	require.NoError(t, err)
	assert.False(t, hasLinks)

	require.NoError(t, linkRepo.CreateSourceLink(ctx, &domain.SourceTranslationLink{
		OriginSourceID:     f.origin.ID,
		TranslatedSourceID: f.translated.ID,
		CreatedAt:          time.Now().UTC().Truncate(time.Microsecond),
	}))

	exists, err = linkRepo.SourceLinkExists(ctx, f.origin.ID, f.translated.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	hasLinks, err = linkRepo.HasSourceLinks(ctx, f.translated.ID)
	require.NoError(t, err)
	assert.True(t, hasLinks)

	links, err := linkRepo.ListSourceLinks(ctx, f.translated.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, f.origin.ID, links[0].OriginSourceID)
}

func TestLinkRepository_SegmentLinks(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sourceRepo := NewSourceRepository(pool)
	segmentRepo := NewSegmentRepository(pool)
	linkRepo := NewLinkRepository(pool)

	f := newLinkFixture(ctx, t, sourceRepo, segmentRepo, linkRepo)

	exists, err := linkRepo.SegmentLinkExists(ctx, f.originSeg.ID, f.originSeg.Timestamp, f.transSeg.ID, f.transSeg.Timestamp)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, linkRepo.CreateSegmentLink(ctx, &domain.SegmentTranslationLink{
		OriginSegmentID:            f.originSeg.ID,
		OriginSegmentTimestamp:     f.originSeg.Timestamp,
		TranslatedSegmentID:        f.transSeg.ID,
		TranslatedSegmentTimestamp: f.transSeg.Timestamp,
		CreatedAt:                  time.Now().UTC().Truncate(time.Microsecond),
	}))

	exists, err = linkRepo.SegmentLinkExists(ctx, f.originSeg.ID, f.originSeg.Timestamp, f.transSeg.ID, f.transSeg.Timestamp)
	require.NoError(t, err)
	assert.True(t, exists)

	links, err := linkRepo.ListSegmentLinksByTranslated(ctx, f.transSeg.ID, f.transSeg.Timestamp)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, f.originSeg.ID, links[0].OriginSegmentID)
	assert.Empty(t, links[0].AlignedText)
	assert.Empty(t, links[0].AlignedLanguage)
}

func TestLinkRepository_SegmentLink_AlignedAnnotation(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sourceRepo := NewSourceRepository(pool)
	segmentRepo := NewSegmentRepository(pool)
	linkRepo := NewLinkRepository(pool)

	f := newLinkFixture(ctx, t, sourceRepo, segmentRepo, linkRepo)

	// Reference edges carry the aligned rendition on the link itself.
	require.NoError(t, linkRepo.CreateSegmentLink(ctx, &domain.SegmentTranslationLink{
		OriginSegmentID:            f.originSeg.ID,
		OriginSegmentTimestamp:     f.originSeg.Timestamp,
		TranslatedSegmentID:        f.transSeg.ID,
		TranslatedSegmentTimestamp: f.transSeg.Timestamp,
		AlignedText:                "בראשית ברא",
		AlignedLanguage:            domain.LanguageHebrew,
		CreatedAt:                  time.Now().UTC().Truncate(time.Microsecond),
	}))

	links, err := linkRepo.ListSegmentLinksByTranslated(ctx, f.transSeg.ID, f.transSeg.Timestamp)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "בראשית ברא", links[0].AlignedText)
	assert.Equal(t, domain.LanguageHebrew, links[0].AlignedLanguage)
}

func TestLinkRepository_AnnotationSurvivesStorageCleanup(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sourceRepo := NewSourceRepository(pool)
	segmentRepo := NewSegmentRepository(pool)
	linkRepo := NewLinkRepository(pool)

	f := newLinkFixture(ctx, t, sourceRepo, segmentRepo, linkRepo)

	now := time.Now().UTC().Truncate(time.Microsecond)
	storageSeg := domain.NewStorageSegment(uuid.NewString(), f.origin.ID, "בראשית ברא אלהים", "tester", now)
	require.NoError(t, segmentRepo.Put(ctx, storageSeg))

	// Annotation anchored to the storage-segment version, as written
	// during a multi-source batch.
	require.NoError(t, linkRepo.CreateSegmentLink(ctx, &domain.SegmentTranslationLink{
		OriginSegmentID:            storageSeg.ID,
		OriginSegmentTimestamp:     storageSeg.Timestamp,
		TranslatedSegmentID:        f.transSeg.ID,
		TranslatedSegmentTimestamp: f.transSeg.Timestamp,
		AlignedText:                "בראשית ברא",
		AlignedLanguage:            domain.LanguageHebrew,
		CreatedAt:                  now,
	}))

	// Reference fully consumed: the storage rows go away, the
	// annotations must not.
	deleted, err := segmentRepo.DeleteStorageSegments(ctx, f.origin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	links, err := linkRepo.ListSegmentLinksByTranslated(ctx, f.transSeg.ID, f.transSeg.Timestamp)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "בראשית ברא", links[0].AlignedText)
	assert.Equal(t, domain.LanguageHebrew, links[0].AlignedLanguage)
}

func TestLinkRepository_DeleteBySource(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sourceRepo := NewSourceRepository(pool)
	segmentRepo := NewSegmentRepository(pool)
	linkRepo := NewLinkRepository(pool)

	f := newLinkFixture(ctx, t, sourceRepo, segmentRepo, linkRepo)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, linkRepo.CreateSourceLink(ctx, &domain.SourceTranslationLink{
		OriginSourceID:     f.origin.ID,
		TranslatedSourceID: f.translated.ID,
		CreatedAt:          now,
	}))
	require.NoError(t, linkRepo.CreateSegmentLink(ctx, &domain.SegmentTranslationLink{
		OriginSegmentID:            f.originSeg.ID,
		OriginSegmentTimestamp:     f.originSeg.Timestamp,
		TranslatedSegmentID:        f.transSeg.ID,
		TranslatedSegmentTimestamp: f.transSeg.Timestamp,
		CreatedAt:                  now,
	}))

	require.NoError(t, linkRepo.DeleteBySource(ctx, f.origin.ID))

	exists, err := linkRepo.SourceLinkExists(ctx, f.origin.ID, f.translated.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = linkRepo.SegmentLinkExists(ctx, f.originSeg.ID, f.originSeg.Timestamp, f.transSeg.ID, f.transSeg.Timestamp)
	require.NoError(t, err)
	assert.False(t, exists)
}
