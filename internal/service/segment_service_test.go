package service

import (
	"context"
	"testing"
	"time"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSegmentFixture() (*SegmentService, *fakeSegmentRepo, *fakeSourceRepo) {
	segRepo := &fakeSegmentRepo{}
	srcRepo := newFakeSourceRepo(testSource("src", domain.LanguageEnglish))
	return NewSegmentServiceWithUUIDGen(segRepo, srcRepo, &seqUUIDGenerator{}), segRepo, srcRepo
}

func TestSaveSegmentsSharesBatchTimestamp(t *testing.T) {
	svc, _, srcRepo := newSegmentFixture()
	ctx := context.Background()

	segments, err := svc.SaveSegments(ctx, SaveSegmentsInput{
		SourceID: "src",
		Writes: []SegmentWrite{
			{Order: 1, Text: "first"},
			{Order: 2, Text: "second"},
		},
		Actor: "tester",
	})
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, segments[0].Timestamp, segments[1].Timestamp)
	assert.Equal(t, "u1", segments[0].ID)
	assert.Equal(t, "u2", segments[1].ID)

	// Segment writes stamp the source's audit fields.
	src, err := srcRepo.GetByID(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, segments[0].Timestamp, src.ModifiedAt)
}

func TestSaveSegmentsNewVersionKeepsID(t *testing.T) {
	svc, segRepo, _ := newSegmentFixture()
	ctx := context.Background()

	seedSegments(segRepo, "src", "original text")

	_, err := svc.SaveSegments(ctx, SaveSegmentsInput{
		SourceID: "src",
		Writes:   []SegmentWrite{{ID: "src-seg-1", Order: 1, Text: "edited text"}},
		Actor:    "editor",
	})
	require.NoError(t, err)

	versions, err := svc.SegmentVersions(ctx, "src-seg-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "original text", versions[0].Text)
	assert.Equal(t, "edited text", versions[1].Text)

	live, err := svc.SegmentAsOf(ctx, "src-seg-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "edited text", live.Text)

	// As-of resolution returns the version live at the bound.
	bound := versions[0].Timestamp
	old, err := svc.SegmentAsOf(ctx, "src-seg-1", &bound)
	require.NoError(t, err)
	assert.Equal(t, "original text", old.Text)
}

func TestPersistTranslatedBatchAllocatesNextOrders(t *testing.T) {
	svc, segRepo, _ := newSegmentFixture()
	ctx := context.Background()

	seedSegments(segRepo, "src", "one", "two", "three")

	origins := seedSegments(segRepo, "other", "a", "b")
	segments, err := svc.PersistTranslatedBatch(ctx, PersistBatchInput{
		SourceID: "src",
		Texts:    []string{"four", "five"},
		Origins:  origins,
		Actor:    "tester",
	})
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, 4, segments[0].Order)
	assert.Equal(t, 5, segments[1].Order)
	assert.Equal(t, origins[0].ID, segments[0].OriginSegmentID)
	require.NotNil(t, segments[0].OriginSegmentTimestamp)
	assert.True(t, origins[0].Timestamp.Equal(*segments[0].OriginSegmentTimestamp))
}

func TestPersistTranslatedBatchEmptyInput(t *testing.T) {
	svc, _, _ := newSegmentFixture()

	segments, err := svc.PersistTranslatedBatch(context.Background(), PersistBatchInput{SourceID: "src"})
	require.NoError(t, err)
	assert.Nil(t, segments)
}

func TestPutWithRetryRefreshesClock(t *testing.T) {
	svc, segRepo, _ := newSegmentFixture()
	ctx := context.Background()

	ts := time.Now().UTC()
	first := domain.NewSegment("dup", "src", 1, "first", "tester", ts)
	require.NoError(t, segRepo.Put(ctx, first))

	// Same (id, timestamp): the write must land at a refreshed timestamp
	// instead of failing.
	second := domain.NewSegment("dup", "src", 1, "second", "tester", ts)
	require.NoError(t, svc.putWithRetry(ctx, second))
	assert.True(t, second.Timestamp.After(ts))

	live, err := svc.SegmentAsOf(ctx, "dup", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", live.Text)
}

func TestWriteStorageRemainder(t *testing.T) {
	svc, _, _ := newSegmentFixture()
	ctx := context.Background()

	seg, err := svc.EnsureStorageSegment(ctx, "src", "full reference text", "tester")
	require.NoError(t, err)
	assert.True(t, seg.IsStorage())

	// Re-ensuring reuses the existing segment.
	again, err := svc.EnsureStorageSegment(ctx, "src", "different text", "tester")
	require.NoError(t, err)
	assert.Equal(t, seg.ID, again.ID)
	assert.Equal(t, "full reference text", again.Text)

	// A remainder writes a new version of the same segment.
	require.NoError(t, svc.WriteStorageRemainder(ctx, "src", "reference text", "tester"))
	current, err := svc.StorageSegment(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, seg.ID, current.ID)
	assert.Equal(t, "reference text", current.Text)

	// An empty remainder deletes the storage segment.
	require.NoError(t, svc.WriteStorageRemainder(ctx, "src", "  ", "tester"))
	_, err = svc.StorageSegment(ctx, "src")
	assert.ErrorIs(t, err, domain.ErrStorageSegmentNotFound)
}

func TestContentSegmentsExcludesStorage(t *testing.T) {
	svc, segRepo, _ := newSegmentFixture()
	ctx := context.Background()

	seedSegments(segRepo, "src", "one", "two")
	_, err := svc.EnsureStorageSegment(ctx, "src", "working state", "tester")
	require.NoError(t, err)

	content, err := svc.ContentSegments(ctx, "src")
	require.NoError(t, err)
	require.Len(t, content, 2)
	for _, seg := range content {
		assert.Greater(t, seg.Order, 0)
	}

	all, err := svc.LatestSegments(ctx, "src")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
