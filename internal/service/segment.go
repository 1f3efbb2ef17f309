package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/telemetry"
)

// SegmentRepositoryInterface defines the repository interface for the
// append-only versioned segment store
type SegmentRepositoryInterface interface {
	Put(ctx context.Context, s *domain.Segment) error
	LatestAsOf(ctx context.Context, id string, bound *time.Time) (*domain.Segment, error)
	LatestBySource(ctx context.Context, sourceID string) ([]*domain.Segment, error)
	MaxOrder(ctx context.Context, sourceID string) (int, error)
	GetStorageSegment(ctx context.Context, sourceID string) (*domain.Segment, error)
	DeleteStorageSegments(ctx context.Context, sourceID string) (int64, error)
	DeleteBySource(ctx context.Context, sourceID string) error
	Versions(ctx context.Context, id string) ([]*domain.Segment, error)
}

// keyedMutex serializes critical sections per string key. Order allocation
// is read-max-then-insert, which is racy without it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// SegmentService handles business logic for versioned segments
type SegmentService struct {
	segmentRepo SegmentRepositoryInterface
	sourceRepo  SourceRepositoryInterface
	uuidGen     UUIDGenerator
	orderMu     keyedMutex
}

// NewSegmentService creates a new SegmentService instance
func NewSegmentService(segmentRepo SegmentRepositoryInterface, sourceRepo SourceRepositoryInterface) *SegmentService {
	return &SegmentService{
		segmentRepo: segmentRepo,
		sourceRepo:  sourceRepo,
		uuidGen:     &DefaultUUIDGenerator{},
	}
}

// NewSegmentServiceWithUUIDGen creates a new SegmentService with custom UUID generator (for testing)
func NewSegmentServiceWithUUIDGen(segmentRepo SegmentRepositoryInterface, sourceRepo SourceRepositoryInterface, uuidGen UUIDGenerator) *SegmentService {
	return &SegmentService{
		segmentRepo: segmentRepo,
		sourceRepo:  sourceRepo,
		uuidGen:     uuidGen,
	}
}

// LatestSegments returns the live view of a source: one segment per order,
// each at its maximum timestamp.
func (s *SegmentService) LatestSegments(ctx context.Context, sourceID string) ([]*domain.Segment, error) {
	ctx, span := telemetry.StartSpan(ctx, "SegmentService.LatestSegments", telemetry.SpanAttributes{
		SourceID:  sourceID,
		Operation: "list",
	})
	defer span.End()

	return s.segmentRepo.LatestBySource(ctx, sourceID)
}

// ContentSegments returns the live content segments of a source (order > 0).
func (s *SegmentService) ContentSegments(ctx context.Context, sourceID string) ([]*domain.Segment, error) {
	segments, err := s.LatestSegments(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	content := make([]*domain.Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.Order > domain.StorageSegmentOrder {
			content = append(content, seg)
		}
	}
	return content, nil
}

// SegmentAsOf returns the version of a segment live at the given bound, or
// the true latest for a nil bound.
func (s *SegmentService) SegmentAsOf(ctx context.Context, id string, bound *time.Time) (*domain.Segment, error) {
	return s.segmentRepo.LatestAsOf(ctx, id, bound)
}

// SegmentVersions returns the full version history of a segment.
func (s *SegmentService) SegmentVersions(ctx context.Context, id string) ([]*domain.Segment, error) {
	return s.segmentRepo.Versions(ctx, id)
}

// SegmentWrite describes one segment version to store. An empty ID means a
// brand-new segment; a set ID appends a new version of an existing one.
type SegmentWrite struct {
	ID         string
	Order      int
	Text       string
	Properties map[string]any
}

// SaveSegmentsInput represents the input for storing segment versions
type SaveSegmentsInput struct {
	SourceID string
	Writes   []SegmentWrite
	Actor    string
}

// SaveSegments stores one new version row per write, all sharing a single
// batch timestamp, and stamps the source's audit fields.
func (s *SegmentService) SaveSegments(ctx context.Context, input SaveSegmentsInput) ([]*domain.Segment, error) {
	ctx, span := telemetry.StartSpan(ctx, "SegmentService.SaveSegments", telemetry.SpanAttributes{
		SourceID:  input.SourceID,
		Operation: "save",
	})
	defer span.End()

	if _, err := s.sourceRepo.GetByID(ctx, input.SourceID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	segments := make([]*domain.Segment, 0, len(input.Writes))
	for _, w := range input.Writes {
		id := w.ID
		if id == "" {
			id = s.uuidGen.NewString()
		}
		seg := domain.NewSegment(id, input.SourceID, w.Order, w.Text, input.Actor, now)
		for k, v := range w.Properties {
			seg.Properties[k] = v
		}

		if err := domain.ValidateSegment(seg); err != nil {
			return nil, err
		}
		if err := s.putWithRetry(ctx, seg); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	if err := s.sourceRepo.Touch(ctx, input.SourceID, input.Actor, now); err != nil {
		return nil, err
	}

	return segments, nil
}

// PersistBatchInput represents one translated batch to append to a target
// source. Texts[i] pairs with Origins[i] when origins are given.
type PersistBatchInput struct {
	SourceID   string
	Texts      []string
	Origins    []*domain.Segment
	Properties map[string]any
	Actor      string
}

// PersistTranslatedBatch appends the batch as new segments at the next
// sequential orders (max existing order + 1, +2, ...) under a shared batch
// timestamp. Order allocation is serialized per target source.
func (s *SegmentService) PersistTranslatedBatch(ctx context.Context, input PersistBatchInput) ([]*domain.Segment, error) {
	ctx, span := telemetry.StartSpan(ctx, "SegmentService.PersistTranslatedBatch", telemetry.SpanAttributes{
		SourceID:  input.SourceID,
		Operation: "persist_batch",
	})
	defer span.End()

	if len(input.Texts) == 0 {
		return nil, nil
	}

	unlock := s.orderMu.lock(input.SourceID)
	defer unlock()

	maxOrder, err := s.segmentRepo.MaxOrder(ctx, input.SourceID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	segments := make([]*domain.Segment, 0, len(input.Texts))
	for i, text := range input.Texts {
		seg := domain.NewSegment(s.uuidGen.NewString(), input.SourceID, maxOrder+1+i, text, input.Actor, now)
		for k, v := range input.Properties {
			seg.Properties[k] = v
		}
		if i < len(input.Origins) && input.Origins[i] != nil {
			origin := input.Origins[i]
			seg.OriginSegmentID = origin.ID
			ts := origin.Timestamp
			seg.OriginSegmentTimestamp = &ts
			seg.Properties[domain.PropOriginOrder] = origin.Order
		}

		if err := s.putWithRetry(ctx, seg); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	if err := s.sourceRepo.Touch(ctx, input.SourceID, input.Actor, now); err != nil {
		return nil, err
	}

	return segments, nil
}

// StorageSegment returns the live storage segment of a source.
func (s *SegmentService) StorageSegment(ctx context.Context, sourceID string) (*domain.Segment, error) {
	return s.segmentRepo.GetStorageSegment(ctx, sourceID)
}

// EnsureStorageSegment returns the existing storage segment of a source,
// or creates one holding text. An existing segment wins: it carries the
// not-yet-consumed remainder of earlier batches.
func (s *SegmentService) EnsureStorageSegment(ctx context.Context, sourceID, text, actor string) (*domain.Segment, error) {
	existing, err := s.segmentRepo.GetStorageSegment(ctx, sourceID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrStorageSegmentNotFound) {
		return nil, err
	}

	seg := domain.NewStorageSegment(s.uuidGen.NewString(), sourceID, text, actor, time.Now().UTC())
	if err := s.putWithRetry(ctx, seg); err != nil {
		return nil, err
	}
	return seg, nil
}

// WriteStorageRemainder records the unconsumed remainder of a reference
// text as a new storage-segment version. An empty remainder deletes the
// storage segment instead of writing an empty one.
func (s *SegmentService) WriteStorageRemainder(ctx context.Context, sourceID, remainder, actor string) error {
	if strings.TrimSpace(remainder) == "" {
		_, err := s.segmentRepo.DeleteStorageSegments(ctx, sourceID)
		return err
	}

	existing, err := s.segmentRepo.GetStorageSegment(ctx, sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrStorageSegmentNotFound) {
			seg := domain.NewStorageSegment(s.uuidGen.NewString(), sourceID, remainder, actor, time.Now().UTC())
			return s.putWithRetry(ctx, seg)
		}
		return err
	}

	version := domain.NewStorageSegment(existing.ID, sourceID, remainder, actor, time.Now().UTC())
	return s.putWithRetry(ctx, version)
}

// putWithRetry inserts a version row, retrying once with a refreshed clock
// on an (id, timestamp) collision.
func (s *SegmentService) putWithRetry(ctx context.Context, seg *domain.Segment) error {
	err := s.segmentRepo.Put(ctx, seg)
	if !errors.Is(err, domain.ErrSegmentVersionConflict) {
		return err
	}

	refreshed := time.Now().UTC()
	if !refreshed.After(seg.Timestamp) {
		refreshed = seg.Timestamp.Add(time.Microsecond)
	}
	seg.Timestamp = refreshed
	return s.segmentRepo.Put(ctx, seg)
}
