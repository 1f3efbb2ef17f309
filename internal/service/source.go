package service

import (
	"context"
	"time"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/pagination"
	"github.com/glossa-works/glossa/internal/telemetry"
	"github.com/google/uuid"
)

// SourceRepositoryInterface defines the repository interface for source persistence
type SourceRepositoryInterface interface {
	Create(ctx context.Context, s *domain.Source) error
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	List(ctx context.Context) ([]*domain.Source, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*SourcePageResult, error)
	ListMeta(ctx context.Context) ([]*domain.SourceMeta, error)
	Update(ctx context.Context, s *domain.Source) error
	Touch(ctx context.Context, id, actor string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type SourcePageResult struct {
	Items      []*domain.Source
	NextCursor string
	HasMore    bool
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// SourceService handles business logic for sources
type SourceService struct {
	sourceRepo SourceRepositoryInterface
	txRunner   TxRunner
	uuidGen    UUIDGenerator
}

// NewSourceService creates a new SourceService instance
func NewSourceService(sourceRepo SourceRepositoryInterface, txRunner TxRunner) *SourceService {
	return &SourceService{
		sourceRepo: sourceRepo,
		txRunner:   txRunner,
		uuidGen:    &DefaultUUIDGenerator{},
	}
}

// NewSourceServiceWithUUIDGen creates a new SourceService with custom UUID generator (for testing)
func NewSourceServiceWithUUIDGen(sourceRepo SourceRepositoryInterface, txRunner TxRunner, uuidGen UUIDGenerator) *SourceService {
	return &SourceService{
		sourceRepo: sourceRepo,
		txRunner:   txRunner,
		uuidGen:    uuidGen,
	}
}

// CreateSourceInput represents the input for creating a source
type CreateSourceInput struct {
	Name             string
	Language         domain.Language
	Type             domain.SourceType
	OriginalSourceID string
	Properties       map[string]any
	Actor            string
}

type ListSourcesInput struct {
	Cursor string
	Limit  int
}

type ListSourcesOutput struct {
	Items   []*domain.Source
	Cursor  string
	HasMore bool
}

// Create creates a new source
func (s *SourceService) Create(ctx context.Context, input CreateSourceInput) (*domain.Source, error) {
	ctx, span := telemetry.StartSpan(ctx, "SourceService.Create", telemetry.SpanAttributes{
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	properties := input.Properties
	if properties == nil {
		properties = map[string]any{}
	}

	source := &domain.Source{
		ID:               s.uuidGen.NewString(),
		Name:             input.Name,
		Language:         input.Language,
		Type:             input.Type,
		OriginalSourceID: input.OriginalSourceID,
		Properties:       properties,
		CreatedBy:        input.Actor,
		CreatedAt:        now,
		ModifiedBy:       input.Actor,
		ModifiedAt:       now,
	}

	if err := domain.ValidateSource(source); err != nil {
		return nil, err
	}

	if err := s.sourceRepo.Create(ctx, source); err != nil {
		return nil, err
	}

	return source, nil
}

// GetByID retrieves a source by ID
func (s *SourceService) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	ctx, span := telemetry.StartSpan(ctx, "SourceService.GetByID", telemetry.SpanAttributes{
		SourceID:  id,
		Operation: "get",
	})
	defer span.End()

	return s.sourceRepo.GetByID(ctx, id)
}

// List retrieves all sources
func (s *SourceService) List(ctx context.Context) ([]*domain.Source, error) {
	return s.sourceRepo.List(ctx)
}

// ListMeta retrieves all sources with live-segment counts
func (s *SourceService) ListMeta(ctx context.Context) ([]*domain.SourceMeta, error) {
	return s.sourceRepo.ListMeta(ctx)
}

func (s *SourceService) ListSources(ctx context.Context, input ListSourcesInput) (*ListSourcesOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "SourceService.ListSources", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.sourceRepo.ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListSourcesOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// Update applies a patch to a source's metadata. Sources are mutated in
// place, unlike segments; only the fields set in the patch change.
func (s *SourceService) Update(ctx context.Context, id string, patch domain.SourcePatch, actor string) (*domain.Source, error) {
	ctx, span := telemetry.StartSpan(ctx, "SourceService.Update", telemetry.SpanAttributes{
		SourceID:  id,
		Operation: "update",
	})
	defer span.End()

	source, err := s.sourceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := domain.ApplySourcePatch(*source, patch, actor, time.Now().UTC())

	if err := domain.ValidateSource(&updated); err != nil {
		return nil, err
	}

	if err := s.sourceRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	return &updated, nil
}

// Delete removes a source and cascades to its segments and provenance
// links in a single transaction.
func (s *SourceService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "SourceService.Delete", telemetry.SpanAttributes{
		SourceID:  id,
		Operation: "delete",
	})
	defer span.End()

	if _, err := s.sourceRepo.GetByID(ctx, id); err != nil {
		return err
	}

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Links().DeleteBySource(ctx, id); err != nil {
			return err
		}
		if err := repos.Segments().DeleteBySource(ctx, id); err != nil {
			return err
		}
		return repos.Sources().Delete(ctx, id)
	})
}
