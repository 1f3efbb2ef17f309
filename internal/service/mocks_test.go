package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/llm"
	"github.com/glossa-works/glossa/internal/pagination"
)

// wordTokenizer counts one token per whitespace-separated word, which
// keeps budget arithmetic in tests easy to reason about.
type wordTokenizer struct{}

func (wordTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	return make([]int, len(words))
}

// seqUUIDGenerator returns "u1", "u2", ... deterministically.
type seqUUIDGenerator struct {
	n int
}

func (g *seqUUIDGenerator) NewString() string {
	g.n++
	return fmt.Sprintf("u%d", g.n)
}

// fakeSegmentRepo is an in-memory append-only segment store mirroring the
// composite-key semantics of the real repository.
type fakeSegmentRepo struct {
	rows   []*domain.Segment
	putErr error
}

func (f *fakeSegmentRepo) Put(_ context.Context, s *domain.Segment) error {
	if f.putErr != nil {
		return f.putErr
	}
	for _, r := range f.rows {
		if r.ID == s.ID && r.Timestamp.Equal(s.Timestamp) {
			return domain.ErrSegmentVersionConflict
		}
	}
	cp := *s
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeSegmentRepo) LatestAsOf(_ context.Context, id string, bound *time.Time) (*domain.Segment, error) {
	var best *domain.Segment
	for _, r := range f.rows {
		if r.ID != id {
			continue
		}
		if bound != nil && r.Timestamp.After(*bound) {
			continue
		}
		if best == nil || r.Timestamp.After(best.Timestamp) {
			best = r
		}
	}
	if best == nil {
		return nil, domain.ErrSegmentNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeSegmentRepo) LatestBySource(_ context.Context, sourceID string) ([]*domain.Segment, error) {
	byOrder := map[int]*domain.Segment{}
	for _, r := range f.rows {
		if r.SourceID != sourceID {
			continue
		}
		cur, ok := byOrder[r.Order]
		if !ok || r.Timestamp.After(cur.Timestamp) {
			byOrder[r.Order] = r
		}
	}

	orders := make([]int, 0, len(byOrder))
	for o := range byOrder {
		orders = append(orders, o)
	}
	sort.Ints(orders)

	out := make([]*domain.Segment, 0, len(orders))
	for _, o := range orders {
		cp := *byOrder[o]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeSegmentRepo) MaxOrder(_ context.Context, sourceID string) (int, error) {
	max := 0
	for _, r := range f.rows {
		if r.SourceID == sourceID && r.Order > max {
			max = r.Order
		}
	}
	return max, nil
}

func (f *fakeSegmentRepo) GetStorageSegment(ctx context.Context, sourceID string) (*domain.Segment, error) {
	segments, _ := f.LatestBySource(ctx, sourceID)
	for _, seg := range segments {
		if seg.IsStorage() {
			return seg, nil
		}
	}
	return nil, domain.ErrStorageSegmentNotFound
}

func (f *fakeSegmentRepo) DeleteStorageSegments(_ context.Context, sourceID string) (int64, error) {
	kept := f.rows[:0]
	var deleted int64
	for _, r := range f.rows {
		if r.SourceID == sourceID && r.Order == domain.StorageSegmentOrder {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return deleted, nil
}

func (f *fakeSegmentRepo) DeleteBySource(_ context.Context, sourceID string) error {
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.SourceID != sourceID {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeSegmentRepo) Versions(_ context.Context, id string) ([]*domain.Segment, error) {
	var out []*domain.Segment
	for _, r := range f.rows {
		if r.ID == id {
			cp := *r
			out = append(out, &cp)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrSegmentNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// fakeSourceRepo is an in-memory source store.
type fakeSourceRepo struct {
	sources map[string]*domain.Source
}

func newFakeSourceRepo(sources ...*domain.Source) *fakeSourceRepo {
	m := make(map[string]*domain.Source, len(sources))
	for _, s := range sources {
		m[s.ID] = s
	}
	return &fakeSourceRepo{sources: m}
}

func (f *fakeSourceRepo) Create(_ context.Context, s *domain.Source) error {
	f.sources[s.ID] = s
	return nil
}

func (f *fakeSourceRepo) GetByID(_ context.Context, id string) (*domain.Source, error) {
	s, ok := f.sources[id]
	if !ok {
		return nil, domain.ErrSourceNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSourceRepo) List(_ context.Context) ([]*domain.Source, error) {
	out := make([]*domain.Source, 0, len(f.sources))
	for _, s := range f.sources {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSourceRepo) ListWithCursor(_ context.Context, _ *pagination.Cursor, _ int) (*SourcePageResult, error) {
	items, _ := f.List(context.Background())
	return &SourcePageResult{Items: items}, nil
}

func (f *fakeSourceRepo) ListMeta(_ context.Context) ([]*domain.SourceMeta, error) {
	return nil, nil
}

func (f *fakeSourceRepo) Update(_ context.Context, s *domain.Source) error {
	if _, ok := f.sources[s.ID]; !ok {
		return domain.ErrSourceNotFound
	}
	f.sources[s.ID] = s
	return nil
}

func (f *fakeSourceRepo) Touch(_ context.Context, id, actor string, at time.Time) error {
	s, ok := f.sources[id]
	if !ok {
		return domain.ErrSourceNotFound
	}
	s.ModifiedBy = actor
	s.ModifiedAt = at
	return nil
}

func (f *fakeSourceRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.sources[id]; !ok {
		return domain.ErrSourceNotFound
	}
	delete(f.sources, id)
	return nil
}

// fakeLinkRepo is an in-memory link store with injectable failures.
type fakeLinkRepo struct {
	sourceLinks    []*domain.SourceTranslationLink
	segmentLinks   []*domain.SegmentTranslationLink
	segmentLinkErr error
}

func (f *fakeLinkRepo) SourceLinkExists(_ context.Context, originID, translatedID string) (bool, error) {
	for _, l := range f.sourceLinks {
		if l.OriginSourceID == originID && l.TranslatedSourceID == translatedID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLinkRepo) CreateSourceLink(_ context.Context, link *domain.SourceTranslationLink) error {
	f.sourceLinks = append(f.sourceLinks, link)
	return nil
}

func (f *fakeLinkRepo) ListSourceLinks(_ context.Context, translatedID string) ([]*domain.SourceTranslationLink, error) {
	var out []*domain.SourceTranslationLink
	for _, l := range f.sourceLinks {
		if l.TranslatedSourceID == translatedID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLinkRepo) HasSourceLinks(ctx context.Context, translatedID string) (bool, error) {
	links, _ := f.ListSourceLinks(ctx, translatedID)
	return len(links) > 0, nil
}

func (f *fakeLinkRepo) SegmentLinkExists(_ context.Context, originID string, originTS time.Time, translatedID string, translatedTS time.Time) (bool, error) {
	for _, l := range f.segmentLinks {
		if l.OriginSegmentID == originID && l.OriginSegmentTimestamp.Equal(originTS) &&
			l.TranslatedSegmentID == translatedID && l.TranslatedSegmentTimestamp.Equal(translatedTS) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLinkRepo) CreateSegmentLink(_ context.Context, link *domain.SegmentTranslationLink) error {
	if f.segmentLinkErr != nil {
		return f.segmentLinkErr
	}
	f.segmentLinks = append(f.segmentLinks, link)
	return nil
}

func (f *fakeLinkRepo) ListSegmentLinksByTranslated(_ context.Context, translatedID string, translatedTS time.Time) ([]*domain.SegmentTranslationLink, error) {
	var out []*domain.SegmentTranslationLink
	for _, l := range f.segmentLinks {
		if l.TranslatedSegmentID == translatedID && l.TranslatedSegmentTimestamp.Equal(translatedTS) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLinkRepo) DeleteBySource(_ context.Context, sourceID string) error {
	kept := f.sourceLinks[:0]
	for _, l := range f.sourceLinks {
		if l.OriginSourceID != sourceID && l.TranslatedSourceID != sourceID {
			kept = append(kept, l)
		}
	}
	f.sourceLinks = kept
	return nil
}

// stubLLM replays scripted completions and records requests.
type stubLLM struct {
	model     string
	limits    llm.ModelLimits
	responses []string
	errs      []error
	calls     int

	prompts  []string
	payloads []string
}

func newStubLLM(limits llm.ModelLimits, responses ...string) *stubLLM {
	return &stubLLM{model: "gpt-4o", limits: limits, responses: responses}
}

func (s *stubLLM) Model() string           { return s.model }
func (s *stubLLM) Limits() llm.ModelLimits { return s.limits }

func (s *stubLLM) Complete(_ context.Context, systemPrompt, userText string, _ int) (string, error) {
	return s.next(systemPrompt, userText)
}

func (s *stubLLM) CompleteJSON(_ context.Context, systemPrompt, userText string, _ int) (string, error) {
	return s.next(systemPrompt, userText)
}

func (s *stubLLM) next(systemPrompt, userText string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, systemPrompt)
	s.payloads = append(s.payloads, userText)

	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", llm.ErrNoChoices
}

func testSource(id string, lang domain.Language) *domain.Source {
	now := time.Now().UTC()
	return &domain.Source{
		ID:         id,
		Name:       "source " + id,
		Language:   lang,
		Type:       domain.SourceTypeBook,
		Properties: map[string]any{},
		CreatedBy:  "tester",
		CreatedAt:  now,
		ModifiedBy: "tester",
		ModifiedAt: now,
	}
}

func seedSegments(repo *fakeSegmentRepo, sourceID string, texts ...string) []*domain.Segment {
	ts := time.Now().UTC().Add(-time.Hour)
	out := make([]*domain.Segment, 0, len(texts))
	for i, text := range texts {
		seg := domain.NewSegment(fmt.Sprintf("%s-seg-%d", sourceID, i+1), sourceID, i+1, text, "tester", ts)
		_ = repo.Put(context.Background(), seg)
		out = append(out, seg)
	}
	return out
}
