package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/llm"
	"github.com/glossa-works/glossa/internal/telemetry"
)

// DefaultReferenceMultiplier sizes reference excerpts relative to the
// origin batch: excerpt length = origin batch chars x multiplier. The
// slack absorbs languages that run longer than the origin.
const DefaultReferenceMultiplier = 1.75

// DocumentArchive stores uploaded reference documents out of band. The
// engine treats archiving as best effort; a failure never blocks
// initialization.
type DocumentArchive interface {
	ArchiveReferenceText(ctx context.Context, sourceID string, data []byte) error
}

// ReferenceConsumer subtracts consumed text from a reference's remaining
// pool. Kept behind an interface so the string heuristic can be swapped
// for a real alignment algorithm without touching the engine.
type ReferenceConsumer interface {
	Consume(remaining, consumed string) string
}

// PrefixConsumer removes consumed text by exact prefix match, falling back
// to a case-insensitive substring search, falling back to cutting the
// consumed length. The fallbacks operate on runes, never bytes: remainders
// are mostly non-ASCII scripts and a byte cut would split a code point and
// leave an invalid-UTF-8 remainder that the store rejects.
type PrefixConsumer struct{}

func (PrefixConsumer) Consume(remaining, consumed string) string {
	consumed = strings.TrimSpace(consumed)
	if consumed == "" {
		return remaining
	}

	trimmed := strings.TrimLeftFunc(remaining, unicode.IsSpace)
	if strings.HasPrefix(trimmed, consumed) {
		return strings.TrimLeftFunc(trimmed[len(consumed):], unicode.IsSpace)
	}

	remainingRunes := []rune(trimmed)
	consumedRunes := []rune(consumed)

	if idx := runeIndexFold(remainingRunes, consumedRunes); idx >= 0 {
		return strings.TrimLeftFunc(string(remainingRunes[idx+len(consumedRunes):]), unicode.IsSpace)
	}

	if len(consumedRunes) >= len(remainingRunes) {
		return ""
	}
	return strings.TrimLeftFunc(string(remainingRunes[len(consumedRunes):]), unicode.IsSpace)
}

// runeIndexFold returns the rune index of the first case-insensitive
// occurrence of needle in haystack, or -1. Rune indexes keep the caller's
// cut aligned to code-point boundaries, which strings.Index over
// strings.ToLower output does not guarantee.
func runeIndexFold(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if unicode.ToLower(haystack[i+j]) != unicode.ToLower(needle[j]) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// MultiSourceEngine translates an origin source while feeding
// proportionally sized excerpts of reference sources into the same
// provider call, so reference-language segment boundaries stay aligned
// with the origin's paragraphs. Reference text is consumed incrementally
// across batches through each reference's storage segment.
type MultiSourceEngine struct {
	sourceRepo  SourceRepositoryInterface
	segments    *SegmentService
	provenance  *ProvenanceLinker
	llm         LLMClient
	chunker     *Chunker
	consumer    ReferenceConsumer
	archive     DocumentArchive
	multiplier  float64
	outputRatio float64
}

// NewMultiSourceEngine creates a new MultiSourceEngine instance
func NewMultiSourceEngine(
	sourceRepo SourceRepositoryInterface,
	segments *SegmentService,
	provenance *ProvenanceLinker,
	client LLMClient,
	chunker *Chunker,
) *MultiSourceEngine {
	return &MultiSourceEngine{
		sourceRepo:  sourceRepo,
		segments:    segments,
		provenance:  provenance,
		llm:         client,
		chunker:     chunker,
		consumer:    PrefixConsumer{},
		multiplier:  DefaultReferenceMultiplier,
		outputRatio: DefaultOutputRatio,
	}
}

// SetArchive attaches an optional archive for uploaded reference
// documents.
func (e *MultiSourceEngine) SetArchive(archive DocumentArchive) {
	e.archive = archive
}

// SetConsumer replaces the reference-consumption heuristic.
func (e *MultiSourceEngine) SetConsumer(consumer ReferenceConsumer) {
	e.consumer = consumer
}

// InitializeInput represents the one-time setup of a multi-source
// translation triple.
type InitializeInput struct {
	OriginSourceID     string
	ReferenceSourceIDs []string
	TranslatedSourceID string
	// ReferenceTexts optionally seeds a reference's full text from an
	// uploaded document, keyed by reference source id. A reference without
	// an entry is seeded from its existing content segments.
	ReferenceTexts map[string]string
	Actor          string
}

// InitializeResult reports the initialized state.
type InitializeResult struct {
	OriginSegments []*domain.Segment
	// ReferenceTexts maps reference source id to its unconsumed text.
	ReferenceTexts map[string]string
	LinkedSources  int
}

// Initialize links the origin and every reference source to the
// translated source and materializes each reference's full text into its
// storage segment. Re-initializing is idempotent: existing links and
// storage segments are reused, never recreated.
func (e *MultiSourceEngine) Initialize(ctx context.Context, input InitializeInput) (*InitializeResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "MultiSourceEngine.Initialize", telemetry.SpanAttributes{
		SourceID:           input.OriginSourceID,
		TranslatedSourceID: input.TranslatedSourceID,
		Operation:          "initialize",
	})
	defer span.End()

	if _, err := e.sourceRepo.GetByID(ctx, input.OriginSourceID); err != nil {
		return nil, err
	}
	if _, err := e.sourceRepo.GetByID(ctx, input.TranslatedSourceID); err != nil {
		return nil, err
	}

	linked := 0
	for _, id := range append([]string{input.OriginSourceID}, input.ReferenceSourceIDs...) {
		created, err := e.provenance.LinkSources(ctx, id, input.TranslatedSourceID)
		if err != nil {
			return nil, err
		}
		if created {
			linked++
		}
	}

	refTexts := make(map[string]string, len(input.ReferenceSourceIDs))
	for _, refID := range input.ReferenceSourceIDs {
		if _, err := e.sourceRepo.GetByID(ctx, refID); err != nil {
			return nil, err
		}

		uploaded := input.ReferenceTexts[refID]
		text := uploaded
		if text == "" {
			segments, err := e.segments.LatestSegments(ctx, refID)
			if err != nil {
				return nil, err
			}
			text = domain.CollectContentText(segments)
		}

		seg, err := e.segments.EnsureStorageSegment(ctx, refID, text, input.Actor)
		if err != nil {
			return nil, err
		}
		refTexts[refID] = seg.Text

		if uploaded != "" && e.archive != nil {
			if err := e.archive.ArchiveReferenceText(ctx, refID, []byte(uploaded)); err != nil {
				log.Printf("multisource: failed to archive reference text for %s: %v", refID, err)
				telemetry.CaptureError(ctx, err)
			}
		}
	}

	origin, err := e.segments.ContentSegments(ctx, input.OriginSourceID)
	if err != nil {
		return nil, err
	}

	return &InitializeResult{
		OriginSegments: origin,
		ReferenceTexts: refTexts,
		LinkedSources:  linked,
	}, nil
}

// TranslateBatchInput represents one alignment batch. OriginSegments is
// the full remaining origin list; the engine decides how many fit.
type TranslateBatchInput struct {
	TranslatedSourceID string
	OriginSegments     []*domain.Segment
	// ReferenceTexts maps reference source id to its remaining text. Nil
	// or empty loads the remainders from the reference storage segments.
	ReferenceTexts map[string]string
	PromptText     string
	Actor          string
}

// TranslateBatchResult reports one batch: the persisted segments, how far
// the origin cursor advanced, and the reference remainders after
// consumption.
type TranslateBatchResult struct {
	Segments              []*domain.Segment
	ConsumedOriginCount   int
	UpdatedReferenceTexts map[string]string
	// ReferencesExhausted reports that every reference's remaining text is
	// empty. It says nothing about the origin cursor: the caller tracks
	// origin completion from ConsumedOriginCount.
	ReferencesExhausted bool
	Warnings            []string
}

// referenceState is one reference source's working state within a batch.
type referenceState struct {
	source    *domain.Source
	remaining string
	excerpt   string
}

// TranslateBatch translates as many origin paragraphs as fit one provider
// call alongside proportional reference excerpts, persists the translated
// segments with provenance, and consumes the used stretch of every
// reference text. Callers repeat until all origin paragraphs are
// consumed; batches within one document are strictly sequential because
// each depends on the remainders left by the previous one.
func (e *MultiSourceEngine) TranslateBatch(ctx context.Context, input TranslateBatchInput) (*TranslateBatchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "MultiSourceEngine.TranslateBatch", telemetry.SpanAttributes{
		TranslatedSourceID: input.TranslatedSourceID,
		Operation:          "translate_batch",
	})
	defer span.End()

	initialized, err := e.provenance.Initialized(ctx, input.TranslatedSourceID)
	if err != nil {
		return nil, err
	}
	if !initialized {
		return nil, domain.ErrNotInitialized
	}

	origin := filterSegments(input.OriginSegments)
	if len(origin) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "no origin segments to translate")
	}

	refs, err := e.loadReferences(ctx, origin[0].SourceID, input.TranslatedSourceID, input.ReferenceTexts)
	if err != nil {
		return nil, err
	}

	batch, refs, err := e.fitBatch(origin, refs, input.PromptText)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(batch))
	for i, seg := range batch {
		texts[i] = seg.Text
	}

	excerpts := make([]ReferenceExcerpt, 0, len(refs))
	for id, ref := range refs {
		if ref.excerpt == "" {
			continue
		}
		excerpts = append(excerpts, ReferenceExcerpt{
			SourceID: id,
			Language: ref.source.Language,
			Text:     ref.excerpt,
		})
	}

	prompt := BuildAlignmentPrompt(input.PromptText, excerpts, len(batch))
	limits := e.llm.Limits()

	raw, err := e.llm.CompleteJSON(ctx, prompt, llm.JoinParagraphs(texts), limits.MaxOutputTokens)
	if err != nil {
		// The whole batch rides on one call; with nothing to persist the
		// failure is fatal to this call, unlike per-chunk failures in
		// single-source translation.
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "alignment call failed", err)
	}

	parsed, err := llm.ParseAlignedResponse(raw)
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "alignment response could not be parsed", err)
	}

	translated := parsed.TranslatedParagraphs()
	if len(translated) == 0 {
		return nil, domain.ErrEmptyTranslation
	}

	var warnings []string
	if len(translated) != len(batch) {
		// The model's segment counts are trusted, not repaired.
		warning := fmt.Sprintf("translated paragraph count mismatch: %d in, %d out", len(batch), len(translated))
		warnings = append(warnings, warning)
		telemetry.CaptureMessage(ctx, warning)
	}

	pairs := len(translated)
	if len(batch) < pairs {
		pairs = len(batch)
	}

	persisted, err := e.segments.PersistTranslatedBatch(ctx, PersistBatchInput{
		SourceID: input.TranslatedSourceID,
		Texts:    translated[:pairs],
		Origins:  batch[:pairs],
		Properties: map[string]any{
			domain.PropSegmentType: domain.SegmentTypeTranslation,
			domain.PropMultiSource: true,
		},
		Actor: input.Actor,
	})
	if err != nil {
		return nil, err
	}

	links := make([]*domain.SegmentTranslationLink, 0, len(persisted))
	for i, seg := range persisted {
		links = append(links, &domain.SegmentTranslationLink{
			OriginSegmentID:            batch[i].ID,
			OriginSegmentTimestamp:     batch[i].Timestamp,
			TranslatedSegmentID:        seg.ID,
			TranslatedSegmentTimestamp: seg.Timestamp,
		})
	}
	e.provenance.LinkSegmentBatch(ctx, links)

	updated, refWarnings := e.consumeReferences(ctx, refs, parsed, persisted, input.Actor, len(batch))
	warnings = append(warnings, refWarnings...)

	exhausted := true
	for _, remaining := range updated {
		if strings.TrimSpace(remaining) != "" {
			exhausted = false
			break
		}
	}

	return &TranslateBatchResult{
		Segments:              persisted,
		ConsumedOriginCount:   len(batch),
		UpdatedReferenceTexts: updated,
		ReferencesExhausted:   exhausted,
		Warnings:              warnings,
	}, nil
}

// loadReferences resolves the reference sources linked to the translated
// source and their remaining texts, either from the supplied map or from
// the storage segments.
func (e *MultiSourceEngine) loadReferences(ctx context.Context, originSourceID, translatedSourceID string, supplied map[string]string) (map[string]*referenceState, error) {
	sourceLinks, err := e.provenance.LinkedOrigins(ctx, translatedSourceID)
	if err != nil {
		return nil, err
	}

	refs := make(map[string]*referenceState)
	for _, link := range sourceLinks {
		if link.OriginSourceID == originSourceID {
			continue
		}

		source, err := e.sourceRepo.GetByID(ctx, link.OriginSourceID)
		if err != nil {
			return nil, err
		}

		remaining, ok := supplied[link.OriginSourceID]
		if !ok {
			seg, err := e.segments.StorageSegment(ctx, link.OriginSourceID)
			switch {
			case err == nil:
				remaining = seg.Text
			case isNotFound(err):
				// Exhausted reference: it contributes nothing to the
				// remaining batches but is not an error.
				remaining = ""
			default:
				return nil, err
			}
		}

		refs[link.OriginSourceID] = &referenceState{
			source:    source,
			remaining: remaining,
		}
	}

	if len(refs) == 0 {
		return nil, domain.ErrNoReferenceTexts
	}
	return refs, nil
}

// fitBatch finds the largest origin prefix that fits the token budget
// together with its proportionally sized reference excerpts. The shrink
// is monotonic: drop the last paragraph, resize excerpts, recompute.
func (e *MultiSourceEngine) fitBatch(origin []*domain.Segment, refs map[string]*referenceState, promptText string) ([]*domain.Segment, map[string]*referenceState, error) {
	limits := e.llm.Limits()

	batch := origin
	for len(batch) > 0 {
		originChars := 0
		for _, seg := range batch {
			originChars += len([]rune(seg.Text))
		}

		extra := make([]string, 0, len(refs))
		for _, ref := range refs {
			ref.excerpt = excerptAtBoundary(ref.remaining, int(float64(originChars)*e.multiplier))
			if ref.excerpt != "" {
				extra = append(extra, ref.excerpt)
			}
		}

		budget := e.chunker.ChunkBudget(promptText, limits, e.outputRatio, extra...)
		if budget > 0 {
			texts := make([]string, len(batch))
			for i, seg := range batch {
				texts[i] = seg.Text
			}
			if e.chunker.TokenCount(llm.JoinParagraphs(texts)) <= budget {
				return batch, refs, nil
			}
		}

		batch = batch[:len(batch)-1]
	}

	return nil, nil, domain.ErrBudgetExhausted
}

// consumeReferences links each reference's aligned segments to the
// persisted translated segments and subtracts the consumed stretch from
// the reference's storage segment. Link and storage failures degrade to
// warnings; the translated content is already durable.
func (e *MultiSourceEngine) consumeReferences(ctx context.Context, refs map[string]*referenceState, parsed *llm.AlignedResponse, persisted []*domain.Segment, actor string, batchSize int) (map[string]string, []string) {
	updated := make(map[string]string, len(refs))
	var warnings []string

	for id, ref := range refs {
		if ref.excerpt == "" {
			updated[id] = ref.remaining
			continue
		}

		aligned := parsed.Segments[string(ref.source.Language)]
		if len(aligned) == 0 {
			warning := fmt.Sprintf("no aligned segments returned for %s reference %s", ref.source.Language, id)
			warnings = append(warnings, warning)
			log.Printf("multisource: %s", warning)
			updated[id] = ref.remaining
			continue
		}
		if len(aligned) != batchSize {
			warning := fmt.Sprintf("aligned segment count mismatch for %s reference %s: %d origin, %d aligned",
				ref.source.Language, id, batchSize, len(aligned))
			warnings = append(warnings, warning)
			log.Printf("multisource: %s", warning)
		}

		// The aligned reference renditions are recorded as provenance
		// annotations on the translated segments, never as content rows.
		var links []*domain.SegmentTranslationLink
		if storageSeg, err := e.segments.StorageSegment(ctx, id); err == nil {
			for i, seg := range persisted {
				if i >= len(aligned) {
					break
				}
				links = append(links, &domain.SegmentTranslationLink{
					OriginSegmentID:            storageSeg.ID,
					OriginSegmentTimestamp:     storageSeg.Timestamp,
					TranslatedSegmentID:        seg.ID,
					TranslatedSegmentTimestamp: seg.Timestamp,
					AlignedText:                aligned[i],
					AlignedLanguage:            ref.source.Language,
				})
			}
			e.provenance.LinkSegmentBatch(ctx, links)
		} else if !isNotFound(err) {
			log.Printf("multisource: failed to load storage segment for %s: %v", id, err)
			telemetry.CaptureError(ctx, err)
		}

		consumed := strings.Join(aligned, " ")
		remainder := e.consumer.Consume(ref.remaining, consumed)
		if err := e.segments.WriteStorageRemainder(ctx, id, remainder, actor); err != nil {
			warning := fmt.Sprintf("failed to update storage segment for reference %s", id)
			warnings = append(warnings, warning)
			log.Printf("multisource: %s: %v", warning, err)
			telemetry.CaptureError(ctx, err)
			updated[id] = ref.remaining
			continue
		}
		updated[id] = remainder
	}

	return updated, warnings
}

// excerptAtBoundary returns up to maxChars runes of text, cut back to the
// last whitespace so words stay whole. Returns the full text when it fits.
func excerptAtBoundary(text string, maxChars int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || maxChars <= 0 {
		return ""
	}

	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed
	}

	cut := maxChars
	for i := maxChars; i > 0; i-- {
		if unicode.IsSpace(runes[i-1]) {
			cut = i - 1
			break
		}
	}
	if cut == 0 {
		cut = maxChars
	}
	return strings.TrimSpace(string(runes[:cut]))
}

func isNotFound(err error) bool {
	var derr *domain.DomainError
	return errors.As(err, &derr) && derr.Code == domain.ErrCodeNotFound
}
