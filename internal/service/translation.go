package service

import (
	"context"
	"log"
	"time"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/llm"
	"github.com/glossa-works/glossa/internal/telemetry"
)

// LLMClient is the completion surface used by the translation pipeline,
// satisfied by *llm.Client.
type LLMClient interface {
	Model() string
	Limits() llm.ModelLimits
	Complete(ctx context.Context, systemPrompt, userText string, maxOutputTokens int) (string, error)
	CompleteJSON(ctx context.Context, systemPrompt, userText string, maxOutputTokens int) (string, error)
}

// chunkFailurePlaceholder stands in for a chunk whose provider call
// failed. Failures are per-chunk: the rest of the document proceeds and
// the caller detects partial completion through the aggregate result.
const chunkFailurePlaceholder = "[translation failed]"

// TranslationService drives single-source translation: budget, chunking,
// per-chunk provider calls, de-chunking, persistence, provenance.
type TranslationService struct {
	llm         LLMClient
	chunker     *Chunker
	segments    *SegmentService
	provenance  *ProvenanceLinker
	outputRatio float64
}

// NewTranslationService creates a new TranslationService instance
func NewTranslationService(client LLMClient, chunker *Chunker, segments *SegmentService, provenance *ProvenanceLinker) *TranslationService {
	return &TranslationService{
		llm:         client,
		chunker:     chunker,
		segments:    segments,
		provenance:  provenance,
		outputRatio: DefaultOutputRatio,
	}
}

// TranslateTextInput represents a stateless translation request
type TranslateTextInput struct {
	Paragraphs []string
	PromptText string
}

// TranslateTextResult carries translated paragraphs plus enough counters
// for the caller to detect partial completion and count mismatches.
type TranslateTextResult struct {
	TranslatedParagraphs []string
	InputParagraphs      int
	ChunkCount           int
	FailedChunks         int
	Model                string
	Duration             time.Duration
}

// TranslateParagraphs translates a paragraph sequence without persisting
// anything. Paragraph counts are not reconciled: the provider's output
// segment count is reported as-is next to the input count.
func (s *TranslationService) TranslateParagraphs(ctx context.Context, input TranslateTextInput) (*TranslateTextResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "TranslationService.TranslateParagraphs", telemetry.SpanAttributes{
		Operation: "translate",
	})
	defer span.End()

	paragraphs := filterParagraphs(input.Paragraphs)
	if len(paragraphs) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "no paragraphs to translate")
	}

	limits := s.llm.Limits()
	budget := s.chunker.ChunkBudget(input.PromptText, limits, s.outputRatio)
	if budget <= 0 {
		return nil, domain.ErrBudgetExhausted
	}

	chunks := s.chunker.PackParagraphs(paragraphs, budget)

	start := time.Now()
	translated, failed := s.translateChunks(ctx, chunks, input.PromptText, limits.MaxOutputTokens)

	return &TranslateTextResult{
		TranslatedParagraphs: translated,
		InputParagraphs:      len(paragraphs),
		ChunkCount:           len(chunks),
		FailedChunks:         failed,
		Model:                s.llm.Model(),
		Duration:             time.Since(start),
	}, nil
}

// TranslateSourceInput represents a full source-to-source translation
type TranslateSourceInput struct {
	OriginSourceID     string
	TranslatedSourceID string
	PromptText         string
	Actor              string
}

// TranslateSourceResult reports what a source translation run produced.
type TranslateSourceResult struct {
	Segments        []*domain.Segment
	OriginCount     int
	TranslatedCount int
	ChunkCount      int
	FailedChunks    int
	LinkedCount     int
}

// TranslateSource translates every live content segment of the origin
// source and appends the results to the translated source: each produced
// segment gets the next sequential order, the whole batch shares one
// timestamp, and every persisted segment is linked to the origin segment
// version it came from.
func (s *TranslationService) TranslateSource(ctx context.Context, input TranslateSourceInput) (*TranslateSourceResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "TranslationService.TranslateSource", telemetry.SpanAttributes{
		SourceID:           input.OriginSourceID,
		TranslatedSourceID: input.TranslatedSourceID,
		Operation:          "translate_source",
	})
	defer span.End()

	origin, err := s.segments.ContentSegments(ctx, input.OriginSourceID)
	if err != nil {
		return nil, err
	}
	origin = filterSegments(origin)
	if len(origin) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "origin source has no content segments")
	}

	limits := s.llm.Limits()
	budget := s.chunker.ChunkBudget(input.PromptText, limits, s.outputRatio)
	if budget <= 0 {
		return nil, domain.ErrBudgetExhausted
	}

	texts := make([]string, len(origin))
	for i, seg := range origin {
		texts[i] = seg.Text
	}
	chunks := s.chunker.PackParagraphs(texts, budget)

	// Outputs pair with origin segments positionally within each chunk, so
	// a failed or miscounted chunk never shifts the pairing of later
	// chunks. Mismatches are not repaired: unpaired outputs are dropped,
	// unpaired origin segments stay untranslated, and both counts are
	// surfaced in the result.
	var (
		outTexts    []string
		outOrigins  []*domain.Segment
		outputCount int
		failed      int
		base        int
	)
	for i, chunk := range chunks {
		payload := llm.JoinParagraphs(chunk)
		var outputs []string
		raw, err := s.llm.Complete(ctx, input.PromptText, payload, limits.MaxOutputTokens)
		if err != nil {
			log.Printf("translation: chunk %d/%d failed for source %s: %v",
				i+1, len(chunks), input.OriginSourceID, err)
			telemetry.CaptureError(ctx, err)
			failed++
			outputs = []string{chunkFailurePlaceholder}
		} else {
			outputs = llm.SplitParagraphs(raw)
		}
		outputCount += len(outputs)

		if len(outputs) != len(chunk) && err == nil {
			log.Printf("translation: paragraph count mismatch in chunk %d/%d for source %s: %d in, %d out",
				i+1, len(chunks), input.OriginSourceID, len(chunk), len(outputs))
			telemetry.CaptureMessage(ctx, "translation paragraph count mismatch")
		}

		pairs := len(outputs)
		if len(chunk) < pairs {
			pairs = len(chunk)
		}
		for j := 0; j < pairs; j++ {
			outTexts = append(outTexts, outputs[j])
			outOrigins = append(outOrigins, origin[base+j])
		}
		base += len(chunk)
	}

	if len(outTexts) == 0 {
		return nil, domain.ErrEmptyTranslation
	}

	persisted, err := s.segments.PersistTranslatedBatch(ctx, PersistBatchInput{
		SourceID: input.TranslatedSourceID,
		Texts:    outTexts,
		Origins:  outOrigins,
		Properties: map[string]any{
			domain.PropSegmentType: domain.SegmentTypeTranslation,
		},
		Actor: input.Actor,
	})
	if err != nil {
		return nil, err
	}

	links := make([]*domain.SegmentTranslationLink, 0, len(persisted))
	for i, seg := range persisted {
		links = append(links, &domain.SegmentTranslationLink{
			OriginSegmentID:            outOrigins[i].ID,
			OriginSegmentTimestamp:     outOrigins[i].Timestamp,
			TranslatedSegmentID:        seg.ID,
			TranslatedSegmentTimestamp: seg.Timestamp,
		})
	}
	linked := s.provenance.LinkSegmentBatch(ctx, links)

	return &TranslateSourceResult{
		Segments:        persisted,
		OriginCount:     len(origin),
		TranslatedCount: outputCount,
		ChunkCount:      len(chunks),
		FailedChunks:    failed,
		LinkedCount:     linked,
	}, nil
}

// translateChunks sends each chunk through the provider, substituting a
// placeholder for failed chunks instead of aborting the run.
func (s *TranslationService) translateChunks(ctx context.Context, chunks [][]string, promptText string, maxOutputTokens int) ([]string, int) {
	var translated []string
	failed := 0

	for i, chunk := range chunks {
		payload := llm.JoinParagraphs(chunk)
		raw, err := s.llm.Complete(ctx, promptText, payload, maxOutputTokens)
		if err != nil {
			log.Printf("translation: chunk %d/%d failed: %v", i+1, len(chunks), err)
			telemetry.CaptureError(ctx, err)
			failed++
			translated = append(translated, chunkFailurePlaceholder)
			continue
		}
		translated = append(translated, llm.SplitParagraphs(raw)...)
	}

	return translated, failed
}

func filterParagraphs(paragraphs []string) []string {
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if !skipParagraph(p) {
			out = append(out, p)
		}
	}
	return out
}

func filterSegments(segments []*domain.Segment) []*domain.Segment {
	out := make([]*domain.Segment, 0, len(segments))
	for _, seg := range segments {
		if !skipParagraph(seg.Text) {
			out = append(out, seg)
		}
	}
	return out
}
