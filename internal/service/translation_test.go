package service

import (
	"context"
	"errors"
	"testing"

	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTranslationFixture(limits llm.ModelLimits, responses ...string) (*TranslationService, *fakeSegmentRepo, *fakeLinkRepo, *stubLLM) {
	segRepo := &fakeSegmentRepo{}
	srcRepo := newFakeSourceRepo(
		testSource("origin", domain.LanguageEnglish),
		testSource("target", domain.LanguageSpanish),
	)
	linkRepo := &fakeLinkRepo{}
	client := newStubLLM(limits, responses...)

	segments := NewSegmentServiceWithUUIDGen(segRepo, srcRepo, &seqUUIDGenerator{})
	svc := NewTranslationService(client, NewChunker(wordTokenizer{}), segments, NewProvenanceLinker(linkRepo))
	return svc, segRepo, linkRepo, client
}

func TestTranslateSourcePersistsSequentialOrders(t *testing.T) {
	limits := llm.ModelLimits{ContextWindow: 100, MaxOutputTokens: 6} // budget 5 with ratio 1.2
	svc, segRepo, linkRepo, client := newTranslationFixture(limits,
		"uno dos ||| tres cuatro",
		"cinco ||| seis siete",
		"ocho",
	)
	ctx := context.Background()

	origin := seedSegments(segRepo, "origin", "one two", "three four", "five", "six seven", "eight")

	result, err := svc.TranslateSource(ctx, TranslateSourceInput{
		OriginSourceID:     "origin",
		TranslatedSourceID: "target",
		PromptText:         "translate faithfully",
		Actor:              "tester",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.ChunkCount)
	assert.Equal(t, 0, result.FailedChunks)
	assert.Equal(t, 5, result.OriginCount)
	assert.Equal(t, 5, result.TranslatedCount)
	require.Len(t, result.Segments, 5)

	// Sequential orders starting at max+1, one shared batch timestamp.
	wantTexts := []string{"uno dos", "tres cuatro", "cinco", "seis siete", "ocho"}
	for i, seg := range result.Segments {
		assert.Equal(t, i+1, seg.Order)
		assert.Equal(t, wantTexts[i], seg.Text)
		assert.Equal(t, result.Segments[0].Timestamp, seg.Timestamp, "batch timestamp must be shared")
		assert.Equal(t, origin[i].ID, seg.OriginSegmentID)
	}

	// One provenance edge per persisted segment.
	assert.Equal(t, 5, result.LinkedCount)
	assert.Len(t, linkRepo.segmentLinks, 5)
	assert.Equal(t, origin[0].ID, linkRepo.segmentLinks[0].OriginSegmentID)

	// Chunks went out separator-joined.
	require.Len(t, client.payloads, 3)
	assert.Equal(t, "one two ||| three four", client.payloads[0])
}

func TestTranslateSourceChunkFailureUsesPlaceholder(t *testing.T) {
	limits := llm.ModelLimits{ContextWindow: 100, MaxOutputTokens: 6}
	svc, segRepo, _, client := newTranslationFixture(limits, "uno dos ||| tres cuatro")
	client.errs = []error{nil, errors.New("provider timeout")}
	ctx := context.Background()

	seedSegments(segRepo, "origin", "one two", "three four", "five", "six seven")

	result, err := svc.TranslateSource(ctx, TranslateSourceInput{
		OriginSourceID:     "origin",
		TranslatedSourceID: "target",
		PromptText:         "translate faithfully",
		Actor:              "tester",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedChunks)
	// Chunk 1 produced two paired segments, the failed chunk one placeholder.
	require.Len(t, result.Segments, 3)
	assert.Equal(t, chunkFailurePlaceholder, result.Segments[2].Text)
	// The failed chunk never shifts pairing: the placeholder pairs with the
	// failed chunk's first origin paragraph.
	assert.Equal(t, "origin-seg-3", result.Segments[2].OriginSegmentID)
}

func TestTranslateSourceCountMismatchPassedThrough(t *testing.T) {
	limits := llm.ModelLimits{ContextWindow: 200, MaxOutputTokens: 48} // everything in one chunk
	svc, segRepo, _, _ := newTranslationFixture(limits, "a ||| b ||| c ||| d")
	ctx := context.Background()

	seedSegments(segRepo, "origin", "p1", "p2", "p3", "p4", "p5")

	result, err := svc.TranslateSource(ctx, TranslateSourceInput{
		OriginSourceID:     "origin",
		TranslatedSourceID: "target",
		PromptText:         "translate faithfully",
		Actor:              "tester",
	})
	require.NoError(t, err)

	// 4 outputs for 5 inputs: accepted, not repaired, observable by count.
	assert.Equal(t, 5, result.OriginCount)
	assert.Equal(t, 4, result.TranslatedCount)
	assert.Len(t, result.Segments, 4)
}

func TestTranslateSourceBudgetExhausted(t *testing.T) {
	limits := llm.ModelLimits{ContextWindow: 10, MaxOutputTokens: 8}
	svc, segRepo, _, _ := newTranslationFixture(limits)
	ctx := context.Background()

	seedSegments(segRepo, "origin", "hello")

	_, err := svc.TranslateSource(ctx, TranslateSourceInput{
		OriginSourceID:     "origin",
		TranslatedSourceID: "target",
		PromptText:         "a very long prompt that leaves no room at all",
		Actor:              "tester",
	})
	assert.ErrorIs(t, err, domain.ErrBudgetExhausted)
}

func TestTranslateParagraphsStateless(t *testing.T) {
	limits := llm.ModelLimits{ContextWindow: 200, MaxOutputTokens: 48}
	svc, _, _, _ := newTranslationFixture(limits, "x ||| y")
	ctx := context.Background()

	result, err := svc.TranslateParagraphs(ctx, TranslateTextInput{
		Paragraphs: []string{"one", "two"},
		PromptText: "translate faithfully",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, result.TranslatedParagraphs)
	assert.Equal(t, 2, result.InputParagraphs)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Equal(t, "gpt-4o", result.Model)
}

func TestTranslateParagraphsRejectsEmptyInput(t *testing.T) {
	limits := llm.ModelLimits{ContextWindow: 200, MaxOutputTokens: 48}
	svc, _, _, _ := newTranslationFixture(limits)
	ctx := context.Background()

	_, err := svc.TranslateParagraphs(ctx, TranslateTextInput{
		Paragraphs: []string{"", "   "},
		PromptText: "translate faithfully",
	})
	require.Error(t, err)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeValidation, derr.Code)
}
