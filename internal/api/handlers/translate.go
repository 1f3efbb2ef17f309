package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/glossa-works/glossa/internal/api"
	"github.com/glossa-works/glossa/internal/api/middleware"
	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/service"
	"github.com/go-chi/chi/v5"
)

type TranslationService interface {
	TranslateParagraphs(ctx context.Context, input service.TranslateTextInput) (*service.TranslateTextResult, error)
	TranslateSource(ctx context.Context, input service.TranslateSourceInput) (*service.TranslateSourceResult, error)
}

type TranslateHandler struct {
	svc       TranslationService
	sources   SourceService
	composer  service.PromptComposer
	extractor service.ParagraphExtractor
}

func NewTranslateHandler(svc TranslationService, sources SourceService, composer service.PromptComposer) *TranslateHandler {
	return &TranslateHandler{
		svc:       svc,
		sources:   sources,
		composer:  composer,
		extractor: service.PlainTextExtractor{},
	}
}

type TranslateTextRequest struct {
	// Text is split into paragraphs on blank lines. Ignored when
	// Paragraphs is set.
	Text       string   `json:"text,omitempty"`
	Paragraphs []string `json:"paragraphs,omitempty"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	PromptKey  string   `json:"prompt_key,omitempty"`
}

type TranslateTextResponse struct {
	Paragraphs      []string `json:"paragraphs"`
	InputParagraphs int      `json:"input_paragraphs"`
	ChunkCount      int      `json:"chunk_count"`
	FailedChunks    int      `json:"failed_chunks"`
	Model           string   `json:"model"`
	DurationMS      int64    `json:"duration_ms"`
}

// TranslateText translates raw text without persisting anything.
func (h *TranslateHandler) TranslateText(w http.ResponseWriter, r *http.Request) {
	var req TranslateTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !domain.IsValidLanguage(domain.Language(req.From)) {
		api.Error(w, http.StatusBadRequest, "invalid source language")
		return
	}
	if !domain.IsValidLanguage(domain.Language(req.To)) {
		api.Error(w, http.StatusBadRequest, "invalid target language")
		return
	}

	paragraphs := req.Paragraphs
	if len(paragraphs) == 0 {
		extracted, err := h.extractor.Extract([]byte(req.Text))
		if err != nil {
			api.Error(w, http.StatusBadRequest, "text could not be parsed")
			return
		}
		paragraphs = extracted
	}
	if len(paragraphs) == 0 {
		api.Error(w, http.StatusBadRequest, "text or paragraphs are required")
		return
	}

	prompt, err := h.composer.Compose(req.PromptKey, domain.Language(req.From), domain.Language(req.To))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.svc.TranslateParagraphs(r.Context(), service.TranslateTextInput{
		Paragraphs: paragraphs,
		PromptText: prompt,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, TranslateTextResponse{
		Paragraphs:      result.TranslatedParagraphs,
		InputParagraphs: result.InputParagraphs,
		ChunkCount:      result.ChunkCount,
		FailedChunks:    result.FailedChunks,
		Model:           result.Model,
		DurationMS:      result.Duration.Milliseconds(),
	})
}

type TranslateSourceRequest struct {
	TranslatedSourceID string `json:"translated_source_id"`
	PromptKey          string `json:"prompt_key,omitempty"`
}

type TranslateSourceResponse struct {
	Segments        []*SegmentResponse `json:"segments"`
	OriginCount     int                `json:"origin_count"`
	TranslatedCount int                `json:"translated_count"`
	ChunkCount      int                `json:"chunk_count"`
	FailedChunks    int                `json:"failed_chunks"`
	LinkedCount     int                `json:"linked_count"`
}

// TranslateSource translates every live content segment of the origin
// source into the translated source, with provenance links.
func (h *TranslateHandler) TranslateSource(w http.ResponseWriter, r *http.Request) {
	originID := chi.URLParam(r, "id")
	if originID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req TranslateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TranslatedSourceID == "" {
		api.Error(w, http.StatusBadRequest, "translated_source_id is required")
		return
	}

	origin, err := h.sources.GetByID(r.Context(), originID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	translated, err := h.sources.GetByID(r.Context(), req.TranslatedSourceID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	prompt, err := h.composer.Compose(req.PromptKey, origin.Language, translated.Language)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.svc.TranslateSource(r.Context(), service.TranslateSourceInput{
		OriginSourceID:     originID,
		TranslatedSourceID: req.TranslatedSourceID,
		PromptText:         prompt,
		Actor:              middleware.GetActor(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, TranslateSourceResponse{
		Segments:        segmentsToResponses(result.Segments),
		OriginCount:     result.OriginCount,
		TranslatedCount: result.TranslatedCount,
		ChunkCount:      result.ChunkCount,
		FailedChunks:    result.FailedChunks,
		LinkedCount:     result.LinkedCount,
	})
}
