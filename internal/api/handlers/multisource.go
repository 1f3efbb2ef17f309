package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/glossa-works/glossa/internal/api"
	"github.com/glossa-works/glossa/internal/api/middleware"
	"github.com/glossa-works/glossa/internal/service"
	"github.com/go-chi/chi/v5"
)

type MultiSourceService interface {
	Initialize(ctx context.Context, input service.InitializeInput) (*service.InitializeResult, error)
	TranslateBatch(ctx context.Context, input service.TranslateBatchInput) (*service.TranslateBatchResult, error)
}

type MultiSourceHandler struct {
	svc      MultiSourceService
	sources  SourceService
	segments SegmentService
	composer service.PromptComposer
}

func NewMultiSourceHandler(svc MultiSourceService, sources SourceService, segments SegmentService, composer service.PromptComposer) *MultiSourceHandler {
	return &MultiSourceHandler{
		svc:      svc,
		sources:  sources,
		segments: segments,
		composer: composer,
	}
}

type InitializeRequest struct {
	OriginSourceID     string   `json:"origin_source_id"`
	ReferenceSourceIDs []string `json:"reference_source_ids"`
	// ReferenceTexts optionally seeds a reference's full text from an
	// uploaded document, keyed by reference source id.
	ReferenceTexts map[string]string `json:"reference_texts,omitempty"`
}

type InitializeResponse struct {
	OriginSegmentCount int            `json:"origin_segment_count"`
	ReferenceChars     map[string]int `json:"reference_chars"`
	LinkedSources      int            `json:"linked_sources"`
}

// Initialize sets up a multi-source translation triple on the translated
// source named in the URL. Re-initializing is idempotent.
func (h *MultiSourceHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	translatedID := chi.URLParam(r, "id")
	if translatedID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OriginSourceID == "" {
		api.Error(w, http.StatusBadRequest, "origin_source_id is required")
		return
	}
	if len(req.ReferenceSourceIDs) == 0 {
		api.Error(w, http.StatusBadRequest, "reference_source_ids are required")
		return
	}

	result, err := h.svc.Initialize(r.Context(), service.InitializeInput{
		OriginSourceID:     req.OriginSourceID,
		ReferenceSourceIDs: req.ReferenceSourceIDs,
		TranslatedSourceID: translatedID,
		ReferenceTexts:     req.ReferenceTexts,
		Actor:              middleware.GetActor(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	refChars := make(map[string]int, len(result.ReferenceTexts))
	for id, text := range result.ReferenceTexts {
		refChars[id] = len([]rune(text))
	}

	api.Success(w, http.StatusOK, InitializeResponse{
		OriginSegmentCount: len(result.OriginSegments),
		ReferenceChars:     refChars,
		LinkedSources:      result.LinkedSources,
	})
}

type TranslateBatchRequest struct {
	OriginSourceID string `json:"origin_source_id"`
	PromptKey      string `json:"prompt_key,omitempty"`
	// OriginOffset skips that many origin segments before the batch. When
	// nil, the offset is derived from the number of content segments
	// already translated.
	OriginOffset *int `json:"origin_offset,omitempty"`
	// ReferenceTexts overrides the remaining reference texts. Normally
	// left empty so the storage segments drive consumption.
	ReferenceTexts map[string]string `json:"reference_texts,omitempty"`
}

type TranslateBatchResponse struct {
	Segments            []*SegmentResponse `json:"segments"`
	ConsumedOriginCount int                `json:"consumed_origin_count"`
	OriginOffset        int                `json:"origin_offset"`
	OriginRemaining     int                `json:"origin_remaining"`
	ReferenceChars      map[string]int     `json:"reference_chars"`
	ReferencesExhausted bool               `json:"references_exhausted"`
	Warnings            []string           `json:"warnings,omitempty"`
}

// TranslateBatch translates the next batch of origin paragraphs into the
// translated source named in the URL, aligned against the reference
// sources. Callers repeat until the whole origin is consumed.
func (h *MultiSourceHandler) TranslateBatch(w http.ResponseWriter, r *http.Request) {
	translatedID := chi.URLParam(r, "id")
	if translatedID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req TranslateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OriginSourceID == "" {
		api.Error(w, http.StatusBadRequest, "origin_source_id is required")
		return
	}

	origin, err := h.sources.GetByID(r.Context(), req.OriginSourceID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	translated, err := h.sources.GetByID(r.Context(), translatedID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	prompt, err := h.composer.Compose(req.PromptKey, origin.Language, translated.Language)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	originSegments, err := h.segments.ContentSegments(r.Context(), req.OriginSourceID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	offset := 0
	if req.OriginOffset != nil {
		offset = *req.OriginOffset
	} else {
		done, err := h.segments.ContentSegments(r.Context(), translatedID)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		offset = len(done)
	}
	if offset < 0 || offset > len(originSegments) {
		api.Error(w, http.StatusBadRequest, "origin_offset is out of range")
		return
	}

	result, err := h.svc.TranslateBatch(r.Context(), service.TranslateBatchInput{
		TranslatedSourceID: translatedID,
		OriginSegments:     originSegments[offset:],
		ReferenceTexts:     req.ReferenceTexts,
		PromptText:         prompt,
		Actor:              middleware.GetActor(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	refChars := make(map[string]int, len(result.UpdatedReferenceTexts))
	for id, text := range result.UpdatedReferenceTexts {
		refChars[id] = len([]rune(text))
	}

	api.Success(w, http.StatusOK, TranslateBatchResponse{
		Segments:            segmentsToResponses(result.Segments),
		ConsumedOriginCount: result.ConsumedOriginCount,
		OriginOffset:        offset,
		OriginRemaining:     len(originSegments) - offset - result.ConsumedOriginCount,
		ReferenceChars:      refChars,
		ReferencesExhausted: result.ReferencesExhausted,
		Warnings:            result.Warnings,
	})
}
