package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/glossa-works/glossa/internal/api"
	"github.com/glossa-works/glossa/internal/api/middleware"
	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/service"
	"github.com/go-chi/chi/v5"
)

type SegmentService interface {
	LatestSegments(ctx context.Context, sourceID string) ([]*domain.Segment, error)
	ContentSegments(ctx context.Context, sourceID string) ([]*domain.Segment, error)
	SegmentAsOf(ctx context.Context, id string, bound *time.Time) (*domain.Segment, error)
	SegmentVersions(ctx context.Context, id string) ([]*domain.Segment, error)
	SaveSegments(ctx context.Context, input service.SaveSegmentsInput) ([]*domain.Segment, error)
}

type ProvenanceService interface {
	SegmentProvenance(ctx context.Context, translatedID string, translatedTS time.Time) ([]*domain.SegmentTranslationLink, error)
}

type SegmentHandler struct {
	svc        SegmentService
	provenance ProvenanceService
}

func NewSegmentHandler(svc SegmentService, provenance ProvenanceService) *SegmentHandler {
	return &SegmentHandler{svc: svc, provenance: provenance}
}

type SegmentResponse struct {
	ID                     string         `json:"id"`
	Timestamp              string         `json:"timestamp"`
	SourceID               string         `json:"source_id"`
	Order                  int            `json:"order"`
	Text                   string         `json:"text"`
	Properties             map[string]any `json:"properties,omitempty"`
	CreatedBy              string         `json:"created_by"`
	OriginSegmentID        string         `json:"origin_segment_id,omitempty"`
	OriginSegmentTimestamp string         `json:"origin_segment_timestamp,omitempty"`
}

func segmentToResponse(s *domain.Segment) *SegmentResponse {
	resp := &SegmentResponse{
		ID:              s.ID,
		Timestamp:       s.Timestamp.Format(time.RFC3339Nano),
		SourceID:        s.SourceID,
		Order:           s.Order,
		Text:            s.Text,
		Properties:      s.Properties,
		CreatedBy:       s.CreatedBy,
		OriginSegmentID: s.OriginSegmentID,
	}
	if s.OriginSegmentTimestamp != nil {
		resp.OriginSegmentTimestamp = s.OriginSegmentTimestamp.Format(time.RFC3339Nano)
	}
	return resp
}

func segmentsToResponses(segments []*domain.Segment) []*SegmentResponse {
	responses := make([]*SegmentResponse, len(segments))
	for i, s := range segments {
		responses[i] = segmentToResponse(s)
	}
	return responses
}

// ListBySource returns the live view of a source's segments. By default
// only content segments (order >= 1) are returned; include_storage=true
// includes the storage segment as well.
func (h *SegmentHandler) ListBySource(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "id")
	if sourceID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var (
		segments []*domain.Segment
		err      error
	)
	if r.URL.Query().Get("include_storage") == "true" {
		segments, err = h.svc.LatestSegments(r.Context(), sourceID)
	} else {
		segments, err = h.svc.ContentSegments(r.Context(), sourceID)
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]any{"items": segmentsToResponses(segments)})
}

type SegmentWriteRequest struct {
	ID         string         `json:"id,omitempty"`
	Order      int            `json:"order"`
	Text       string         `json:"text"`
	Properties map[string]any `json:"properties,omitempty"`
}

type SaveSegmentsRequest struct {
	Segments []SegmentWriteRequest `json:"segments"`
}

// Save appends one new version per submitted segment. All versions in a
// request share a single batch timestamp.
func (h *SegmentHandler) Save(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "id")
	if sourceID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req SaveSegmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Segments) == 0 {
		api.Error(w, http.StatusBadRequest, "segments are required")
		return
	}

	writes := make([]service.SegmentWrite, len(req.Segments))
	for i, s := range req.Segments {
		writes[i] = service.SegmentWrite{
			ID:         s.ID,
			Order:      s.Order,
			Text:       s.Text,
			Properties: s.Properties,
		}
	}

	segments, err := h.svc.SaveSegments(r.Context(), service.SaveSegmentsInput{
		SourceID: sourceID,
		Writes:   writes,
		Actor:    middleware.GetActor(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, map[string]any{"items": segmentsToResponses(segments)})
}

// Get returns the live version of a segment, or the version live at the
// as_of bound when given.
func (h *SegmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var bound *time.Time
	if asOf := r.URL.Query().Get("as_of"); asOf != "" {
		parsed, err := time.Parse(time.RFC3339Nano, asOf)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "as_of must be an RFC 3339 timestamp")
			return
		}
		bound = &parsed
	}

	segment, err := h.svc.SegmentAsOf(r.Context(), id, bound)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, segmentToResponse(segment))
}

func (h *SegmentHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	versions, err := h.svc.SegmentVersions(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]any{"items": segmentsToResponses(versions)})
}

type SegmentLinkResponse struct {
	OriginSegmentID            string `json:"origin_segment_id"`
	OriginSegmentTimestamp     string `json:"origin_segment_timestamp"`
	TranslatedSegmentID        string `json:"translated_segment_id"`
	TranslatedSegmentTimestamp string `json:"translated_segment_timestamp"`
	AlignedText                string `json:"aligned_text,omitempty"`
	AlignedLanguage            string `json:"aligned_language,omitempty"`
	CreatedAt                  string `json:"created_at"`
}

func linkToResponse(l *domain.SegmentTranslationLink) *SegmentLinkResponse {
	return &SegmentLinkResponse{
		OriginSegmentID:            l.OriginSegmentID,
		OriginSegmentTimestamp:     l.OriginSegmentTimestamp.Format(time.RFC3339Nano),
		TranslatedSegmentID:        l.TranslatedSegmentID,
		TranslatedSegmentTimestamp: l.TranslatedSegmentTimestamp.Format(time.RFC3339Nano),
		AlignedText:                l.AlignedText,
		AlignedLanguage:            string(l.AlignedLanguage),
		CreatedAt:                  l.CreatedAt.Format(time.RFC3339),
	}
}

// Provenance returns the provenance edges of a translated segment's live
// version, or of the version at the timestamp query parameter.
func (h *SegmentHandler) Provenance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var ts time.Time
	if raw := r.URL.Query().Get("timestamp"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "timestamp must be an RFC 3339 timestamp")
			return
		}
		ts = parsed
	} else {
		segment, err := h.svc.SegmentAsOf(r.Context(), id, nil)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		ts = segment.Timestamp
	}

	links, err := h.provenance.SegmentProvenance(r.Context(), id, ts)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SegmentLinkResponse, len(links))
	for i, l := range links {
		responses[i] = linkToResponse(l)
	}

	api.Success(w, http.StatusOK, map[string]any{"items": responses})
}
