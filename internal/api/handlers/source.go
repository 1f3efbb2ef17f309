package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/glossa-works/glossa/internal/api"
	"github.com/glossa-works/glossa/internal/api/middleware"
	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/service"
	"github.com/go-chi/chi/v5"
)

type SourceService interface {
	Create(ctx context.Context, input service.CreateSourceInput) (*domain.Source, error)
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	ListSources(ctx context.Context, input service.ListSourcesInput) (*service.ListSourcesOutput, error)
	ListMeta(ctx context.Context) ([]*domain.SourceMeta, error)
	Update(ctx context.Context, id string, patch domain.SourcePatch, actor string) (*domain.Source, error)
	Delete(ctx context.Context, id string) error
}

type SourceHandler struct {
	svc SourceService
}

func NewSourceHandler(svc SourceService) *SourceHandler {
	return &SourceHandler{svc: svc}
}

type CreateSourceRequest struct {
	Name             string         `json:"name"`
	Language         string         `json:"language"`
	Type             string         `json:"type"`
	OriginalSourceID string         `json:"original_source_id,omitempty"`
	Properties       map[string]any `json:"properties,omitempty"`
}

type UpdateSourceRequest struct {
	Name             *string        `json:"name"`
	Language         *string        `json:"language"`
	Type             *string        `json:"type"`
	OriginalSourceID *string        `json:"original_source_id"`
	Properties       map[string]any `json:"properties"`
}

type SourceResponse struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Language         string         `json:"language"`
	Type             string         `json:"type"`
	OriginalSourceID string         `json:"original_source_id,omitempty"`
	Properties       map[string]any `json:"properties,omitempty"`
	CreatedBy        string         `json:"created_by"`
	CreatedAt        string         `json:"created_at"`
	ModifiedBy       string         `json:"modified_by"`
	ModifiedAt       string         `json:"modified_at"`
}

type SourceMetaResponse struct {
	SourceResponse
	SegmentCount int    `json:"segment_count"`
	LastModified string `json:"last_modified,omitempty"`
}

func sourceToResponse(s *domain.Source) *SourceResponse {
	return &SourceResponse{
		ID:               s.ID,
		Name:             s.Name,
		Language:         string(s.Language),
		Type:             string(s.Type),
		OriginalSourceID: s.OriginalSourceID,
		Properties:       s.Properties,
		CreatedBy:        s.CreatedBy,
		CreatedAt:        s.CreatedAt.Format(time.RFC3339),
		ModifiedBy:       s.ModifiedBy,
		ModifiedAt:       s.ModifiedAt.Format(time.RFC3339),
	}
}

func (h *SourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if !domain.IsValidLanguage(domain.Language(req.Language)) {
		api.Error(w, http.StatusBadRequest, "invalid language")
		return
	}

	input := service.CreateSourceInput{
		Name:             req.Name,
		Language:         domain.Language(req.Language),
		Type:             domain.SourceType(req.Type),
		OriginalSourceID: req.OriginalSourceID,
		Properties:       req.Properties,
		Actor:            middleware.GetActor(r.Context()),
	}

	source, err := h.svc.Create(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sourceToResponse(source))
}

func (h *SourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	source, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, sourceToResponse(source))
}

type SourceListResponse struct {
	Items   []*SourceResponse `json:"items"`
	Cursor  string            `json:"cursor,omitempty"`
	HasMore bool              `json:"has_more"`
}

func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.ListSources(r.Context(), service.ListSourcesInput{
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SourceResponse, len(output.Items))
	for i, s := range output.Items {
		responses[i] = sourceToResponse(s)
	}

	api.Success(w, http.StatusOK, SourceListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *SourceHandler) ListMeta(w http.ResponseWriter, r *http.Request) {
	metas, err := h.svc.ListMeta(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SourceMetaResponse, len(metas))
	for i, m := range metas {
		resp := &SourceMetaResponse{
			SourceResponse: *sourceToResponse(&m.Source),
			SegmentCount:   m.SegmentCount,
		}
		if m.LastModified != nil {
			resp.LastModified = m.LastModified.Format(time.RFC3339)
		}
		responses[i] = resp
	}

	api.Success(w, http.StatusOK, map[string]any{"items": responses})
}

func (h *SourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := domain.SourcePatch{
		OriginalSourceID: req.OriginalSourceID,
		Properties:       req.Properties,
	}
	if req.Name != nil {
		if *req.Name == "" {
			api.Error(w, http.StatusBadRequest, "name must not be empty")
			return
		}
		patch.Name = req.Name
	}
	if req.Language != nil {
		lang := domain.Language(*req.Language)
		if !domain.IsValidLanguage(lang) {
			api.Error(w, http.StatusBadRequest, "invalid language")
			return
		}
		patch.Language = &lang
	}
	if req.Type != nil {
		t := domain.SourceType(*req.Type)
		patch.Type = &t
	}

	source, err := h.svc.Update(r.Context(), id, patch, middleware.GetActor(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, sourceToResponse(source))
}

func (h *SourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
