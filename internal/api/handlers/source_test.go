package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glossa-works/glossa/internal/api/middleware"
	"github.com/glossa-works/glossa/internal/domain"
	"github.com/glossa-works/glossa/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSourceService struct {
	mock.Mock
}

func (m *MockSourceService) Create(ctx context.Context, input service.CreateSourceInput) (*domain.Source, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceService) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceService) ListSources(ctx context.Context, input service.ListSourcesInput) (*service.ListSourcesOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListSourcesOutput), args.Error(1)
}

func (m *MockSourceService) ListMeta(ctx context.Context) ([]*domain.SourceMeta, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SourceMeta), args.Error(1)
}

func (m *MockSourceService) Update(ctx context.Context, id string, patch domain.SourcePatch, actor string) (*domain.Source, error) {
	args := m.Called(ctx, id, patch, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestSource() *domain.Source {
	now := time.Now().UTC()
	return &domain.Source{
		ID:         "src-123",
		Name:       "Genesis",
		Language:   domain.LanguageEnglish,
		Type:       domain.SourceTypeBook,
		Properties: map[string]any{},
		CreatedBy:  "tester",
		CreatedAt:  now,
		ModifiedBy: "tester",
		ModifiedAt: now,
	}
}

func requestWithActor(method, url string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.ActorKey, "tester")
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestSourceHandler_Create_Success(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	expected := newTestSource()
	mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(input service.CreateSourceInput) bool {
		return input.Name == "Genesis" && input.Language == domain.LanguageEnglish && input.Actor == "tester"
	})).Return(expected, nil)

	body := `{"name":"Genesis","language":"en","type":"book"}`
	req := requestWithActor(http.MethodPost, "/sources", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestSourceHandler_Create_InvalidLanguage(t *testing.T) {
	handler := NewSourceHandler(new(MockSourceService))

	body := `{"name":"Genesis","language":"xx"}`
	req := requestWithActor(http.MethodPost, "/sources", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSourceHandler_Create_MissingName(t *testing.T) {
	handler := NewSourceHandler(new(MockSourceService))

	body := `{"language":"en"}`
	req := requestWithActor(http.MethodPost, "/sources", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSourceHandler_Get_Success(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	mockSvc.On("GetByID", mock.Anything, "src-123").Return(newTestSource(), nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/sources/src-123", nil), "id", "src-123")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data SourceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "src-123", resp.Data.ID)
	assert.Equal(t, "en", resp.Data.Language)
}

func TestSourceHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	mockSvc.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrSourceNotFound)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/sources/missing", nil), "id", "missing")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSourceHandler_List_Defaults(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	mockSvc.On("ListSources", mock.Anything, service.ListSourcesInput{Limit: 20}).
		Return(&service.ListSourcesOutput{Items: []*domain.Source{newTestSource()}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/sources", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestSourceHandler_Update_Success(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	updated := newTestSource()
	updated.Name = "Bereshit"
	mockSvc.On("Update", mock.Anything, "src-123", mock.MatchedBy(func(patch domain.SourcePatch) bool {
		return patch.Name != nil && *patch.Name == "Bereshit" && patch.Language == nil
	}), "tester").Return(updated, nil)

	body := `{"name":"Bereshit"}`
	req := withURLParam(requestWithActor(http.MethodPatch, "/sources/src-123", []byte(body)), "id", "src-123")
	w := httptest.NewRecorder()

	handler.Update(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestSourceHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	mockSvc.On("Delete", mock.Anything, "src-123").Return(nil)

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/sources/src-123", nil), "id", "src-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}
