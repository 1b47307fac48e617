package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/middleware"
	"github.com/noah-isme/love-timeline-api/internal/models"
	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
)

var adminClaims = &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, DisplayName: "Ana"}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type memoryServiceMock struct {
	got       []dto.CreateMemoryRequest
	listQuery dto.MemoryQuery
	records   []models.Memory
	likes     int
	err       error
}

func (m *memoryServiceMock) CreateRecords(ctx context.Context, actor *models.JWTClaims, reqs []dto.CreateMemoryRequest) ([]models.Memory, error) {
	m.got = reqs
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Memory, len(reqs))
	for i, r := range reqs {
		out[i] = models.Memory{ID: "m" + string(rune('1'+i)), Date: r.Date, Type: r.Type}
	}
	return out, nil
}

func (m *memoryServiceMock) List(ctx context.Context, query dto.MemoryQuery) ([]models.Memory, error) {
	m.listQuery = query
	return m.records, m.err
}

func (m *memoryServiceMock) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	return m.err
}

func (m *memoryServiceMock) BatchDelete(ctx context.Context, actor *models.JWTClaims, req dto.BatchDeleteRequest) (*dto.BatchDeleteResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.BatchDeleteResponse{Deleted: int64(len(req.IDs)), BlobsRemoved: len(req.IDs)}, nil
}

func (m *memoryServiceMock) Like(ctx context.Context, id string) (int, error) {
	m.likes++
	return m.likes, m.err
}

func (m *memoryServiceMock) Unlike(ctx context.Context, id string) (int, error) {
	if m.likes > 0 {
		m.likes--
	}
	return m.likes, m.err
}

func TestMemoryHandlerCreateSingleAndArray(t *testing.T) {
	svc := &memoryServiceMock{}
	h := NewMemoryHandler(svc)

	c, w := newGinContext(http.MethodPost, "/memories", []byte(`{"date":"2025-06-01","type":"note","content":"hi"}`))
	c.Set(middleware.ContextUserKey, adminClaims)
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.got, 1)
	assert.Equal(t, "hi", *svc.got[0].Content)
	var single models.Memory
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &single))
	assert.Equal(t, "m1", single.ID)

	c, w = newGinContext(http.MethodPost, "/memories", []byte(` [{"date":"2025-06-01","type":"photo","media_url":"a"},{"date":"2025-06-01","type":"photo","media_url":"b"}]`))
	c.Set(middleware.ContextUserKey, adminClaims)
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.got, 2)
	var many []models.Memory
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &many))
	assert.Len(t, many, 2)
}

func TestMemoryHandlerCreateRejects(t *testing.T) {
	h := NewMemoryHandler(&memoryServiceMock{})

	c, w := newGinContext(http.MethodPost, "/memories", []byte(`{}`))
	h.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/memories", []byte(`{"date":`))
	c.Set(middleware.ContextUserKey, adminClaims)
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h = NewMemoryHandler(&memoryServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "only admins can add memories")})
	c, w = newGinContext(http.MethodPost, "/memories", []byte(`{"date":"2025-06-01","type":"note"}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u2", Role: models.RoleViewer})
	h.Create(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMemoryHandlerList(t *testing.T) {
	svc := &memoryServiceMock{records: []models.Memory{{ID: "a"}, {ID: "b"}}}
	h := NewMemoryHandler(svc)

	c, w := newGinContext(http.MethodGet, "/memories?from=2025-01-01&type=photo", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-01-01", svc.listQuery.From)
	assert.Equal(t, "photo", svc.listQuery.Type)
	assert.EqualValues(t, 2, decode(t, w).Meta["count"])
}

func TestMemoryHandlerLikeAndBatchDelete(t *testing.T) {
	svc := &memoryServiceMock{}
	h := NewMemoryHandler(svc)

	c, w := newGinContext(http.MethodPost, "/memories/m1/like", nil)
	c.Params = gin.Params{{Key: "id", Value: "m1"}}
	h.Like(c)
	require.Equal(t, http.StatusOK, w.Code)
	var res dto.LikeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, dto.LikeResponse{ID: "m1", Likes: 1}, res)

	c, w = newGinContext(http.MethodPost, "/memories/batch-delete", []byte(`{"ids":["a","b"]}`))
	c.Set(middleware.ContextUserKey, adminClaims)
	h.BatchDelete(c)
	require.Equal(t, http.StatusOK, w.Code)

	h = NewMemoryHandler(&memoryServiceMock{err: appErrors.Clone(appErrors.ErrStorage, "blob removal failed")})
	c, w = newGinContext(http.MethodPost, "/memories/batch-delete", []byte(`{"ids":["a"]}`))
	c.Set(middleware.ContextUserKey, adminClaims)
	h.BatchDelete(c)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
