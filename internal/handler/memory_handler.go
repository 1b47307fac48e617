package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/middleware"
	"github.com/noah-isme/love-timeline-api/internal/models"
	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
	"github.com/noah-isme/love-timeline-api/pkg/response"
)

type memoryService interface {
	CreateRecords(ctx context.Context, actor *models.JWTClaims, reqs []dto.CreateMemoryRequest) ([]models.Memory, error)
	List(ctx context.Context, query dto.MemoryQuery) ([]models.Memory, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
	BatchDelete(ctx context.Context, actor *models.JWTClaims, req dto.BatchDeleteRequest) (*dto.BatchDeleteResponse, error)
	Like(ctx context.Context, id string) (int, error)
	Unlike(ctx context.Context, id string) (int, error)
}

// MemoryHandler exposes the persistence API for memories.
type MemoryHandler struct {
	service memoryService
}

// NewMemoryHandler constructs the handler.
func NewMemoryHandler(svc memoryService) *MemoryHandler {
	return &MemoryHandler{service: svc}
}

// Create godoc
// @Summary Create memories
// @Description Accepts a single memory object or an array, inserted in one transaction
// @Tags Memories
// @Accept json
// @Produce json
// @Param payload body dto.CreateMemoryRequest true "Memory or array of memories"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /memories [post]
func (h *MemoryHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable body"))
		return
	}

	var reqs []dto.CreateMemoryRequest
	single := !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("["))
	if single {
		var req dto.CreateMemoryRequest
		err = json.Unmarshal(raw, &req)
		reqs = []dto.CreateMemoryRequest{req}
	} else {
		err = json.Unmarshal(raw, &reqs)
	}
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid memory payload"))
		return
	}

	created, err := h.service.CreateRecords(c.Request.Context(), claims, reqs)
	if err != nil {
		response.Error(c, err)
		return
	}
	if single && len(created) == 1 {
		response.Created(c, created[0])
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List memories
// @Tags Memories
// @Produce json
// @Param date query string false "Exact date (YYYY-MM-DD)"
// @Param from query string false "Inclusive lower date bound"
// @Param to query string false "Inclusive upper date bound"
// @Param type query string false "Memory type"
// @Success 200 {object} response.Envelope
// @Router /memories [get]
func (h *MemoryHandler) List(c *gin.Context) {
	var query dto.MemoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	records, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(records))
	response.JSON(c, http.StatusOK, records, nil, middleware.ExtractMeta(c))
}

// Delete godoc
// @Summary Delete memory
// @Tags Memories
// @Param id path string true "Memory ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /memories/{id} [delete]
func (h *MemoryHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BatchDelete godoc
// @Summary Delete several memories
// @Description Removes the blobs first and aborts when storage refuses
// @Tags Memories
// @Accept json
// @Produce json
// @Param payload body dto.BatchDeleteRequest true "IDs"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /memories/batch-delete [post]
func (h *MemoryHandler) BatchDelete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.BatchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	res, err := h.service.BatchDelete(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Like godoc
// @Summary Like memory
// @Tags Memories
// @Param id path string true "Memory ID"
// @Success 200 {object} response.Envelope
// @Router /memories/{id}/like [post]
func (h *MemoryHandler) Like(c *gin.Context) {
	h.adjust(c, h.service.Like)
}

// Unlike godoc
// @Summary Unlike memory
// @Description The counter never drops below zero
// @Tags Memories
// @Param id path string true "Memory ID"
// @Success 200 {object} response.Envelope
// @Router /memories/{id}/like [delete]
func (h *MemoryHandler) Unlike(c *gin.Context) {
	h.adjust(c, h.service.Unlike)
}

func (h *MemoryHandler) adjust(c *gin.Context, fn func(context.Context, string) (int, error)) {
	id := c.Param("id")
	likes, err := fn(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.LikeResponse{ID: id, Likes: likes}, nil)
}
