package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
	"github.com/noah-isme/love-timeline-api/pkg/response"
)

type commentService interface {
	Create(ctx context.Context, req dto.CreateCommentRequest) (*models.Comment, error)
	List(ctx context.Context, date string) ([]models.Comment, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
	DeleteByDate(ctx context.Context, actor *models.JWTClaims, date string) (int64, error)
}

// CommentHandler exposes the guestbook.
type CommentHandler struct {
	service commentService
}

// NewCommentHandler constructs the handler.
func NewCommentHandler(svc commentService) *CommentHandler {
	return &CommentHandler{service: svc}
}

// Create godoc
// @Summary Leave a comment
// @Tags Comments
// @Accept json
// @Produce json
// @Param payload body dto.CreateCommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}
	comment, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// List godoc
// @Summary List comments
// @Tags Comments
// @Produce json
// @Param date query string false "Only comments for this date"
// @Success 200 {object} response.Envelope
// @Router /comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	comments, err := h.service.List(c.Request.Context(), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}

// Delete godoc
// @Summary Delete comment
// @Tags Comments
// @Param id path string true "Comment ID"
// @Success 204
// @Router /comments/{id} [delete]
func (h *CommentHandler) Delete(c *gin.Context) {
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

// DeleteByDate godoc
// @Summary Delete all comments of a date
// @Tags Comments
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /comments/by-date/{date} [delete]
func (h *CommentHandler) DeleteByDate(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	deleted, err := h.service.DeleteByDate(c.Request.Context(), claims, c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}
