package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
	"github.com/noah-isme/love-timeline-api/internal/session"
	"github.com/noah-isme/love-timeline-api/internal/upload"
	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
	"github.com/noah-isme/love-timeline-api/pkg/response"
	"github.com/noah-isme/love-timeline-api/pkg/storage"
)

type previewVerifier interface {
	Verify(token string) (storage.PreviewRef, error)
}

// UploadHandler accepts add-memory submissions into a viewer's queue and
// serves previews of files that have not been uploaded yet.
type UploadHandler struct {
	sessions     sessionProvider
	previews     previewVerifier
	validator    *validator.Validate
	maxFileBytes int64
}

// NewUploadHandler constructs the handler. maxFileBytes <= 0 disables the size check.
func NewUploadHandler(sessions sessionProvider, previews previewVerifier, validate *validator.Validate, maxFileBytes int64) *UploadHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &UploadHandler{sessions: sessions, previews: previews, validator: validate, maxFileBytes: maxFileBytes}
}

// Enqueue godoc
// @Summary Add a memory
// @Description Placeholders appear in the timeline at once; files upload in the background
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param date formData string true "Date (YYYY-MM-DD)"
// @Param type formData string true "photo, video, note, audio or pdf"
// @Param content formData string false "Caption or note text"
// @Param metadata formData string false "Extra metadata as JSON object"
// @Param files formData file false "Files for media memories"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /timeline/uploads [post]
func (h *UploadHandler) Enqueue(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if claims.Role != models.RoleAdmin {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only admins can add memories"))
		return
	}

	var form dto.EnqueueForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form"))
		return
	}
	if err := h.validator.Struct(form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form"))
		return
	}

	meta := models.Metadata{}
	if form.Metadata != "" {
		if err := json.Unmarshal([]byte(form.Metadata), &meta); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "metadata must be a JSON object"))
			return
		}
	}

	files, err := h.readFiles(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	s, err := h.sessions.Get(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, sessionError(err))
		return
	}
	res, err := s.AddMemory(session.AddMemoryInput{
		Date:     form.Date,
		Type:     models.MemoryType(form.Type),
		Content:  form.Content,
		Metadata: meta,
		Files:    files,
	})
	if err != nil {
		response.Error(c, sessionError(err))
		return
	}
	response.JSON(c, http.StatusAccepted, res, nil)
}

func (h *UploadHandler) readFiles(c *gin.Context) ([]upload.File, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart body")
	}
	headers := form.File["files"]
	out := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		if h.maxFileBytes > 0 && fh.Size > h.maxFileBytes {
			return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("%s exceeds %d bytes", fh.Filename, h.maxFileBytes))
		}
		data, err := readHeader(fh)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file")
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = mimetype.Detect(data).String()
		}
		out = append(out, upload.File{Name: fh.Filename, ContentType: contentType, Data: data})
	}
	return out, nil
}

func readHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// List godoc
// @Summary Upload queue
// @Tags Uploads
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timeline/uploads [get]
func (h *UploadHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	s, err := h.sessions.Get(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, sessionError(err))
		return
	}
	items := s.Queue().Items()
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"active": s.Queue().Active()})
}

// Dismiss godoc
// @Summary Dismiss a finished queue item
// @Tags Uploads
// @Param id path string true "Queue item ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /timeline/uploads/{id} [delete]
func (h *UploadHandler) Dismiss(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	s, err := h.sessions.Get(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, sessionError(err))
		return
	}
	if err := s.Queue().Dismiss(c.Param("id")); err != nil {
		response.Error(c, sessionError(err))
		return
	}
	response.NoContent(c)
}

// Preview godoc
// @Summary Serve a queued file
// @Description Token-addressed so plain image tags can load it
// @Tags Uploads
// @Param token path string true "Preview token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /previews/{token} [get]
func (h *UploadHandler) Preview(c *gin.Context) {
	if h.previews == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	ref, err := h.previews.Verify(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid preview token"))
		return
	}
	s, ok := h.sessions.Lookup(ref.ViewerID)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "preview no longer available"))
		return
	}
	f, ok := s.Queue().File(ref.ItemID, ref.Index)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "preview no longer available"))
		return
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(f.Data).String()
	}
	c.Header("Cache-Control", "private, max-age=60")
	c.Data(http.StatusOK, contentType, f.Data)
}
