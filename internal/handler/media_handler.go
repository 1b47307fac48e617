package handler

import (
	"errors"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
	"github.com/noah-isme/love-timeline-api/pkg/response"
	"github.com/noah-isme/love-timeline-api/pkg/storage"
)

type mediaStore interface {
	Bucket() string
	Open(key string) (*os.File, string, error)
}

// MediaHandler serves stored blobs read-only under the public prefix.
type MediaHandler struct {
	store mediaStore
}

// NewMediaHandler constructs the handler.
func NewMediaHandler(store mediaStore) *MediaHandler {
	return &MediaHandler{store: store}
}

// Serve godoc
// @Summary Serve a stored blob
// @Tags Media
// @Param bucket path string true "Bucket"
// @Param key path string true "Object key"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /media/{bucket}/{key} [get]
func (h *MediaHandler) Serve(c *gin.Context) {
	if c.Param("bucket") != h.store.Bucket() {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	key := c.Param("key")
	file, contentType, err := h.store.Open(key)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) || errors.Is(err, os.ErrNotExist) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read object"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read object"))
		return
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(c.Writer, c.Request, path.Base(key), info.ModTime(), file)
}
