package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/love-timeline-api/pkg/storage"
)

func TestMediaHandlerServe(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir(), "LoveTimelineMedias", "http://localhost/media")
	require.NoError(t, err)
	require.NoError(t, store.Upload(context.Background(), "pdfs/1-abc-menu.pdf", []byte("%PDF-1.4\n%test"), "application/pdf"))
	h := NewMediaHandler(store)

	serve := func(bucket, key string) int {
		c, w := newGinContext(http.MethodGet, "/media/"+bucket+key, nil)
		c.Params = gin.Params{{Key: "bucket", Value: bucket}, {Key: "key", Value: key}}
		h.Serve(c)
		if w.Code == http.StatusOK {
			assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
			assert.Equal(t, "%PDF-1.4\n%test", w.Body.String())
		}
		return w.Code
	}

	assert.Equal(t, http.StatusOK, serve("LoveTimelineMedias", "/pdfs/1-abc-menu.pdf"))
	assert.Equal(t, http.StatusNotFound, serve("Other", "/pdfs/1-abc-menu.pdf"))
	assert.Equal(t, http.StatusNotFound, serve("LoveTimelineMedias", "/pdfs/missing.pdf"))
	assert.Equal(t, http.StatusNotFound, serve("LoveTimelineMedias", "/../../etc/passwd"))
}
