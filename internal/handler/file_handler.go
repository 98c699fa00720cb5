package handler

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/notebase-ai/notebase/internal/filestore"
	"github.com/notebase-ai/notebase/internal/pkg/errcode"
	"github.com/notebase-ai/notebase/internal/pkg/response"
)

// FileHandler serves exported artifact files when the store has no public
// URL of its own (the local backend).
type FileHandler struct {
	store filestore.Store
}

func NewFileHandler(store filestore.Store) *FileHandler {
	return &FileHandler{store: store}
}

func (h *FileHandler) Get(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		response.Error(c, errcode.ErrInvalid, "missing file key")
		return
	}
	reader, err := h.store.Open(c.Request.Context(), key)
	if err != nil {
		handleError(c, err)
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}
