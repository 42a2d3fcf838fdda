package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/classtrack/lms/internal/filestore"
	"github.com/classtrack/lms/internal/pkg/errcode"
	"github.com/classtrack/lms/internal/pkg/response"
)

// FileHandler serves mirrored lesson and test content out of the store.
type FileHandler struct {
	store filestore.Store
}

func NewFileHandler(store filestore.Store) *FileHandler {
	return &FileHandler{store: store}
}

func (h *FileHandler) Get(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		response.Error(c, errcode.ErrInvalid, "key required")
		return
	}
	reader, err := h.store.Open(c.Request.Context(), key)
	if err != nil {
		response.Error(c, errcode.ErrNotFound, "not found")
		return
	}
	defer func() { _ = reader.Close() }()
	c.Header("Content-Type", "application/octet-stream")
	c.Status(200)
	_, _ = io.Copy(c.Writer, reader)
}
