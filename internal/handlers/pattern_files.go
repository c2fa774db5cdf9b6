package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/patternloft/patternloft/internal/services"
	"github.com/patternloft/patternloft/pkg/response"
)

// FileHandler manages pattern file metadata.
type FileHandler struct {
	files *services.FileService
}

func NewFileHandler(files *services.FileService) *FileHandler {
	return &FileHandler{files: files}
}

// POST /api/patterns/:id/files
func (h *FileHandler) Attach(c *gin.Context) {
	var req services.AttachFileInput
	if !bindAndValidate(c, &req) {
		return
	}

	file, err := h.files.Attach(requestContext(c), currentUserID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, file)
}

// GET /api/patterns/:id/files
func (h *FileHandler) List(c *gin.Context) {
	files, err := h.files.ListForPattern(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, files)
}

// DELETE /api/files/:id
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.files.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
