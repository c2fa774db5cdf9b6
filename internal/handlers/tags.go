package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/patternloft/patternloft/internal/services"
	"github.com/patternloft/patternloft/pkg/response"
)

// TagHandler manages the shared tag taxonomy.
type TagHandler struct {
	tags *services.TagService
}

func NewTagHandler(tags *services.TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

type proposeTagRequest struct {
	Name string `json:"name" validate:"required,max=80"`
}

// GET /api/tags?status=approved
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.tags.List(requestContext(c), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tags)
}

// POST /api/tags
func (h *TagHandler) Propose(c *gin.Context) {
	var req proposeTagRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tag, err := h.tags.Propose(requestContext(c), currentUserID(c), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, tag)
}

// POST /api/tags/:id/approve
func (h *TagHandler) Approve(c *gin.Context) {
	tag, err := h.tags.Approve(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tag)
}

// DELETE /api/tags/:id
func (h *TagHandler) Delete(c *gin.Context) {
	if err := h.tags.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
