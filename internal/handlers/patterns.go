package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/patternloft/patternloft/internal/services"
	"github.com/patternloft/patternloft/pkg/response"
)

// PatternHandler exposes the pattern catalog over HTTP.
type PatternHandler struct {
	patterns *services.PatternService
}

func NewPatternHandler(patterns *services.PatternService) *PatternHandler {
	return &PatternHandler{patterns: patterns}
}

// GET /api/patterns
func (h *PatternHandler) List(c *gin.Context) {
	patterns, err := h.patterns.List(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, patterns)
}

// POST /api/patterns
func (h *PatternHandler) Create(c *gin.Context) {
	var req services.CreatePatternInput
	if !bindAndValidate(c, &req) {
		return
	}

	pattern, err := h.patterns.Create(requestContext(c), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, pattern)
}

// GET /api/patterns/:id
func (h *PatternHandler) Get(c *gin.Context) {
	pattern, err := h.patterns.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, pattern)
}

// PATCH /api/patterns/:id
func (h *PatternHandler) Update(c *gin.Context) {
	var req services.UpdatePatternInput
	if !bindAndValidate(c, &req) {
		return
	}

	pattern, err := h.patterns.Update(requestContext(c), currentUserID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, pattern)
}

// DELETE /api/patterns/:id
func (h *PatternHandler) Delete(c *gin.Context) {
	if err := h.patterns.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/patterns/:id/tags/:tagID
func (h *PatternHandler) AssignTag(c *gin.Context) {
	err := h.patterns.AssignTag(requestContext(c), currentUserID(c), c.Param("id"), c.Param("tagID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assigned": true})
}

// DELETE /api/patterns/:id/tags/:tagID
func (h *PatternHandler) RemoveTag(c *gin.Context) {
	err := h.patterns.RemoveTag(requestContext(c), currentUserID(c), c.Param("id"), c.Param("tagID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
