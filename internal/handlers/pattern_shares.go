package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/patternloft/patternloft/internal/services"
	"github.com/patternloft/patternloft/pkg/response"
)

// ShareHandler manages per-user grants on a pattern.
type ShareHandler struct {
	shares *services.ShareService
}

func NewShareHandler(shares *services.ShareService) *ShareHandler {
	return &ShareHandler{shares: shares}
}

// GET /api/patterns/:id/shares
func (h *ShareHandler) List(c *gin.Context) {
	shares, err := h.shares.List(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, shares)
}

// POST /api/patterns/:id/shares
func (h *ShareHandler) Share(c *gin.Context) {
	var req services.ShareInput
	if !bindAndValidate(c, &req) {
		return
	}

	share, err := h.shares.Share(requestContext(c), currentUserID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, share)
}

// DELETE /api/patterns/:id/shares/:userID
func (h *ShareHandler) Unshare(c *gin.Context) {
	err := h.shares.Unshare(requestContext(c), currentUserID(c), c.Param("id"), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
