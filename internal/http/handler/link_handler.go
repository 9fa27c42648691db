package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/oauth"
)

// LinkHandler manages a user's Link from the app side: which groves are
// exposed to the voice platform, and tearing the link down entirely.
type LinkHandler struct {
	OAuth  *oauth.Service
	Logger *zap.Logger
}

// NewLinkHandler creates the handler.
func NewLinkHandler(svc *oauth.Service, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{OAuth: svc, Logger: logger}
}

// SetGroves replaces the set of groves the user exposes.
func (h *LinkHandler) SetGroves(c *gin.Context) {
	userID := c.Param("userId")

	var req struct {
		GroveIDs []string `json:"groveIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if req.GroveIDs == nil {
		req.GroveIDs = []string{}
	}

	if err := h.OAuth.SetLinkedGroves(c.Request.Context(), userID, req.GroveIDs); err != nil {
		h.log().Error("grove update failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groveIds": req.GroveIDs})
}

// Unlink removes the user's Link.
func (h *LinkHandler) Unlink(c *gin.Context) {
	userID := c.Param("userId")

	if err := h.OAuth.Unlink(c.Request.Context(), userID); err != nil {
		h.log().Error("unlink failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LinkHandler) log() *zap.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return zap.L()
}
