package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/domain/voice"
	"github.com/plangrove/voicelink/internal/fulfillment"
)

// FulfillmentHandler receives intent batches from the voice platform.
type FulfillmentHandler struct {
	Dispatcher *fulfillment.Dispatcher
	Logger     *zap.Logger
}

// NewFulfillmentHandler creates the handler.
func NewFulfillmentHandler(d *fulfillment.Dispatcher, logger *zap.Logger) *FulfillmentHandler {
	return &FulfillmentHandler{Dispatcher: d, Logger: logger}
}

// Handle authenticates and dispatches one fulfillment request.
func (h *FulfillmentHandler) Handle(c *gin.Context) {
	var req voice.FulfillmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	resp, err := h.Dispatcher.Dispatch(c.Request.Context(), c.GetHeader("Authorization"), &req)
	if err != nil {
		switch {
		case errors.Is(err, voice.ErrDenied):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authFailure"})
		case errors.Is(err, voice.ErrUnsupported):
			c.JSON(http.StatusBadRequest, gin.H{"error": "notSupported"})
		default:
			h.log().Error("fulfillment dispatch failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "transientError"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *FulfillmentHandler) log() *zap.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return zap.L()
}
