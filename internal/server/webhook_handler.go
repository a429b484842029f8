package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/harborline/storefront/internal/webhook"
	"go.uber.org/zap"
)

// handleIdentityWebhook is the ingestion gate: signature first, no side
// effects on rejection. Store failures answer non-2xx so the provider
// redelivers; every downstream path is idempotent under that redelivery.
func (h *httpHandler) handleIdentityWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
		return
	}

	err = h.verifier.Verify(
		c.GetHeader(webhook.HeaderEventID),
		c.GetHeader(webhook.HeaderTimestamp),
		c.GetHeader(webhook.HeaderSignature),
		body,
	)
	switch {
	case errors.Is(err, webhook.ErrMissingSignatureHeaders):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_signature_headers"})
		return
	case err != nil:
		h.logger.Warn("webhook signature rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature_verification_failed"})
		return
	}

	envelope, err := webhook.ParseEvent(body)
	if err != nil {
		h.logger.Warn("webhook event rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_event"})
		return
	}

	if err := h.processor.Process(c.Request.Context(), envelope); err != nil {
		h.logger.Error("webhook event processing failed",
			zap.String("event_type", string(envelope.Type)),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "processing_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}
