package handlers

import (
	"context"
	"errors"
	"net/http"

	"lead-ingest/api/middleware"
	"lead-ingest/internal/ingest"
	"lead-ingest/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ingester runs a webhook body through the lead pipeline.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

type WebhookHandler struct {
	logger      *zap.Logger
	ingester    Ingester
	verifyToken string
}

func NewWebhookHandler(logger *zap.Logger, ingester Ingester, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		logger:      logger,
		ingester:    ingester,
		verifyToken: verifyToken,
	}
}

// HandleWebhook serves POST /webhook/:userId.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	metrics.WebhookReceived.WithLabelValues(http.MethodPost).Inc()

	userID := c.Param("userId")
	if userID == "" {
		h.MissingUserID(c)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		h.logger.Error("Failed to read webhook body", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "Error processing webhook", "error": err.Error()})
		return
	}

	res, err := h.ingester.Ingest(c.Request.Context(), ingest.Request{
		UserID:    userID,
		Body:      body,
		RequestID: c.GetString(middleware.RequestIDKey),
	})
	switch {
	case errors.Is(err, ingest.ErrMissingUserID):
		h.MissingUserID(c)
		return
	case errors.Is(err, ingest.ErrUnconfigured):
		c.JSON(http.StatusForbidden, gin.H{"message": "User configuration not found or incomplete."})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"message": "Error processing webhook", "error": err.Error()})
		return
	}

	resp := gin.H{"message": res.Message}
	if res.LeadID != "" {
		resp["leadId"] = res.LeadID
	}
	if res.Outcome == ingest.OutcomeStatusUpdated {
		resp["status"] = res.Status
		resp["matched"] = res.Matched
	}
	c.JSON(http.StatusOK, resp)
}

// Verify answers the platform subscription handshake on GET /webhook/:userId.
func (h *WebhookHandler) Verify(c *gin.Context) {
	metrics.WebhookReceived.WithLabelValues(http.MethodGet).Inc()

	if c.Param("userId") == "" {
		h.MissingUserID(c)
		return
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	if mode != "subscribe" || h.verifyToken == "" || token != h.verifyToken {
		metrics.VerificationRequests.WithLabelValues("rejected").Inc()
		h.logger.Warn("Webhook verification failed",
			zap.String("user_id", c.Param("userId")),
			zap.String("mode", mode))
		c.String(http.StatusForbidden, "Forbidden")
		return
	}

	metrics.VerificationRequests.WithLabelValues("accepted").Inc()
	h.logger.Info("Webhook verified", zap.String("user_id", c.Param("userId")))
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// MissingUserID handles /webhook routes without a user segment.
func (h *WebhookHandler) MissingUserID(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"message": "User ID is missing"})
}
