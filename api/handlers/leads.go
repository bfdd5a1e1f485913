package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lead-ingest/internal/models"
	"lead-ingest/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LeadRepository is the read side of the document store plus the user settings.
type LeadRepository interface {
	ListLeads(ctx context.Context, userID string, filter storage.LeadFilter) ([]*models.Lead, error)
	ListWebhookLogs(ctx context.Context, userID string, limit int64) ([]*models.WebhookLog, error)
	ListWebhookErrors(ctx context.Context, userID string, limit int64) ([]*models.WebhookError, error)
	GetUserCredential(ctx context.Context, userID string) (*models.UserCredential, error)
	UpsertUserCredential(ctx context.Context, cred *models.UserCredential) error
}

type LeadsHandler struct {
	logger        *zap.Logger
	repo          LeadRepository
	crmLocationID string
	now           func() time.Time
}

func NewLeadsHandler(logger *zap.Logger, repo LeadRepository, crmLocationID string) *LeadsHandler {
	return &LeadsHandler{
		logger:        logger,
		repo:          repo,
		crmLocationID: crmLocationID,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// LeadView is a stored lead plus the link to the contact in the CRM.
type LeadView struct {
	*models.Lead
	CrmURL string `json:"crmUrl,omitempty"`
}

type settingsRequest struct {
	MetaAccessToken  string `json:"metaAccessToken" binding:"required"`
	WhitelabelDomain string `json:"whitelabelDomain"`
}

// ListLeads serves GET /api/users/:userId/leads.
func (h *LeadsHandler) ListLeads(c *gin.Context) {
	userID := c.Param("userId")

	limit, err := parseLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := storage.LeadFilter{Limit: limit}
	if raw := c.Query("status"); raw != "" {
		status := models.LeadStatus(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", raw)})
			return
		}
		filter.Status = status
	}

	leads, err := h.repo.ListLeads(c.Request.Context(), userID, filter)
	if err != nil {
		h.internalError(c, "Failed to list leads", userID, err)
		return
	}

	cred, err := h.repo.GetUserCredential(c.Request.Context(), userID)
	if err != nil {
		h.internalError(c, "Failed to load user settings", userID, err)
		return
	}
	domain := ""
	if cred != nil {
		domain = cred.WhitelabelDomain
	}

	views := make([]LeadView, 0, len(leads))
	for _, lead := range leads {
		views = append(views, LeadView{
			Lead:   lead,
			CrmURL: h.crmURL(domain, lead.ContactID),
		})
	}

	c.JSON(http.StatusOK, gin.H{"leads": views, "count": len(views)})
}

// ListLogs serves GET /api/users/:userId/logs.
func (h *LeadsHandler) ListLogs(c *gin.Context) {
	userID := c.Param("userId")
	limit, err := parseLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logs, err := h.repo.ListWebhookLogs(c.Request.Context(), userID, limit)
	if err != nil {
		h.internalError(c, "Failed to list webhook logs", userID, err)
		return
	}
	if logs == nil {
		logs = []*models.WebhookLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

// ListErrors serves GET /api/users/:userId/errors.
func (h *LeadsHandler) ListErrors(c *gin.Context) {
	userID := c.Param("userId")
	limit, err := parseLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	errs, err := h.repo.ListWebhookErrors(c.Request.Context(), userID, limit)
	if err != nil {
		h.internalError(c, "Failed to list webhook errors", userID, err)
		return
	}
	if errs == nil {
		errs = []*models.WebhookError{}
	}
	c.JSON(http.StatusOK, gin.H{"errors": errs, "count": len(errs)})
}

// UpdateSettings serves PUT /api/users/:userId/settings.
func (h *LeadsHandler) UpdateSettings(c *gin.Context) {
	userID := c.Param("userId")

	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "metaAccessToken is required"})
		return
	}
	token := strings.TrimSpace(req.MetaAccessToken)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "metaAccessToken is required"})
		return
	}

	cred := &models.UserCredential{
		UserID:           userID,
		MetaAccessToken:  token,
		WhitelabelDomain: strings.TrimSpace(req.WhitelabelDomain),
		UpdatedAt:        h.now(),
	}
	if err := h.repo.UpsertUserCredential(c.Request.Context(), cred); err != nil {
		h.internalError(c, "Failed to save user settings", userID, err)
		return
	}

	h.logger.Info("User settings updated", zap.String("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"message": "Settings saved"})
}

// crmURL links to the contact page of the user's white-label CRM. It is empty
// when any part of the link is unknown.
func (h *LeadsHandler) crmURL(domain, contactID string) string {
	if domain == "" || contactID == "" || h.crmLocationID == "" {
		return ""
	}
	base := strings.TrimRight(domain, "/")
	if !strings.HasPrefix(base, "http") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/v2/location/%s/contacts/detail/%s", base, h.crmLocationID, contactID)
}

func (h *LeadsHandler) internalError(c *gin.Context, msg, userID string, err error) {
	h.logger.Error(msg, zap.String("user_id", userID), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func parseLimit(c *gin.Context) (int64, error) {
	raw := c.Query("limit")
	if raw == "" {
		return storage.DefaultListLimit, nil
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return storage.ClampLimit(limit), nil
}
