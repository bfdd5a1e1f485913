// Package ingest turns inbound CRM webhooks into stored leads or lead status
// updates. Every request leaves an audit trail, including failed ones.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead-ingest/internal/metaads"
	"lead-ingest/internal/models"
	"lead-ingest/internal/payload"
	"lead-ingest/internal/queue"
	"lead-ingest/pkg/metrics"

	"go.uber.org/zap"
)

var (
	// ErrMissingUserID is returned when the route carries no user id.
	ErrMissingUserID = errors.New("user id is missing")
	// ErrUnconfigured is returned when the user has no stored access token.
	ErrUnconfigured = errors.New("user configuration not found or incomplete")
	// ErrInvalidPayload wraps body decoding failures.
	ErrInvalidPayload = errors.New("invalid JSON payload")
)

const (
	auditLogs   = "webhook_logs"
	auditErrors = "webhook_errors"
)

type LeadStore interface {
	InsertLead(ctx context.Context, lead *models.Lead) error
	UpdateLeadStatus(ctx context.Context, userID, contactID string, status models.LeadStatus) (int64, error)
}

type AuditLog interface {
	InsertWebhookLog(ctx context.Context, entry *models.WebhookLog) error
	InsertWebhookError(ctx context.Context, entry *models.WebhookError) error
}

type CredentialStore interface {
	// GetAccessToken returns "" when the user has no token.
	GetAccessToken(ctx context.Context, userID string) (string, error)
}

type CampaignResolver interface {
	Resolve(ctx context.Context, adID, accessToken string) metaads.CampaignInfo
}

// Request is one inbound webhook call.
type Request struct {
	UserID    string
	Body      []byte
	RequestID string
}

type Outcome string

const (
	OutcomeLeadCreated   Outcome = "lead_created"
	OutcomeStatusUpdated Outcome = "status_updated"
)

// Result describes a successfully handled webhook.
type Result struct {
	Outcome   Outcome
	Message   string
	LeadID    string
	ContactID string
	Status    models.LeadStatus
	Matched   int64
}

type Service struct {
	leads     LeadStore
	audit     AuditLog
	creds     CredentialStore
	resolver  CampaignResolver
	publisher queue.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(leads LeadStore, audit AuditLog, creds CredentialStore, resolver CampaignResolver, publisher queue.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	return &Service{
		leads:     leads,
		audit:     audit,
		creds:     creds,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ingest runs one webhook through the pipeline. It returns ErrMissingUserID or
// ErrUnconfigured for configuration rejections; any other error is a
// processing failure that has already been written to the error audit log.
//
// The pipeline is detached from the caller's cancellation: once started it
// runs to completion or to its first failure.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	if req.UserID == "" {
		metrics.WebhookProcessed.WithLabelValues("rejected").Inc()
		return Result{}, ErrMissingUserID
	}

	ctx = context.WithoutCancel(ctx)
	res, err := s.process(ctx, req)

	outcome := string(res.Outcome)
	switch {
	case errors.Is(err, ErrUnconfigured):
		outcome = "unconfigured"
		s.logger.Warn("Rejecting webhook for unconfigured user",
			zap.String("user_id", req.UserID),
			zap.String("request_id", req.RequestID))
	case err != nil:
		outcome = "failed"
		s.recordError(ctx, req, err)
	}
	metrics.WebhookProcessed.WithLabelValues(outcome).Inc()
	metrics.WebhookProcessingTime.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return res, err
}

func (s *Service) process(ctx context.Context, req Request) (Result, error) {
	p, err := payload.Parse(req.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	s.bestEffort(auditLogs, req, func() error {
		return s.audit.InsertWebhookLog(ctx, &models.WebhookLog{
			UserID:     req.UserID,
			LeadName:   p.String("full_name", models.NameNotAvailable),
			Payload:    p,
			RequestID:  req.RequestID,
			ReceivedAt: s.now(),
		})
	})

	token, err := s.creds.GetAccessToken(ctx, req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("load user settings: %w", err)
	}
	if token == "" {
		return Result{}, ErrUnconfigured
	}

	contactID := p.FirstString("", "contact.id", "contact_id")
	rawStatus := p.String("customData.Status", "")

	res, handled, err := s.HandleStatusUpdate(ctx, contactID, rawStatus, req.UserID)
	if err != nil {
		return Result{}, err
	}
	if handled {
		return res, nil
	}

	lead := s.buildLead(ctx, req.UserID, p, token, contactID, rawStatus)
	if err := s.leads.InsertLead(ctx, lead); err != nil {
		return Result{}, fmt.Errorf("store lead: %w", err)
	}

	s.logger.Info("Lead stored",
		zap.String("user_id", req.UserID),
		zap.String("lead_id", lead.ID.Hex()),
		zap.String("contact_id", contactID),
		zap.String("origin", lead.Origin),
		zap.String("campaign", lead.Campaign),
		zap.String("request_id", req.RequestID))

	s.publish(ctx, models.LeadEvent{
		Type:       models.LeadEventCreated,
		UserID:     req.UserID,
		ContactID:  contactID,
		LeadID:     lead.ID.Hex(),
		Status:     lead.Status,
		OccurredAt: s.now(),
	})

	return Result{
		Outcome:   OutcomeLeadCreated,
		Message:   "Lead received and stored successfully",
		LeadID:    lead.ID.Hex(),
		ContactID: contactID,
		Status:    lead.Status,
	}, nil
}

// bestEffort runs an audit write whose failure is logged and counted but
// never propagated to the response path.
func (s *Service) bestEffort(collection string, req Request, write func() error) {
	if err := write(); err != nil {
		metrics.AuditWriteFailures.WithLabelValues(collection).Inc()
		s.logger.Error("Failed to write audit record",
			zap.String("collection", collection),
			zap.String("user_id", req.UserID),
			zap.String("request_id", req.RequestID),
			zap.Error(err))
	}
}

func (s *Service) recordError(ctx context.Context, req Request, cause error) {
	s.logger.Error("Error processing webhook",
		zap.String("user_id", req.UserID),
		zap.String("request_id", req.RequestID),
		zap.Error(cause))

	s.bestEffort(auditErrors, req, func() error {
		return s.audit.InsertWebhookError(ctx, &models.WebhookError{
			UserID:     req.UserID,
			Error:      cause.Error(),
			Payload:    string(req.Body),
			RequestID:  req.RequestID,
			ReceivedAt: s.now(),
		})
	})
}

func (s *Service) publish(ctx context.Context, event models.LeadEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		metrics.LeadEventsPublished.WithLabelValues(string(event.Type), "failed").Inc()
		s.logger.Warn("Failed to publish lead event",
			zap.String("type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return
	}
	metrics.LeadEventsPublished.WithLabelValues(string(event.Type), "success").Inc()
}
