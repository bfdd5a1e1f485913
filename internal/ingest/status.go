package ingest

import (
	"context"
	"fmt"

	"lead-ingest/internal/models"

	"go.uber.org/zap"
)

// HandleStatusUpdate applies a CRM status event to the user's stored leads
// for contactID. It reports handled=false, without error, when either input is
// empty or when no stored lead matches; the caller then ingests the event as a
// new lead.
func (s *Service) HandleStatusUpdate(ctx context.Context, contactID, rawStatus, userID string) (Result, bool, error) {
	if contactID == "" || rawStatus == "" {
		return Result{}, false, nil
	}

	status := models.TranslateStatus(rawStatus)
	matched, err := s.leads.UpdateLeadStatus(ctx, userID, contactID, status)
	if err != nil {
		return Result{}, false, fmt.Errorf("update status for contact %s: %w", contactID, err)
	}
	if matched == 0 {
		s.logger.Info("Contact not found for status update, treating as new lead",
			zap.String("user_id", userID),
			zap.String("contact_id", contactID))
		return Result{}, false, nil
	}

	s.logger.Info("Lead status updated",
		zap.String("user_id", userID),
		zap.String("contact_id", contactID),
		zap.String("status", string(status)),
		zap.Int64("matched", matched))

	s.publish(ctx, models.LeadEvent{
		Type:       models.LeadEventStatusUpdated,
		UserID:     userID,
		ContactID:  contactID,
		Status:     status,
		Matched:    matched,
		OccurredAt: s.now(),
	})

	return Result{
		Outcome:   OutcomeStatusUpdated,
		Message:   fmt.Sprintf("Status updated for contact %s", contactID),
		ContactID: contactID,
		Status:    status,
		Matched:   matched,
	}, true, nil
}
