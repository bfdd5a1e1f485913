package ingest

import (
	"context"
	"fmt"

	"lead-ingest/internal/attribution"
	"lead-ingest/internal/models"
	"lead-ingest/internal/payload"
	"lead-ingest/pkg/metrics"
)

// isoMillis matches the timestamps the CRM sends in date_created.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// buildLead assembles the full lead record. Organic leads never reach the
// Graph API and carry placeholder creative fields.
func (s *Service) buildLead(ctx context.Context, userID string, p payload.Value, accessToken, contactID, rawStatus string) *models.Lead {
	attr := attribution.Classify(p)
	now := s.now()

	status := models.LeadStatusOpen
	if rawStatus != "" {
		status = models.TranslateStatus(rawStatus)
	}

	lead := &models.Lead{
		UserID:      userID,
		ContactID:   contactID,
		DateCreated: p.String("date_created", now.Format(isoMillis)),
		LeadName:    p.String("full_name", models.NameNotAvailable),
		LeadPhone:   p.String("phone", models.PhoneNotAvailable),
		Origin:      attr.Origin,
		Medium:      attr.Medium,
		Source:      models.LeadSourceMetaInsta,
		AdID:        attr.AdID,
		Workflow: fmt.Sprintf("%s (%s)",
			p.String("workflow.name", models.WorkflowNotAvailable),
			p.String("workflow.id", models.WorkflowNotAvailable)),
		RawPayload: p,
		ReceivedAt: now,
		Status:     status,
	}

	if attr.IsOrganic {
		metrics.LeadsClassified.WithLabelValues("organic").Inc()
		lead.Campaign = models.CampaignOrganic
		lead.MediaType = models.NotAvailable
		lead.AdLink = models.AdLinkPlaceholder
		lead.AdThumbnail = ""
		lead.AdVideo = ""
		lead.AdTitle = models.NotAvailable
		lead.AdDescription = models.NotAvailable
		lead.CtwaClickID = models.NotAvailable
		lead.MetaAPIResponse = []models.APIDiagnostic{}
		lead.MetaAPIRequestURL = "[]"
		return lead
	}

	metrics.LeadsClassified.WithLabelValues("non_organic").Inc()
	info := s.resolver.Resolve(ctx, attr.AdID, accessToken)

	lead.Campaign = info.Name
	lead.MediaType = p.String("customData.Medya Type Of Ad / Post", models.NotAvailable)
	lead.AdLink = p.String("customData.Ad / Post URL", models.AdLinkPlaceholder)
	lead.AdThumbnail = p.String("customData.Thumbnail Url Of Ad / Post", "")
	lead.AdVideo = p.String("customData.Video Url Of Ad / Post", "")
	lead.AdTitle = p.String("customData.Head Line Of Ad / Post", models.NotAvailable)
	lead.AdDescription = p.String("customData.Body Of Ad / Post", models.NotAvailable)
	lead.CtwaClickID = p.FirstString(models.NotAvailable,
		"contact.lastAttributionSource.ctwa_clid",
		"customData.Click-To-Whatsapp Click ID")
	lead.MetaAPIResponse = info.APIResponses
	lead.MetaAPIRequestURL = info.RequestURLsJSON()
	return lead
}
