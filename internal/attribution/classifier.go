// Package attribution derives the origin and medium of a lead from the
// several payload shapes the CRM uses to report attribution.
package attribution

import (
	"strings"

	"lead-ingest/internal/models"
	"lead-ingest/internal/payload"
)

const (
	OriginBioInsta = "Bio Insta"
	OriginSite     = "Site"
	OriginPaid     = "Mídia Paga"
)

const paidSocialSession = "paid social"

// Result is the attribution of a single payload.
type Result struct {
	Origin    string
	Medium    string
	IsOrganic bool
	AdID      string
}

// attributionPaths lists where the CRM puts attribution data, newest integration first.
var attributionPaths = []string{
	"contact.lastAttributionSource",
	"contact.attributionSource",
	"attributionSource",
}

func attributionField(p payload.Value, field, def string) string {
	paths := make([]string, len(attributionPaths))
	for i, prefix := range attributionPaths {
		paths[i] = prefix + "." + field
	}
	return p.FirstString(def, paths...)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

// Classify applies the origin rules in order; the first match wins.
func Classify(p payload.Value) Result {
	medium := attributionField(p, "medium", models.NotAvailable)

	var origin string
	switch {
	case p.String("customData.Contact Source", "") == OriginBioInsta:
		origin = OriginBioInsta
	case containsFold(p.String("source", ""), "widget"),
		containsFold(p.String("contact_source", ""), "widget"),
		containsFold(medium, "widget"):
		origin = OriginSite
	default:
		session := attributionField(p, "sessionSource", models.NotAvailable)
		if strings.ToLower(session) == paidSocialSession {
			origin = OriginPaid
		} else {
			origin = session
		}
	}

	res := Result{
		Origin:    origin,
		Medium:    medium,
		IsOrganic: IsOrganic(origin),
	}
	if !res.IsOrganic {
		res.AdID = p.FirstString("", "contact.lastAttributionSource.adId", "customData.Ad / Post Id")
	}
	return res
}

// IsOrganic reports whether origin is a non-paid channel.
func IsOrganic(origin string) bool {
	return origin == OriginBioInsta || origin == OriginSite
}
