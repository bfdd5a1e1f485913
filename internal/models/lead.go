package models

import (
	"strings"
	"time"

	"lead-ingest/internal/payload"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LeadStatus is one of the four canonical pipeline states, stored with the
// dashboard's Portuguese labels.
type LeadStatus string

const (
	LeadStatusOpen      LeadStatus = "Aberto"
	LeadStatusWon       LeadStatus = "Ganho"
	LeadStatusLost      LeadStatus = "Perdido"
	LeadStatusAbandoned LeadStatus = "Abandonado"
)

// Placeholder labels written in place of missing payload data.
const (
	NotAvailable         = "Não disponível"
	NameNotAvailable     = "Nome não disponível"
	PhoneNotAvailable    = "Telefone não disponível"
	CampaignOrganic      = "Orgânico"
	LeadSourceMetaInsta  = "Instagram/Facebook"
	AdLinkPlaceholder    = "#"
	WorkflowNotAvailable = "N/A"
)

// TranslateStatus maps the CRM's status vocabulary onto LeadStatus.
// Unknown values map to LeadStatusOpen.
func TranslateStatus(raw string) LeadStatus {
	switch strings.ToLower(raw) {
	case "won":
		return LeadStatusWon
	case "lost":
		return LeadStatusLost
	case "abandoned":
		return LeadStatusAbandoned
	default:
		return LeadStatusOpen
	}
}

// Valid reports whether s is one of the canonical labels.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusOpen, LeadStatusWon, LeadStatusLost, LeadStatusAbandoned:
		return true
	}
	return false
}

// APIDiagnostic captures one Graph API hop: what was requested and what came back.
// Step is 1-based; 0 means no request was attempted and is omitted when stored.
type APIDiagnostic struct {
	Step       int           `json:"step,omitempty" bson:"step,omitempty"`
	URL        string        `json:"url,omitempty" bson:"url,omitempty"`
	StatusCode int           `json:"statusCode,omitempty" bson:"statusCode,omitempty"`
	Response   payload.Value `json:"response" bson:"response"`
	Error      string        `json:"error,omitempty" bson:"error,omitempty"`
}

// Lead is the normalized record persisted in the leads collection.
type Lead struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID            string             `json:"userId" bson:"userId"`
	ContactID         string             `json:"contactId" bson:"contactId"`
	DateCreated       string             `json:"dateCreated" bson:"dateCreated"`
	LeadName          string             `json:"leadName" bson:"leadName"`
	LeadPhone         string             `json:"leadPhone" bson:"leadPhone"`
	Origin            string             `json:"origin" bson:"origin"`
	Medium            string             `json:"medium" bson:"medium"`
	Source            string             `json:"source" bson:"source"`
	Campaign          string             `json:"campaign" bson:"campaign"`
	AdID              string             `json:"adId" bson:"adId"`
	MediaType         string             `json:"mediaType" bson:"mediaType"`
	AdLink            string             `json:"adLink" bson:"adLink"`
	AdThumbnail       string             `json:"adThumbnail" bson:"adThumbnail"`
	AdVideo           string             `json:"adVideo" bson:"adVideo"`
	AdTitle           string             `json:"adTitle" bson:"adTitle"`
	AdDescription     string             `json:"adDescription" bson:"adDescription"`
	CtwaClickID       string             `json:"ctwaClickId" bson:"ctwaClickId"`
	Workflow          string             `json:"workflow" bson:"workflow"`
	RawPayload        payload.Value      `json:"rawPayload" bson:"rawPayload"`
	MetaAPIResponse   []APIDiagnostic    `json:"metaApiResponse" bson:"metaApiResponse"`
	MetaAPIRequestURL string             `json:"metaApiRequestUrl" bson:"metaApiRequestUrl"`
	ReceivedAt        time.Time          `json:"receivedAt" bson:"receivedAt"`
	Status            LeadStatus         `json:"status" bson:"status"`
}
