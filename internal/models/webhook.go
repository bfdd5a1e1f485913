package models

import (
	"time"

	"lead-ingest/internal/payload"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebhookLog is the append-only record of every inbound webhook body that parsed as JSON.
type WebhookLog struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID     string             `json:"userId" bson:"userId"`
	LeadName   string             `json:"leadName" bson:"leadName"`
	Payload    payload.Value      `json:"payload" bson:"payload"`
	RequestID  string             `json:"requestId,omitempty" bson:"requestId,omitempty"`
	ReceivedAt time.Time          `json:"receivedAt" bson:"receivedAt"`
}

// WebhookError records a failed ingestion. Payload holds the raw request text
// because the body may not have been valid JSON.
type WebhookError struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID     string             `json:"userId" bson:"userId"`
	Error      string             `json:"error" bson:"error"`
	Payload    string             `json:"payload" bson:"payload"`
	RequestID  string             `json:"requestId,omitempty" bson:"requestId,omitempty"`
	ReceivedAt time.Time          `json:"receivedAt" bson:"receivedAt"`
}

// UserCredential is the per-user settings document. The ingestion path only reads it.
type UserCredential struct {
	UserID           string    `json:"userId" bson:"_id"`
	MetaAccessToken  string    `json:"metaAccessToken" bson:"metaAccessToken"`
	WhitelabelDomain string    `json:"whitelabelDomain,omitempty" bson:"whitelabelDomain,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// LeadEventType is used as the routing key of published lead events.
type LeadEventType string

const (
	LeadEventCreated       LeadEventType = "lead.created"
	LeadEventStatusUpdated LeadEventType = "lead.status_updated"
)

// LeadEvent notifies dashboard consumers that a user's leads changed.
type LeadEvent struct {
	Type       LeadEventType `json:"type"`
	UserID     string        `json:"userId"`
	ContactID  string        `json:"contactId,omitempty"`
	LeadID     string        `json:"leadId,omitempty"`
	Status     LeadStatus    `json:"status"`
	Matched    int64         `json:"matched,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}
