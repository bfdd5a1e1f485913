package storage

import (
	"context"
	"testing"
	"time"

	"lead-ingest/internal/metaads"
	"lead-ingest/internal/models"
	"lead-ingest/internal/payload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in   int64
		want int64
	}{
		{in: -1, want: DefaultListLimit},
		{in: 0, want: DefaultListLimit},
		{in: 1, want: 1},
		{in: 250, want: 250},
		{in: MaxListLimit, want: MaxListLimit},
		{in: MaxListLimit + 1, want: MaxListLimit},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampLimit(tt.in), "limit %d", tt.in)
	}
}

func TestStatusUpdate(t *testing.T) {
	filter, update := statusUpdate("user-1", "c1", models.LeadStatusLost)

	assert.Equal(t, bson.M{"userId": "user-1", "contactId": "c1"}, filter)
	assert.Equal(t, bson.M{"$set": bson.M{"status": models.LeadStatusLost}}, update)
}

func mustParse(t *testing.T, raw string) payload.Value {
	t.Helper()
	v, err := payload.Parse([]byte(raw))
	require.NoError(t, err)
	return v
}

func TestLeadBSONRoundTrip(t *testing.T) {
	resolver := metaads.NewResolver(metaads.Config{BaseURL: "http://127.0.0.1:0"}, zap.NewNop())
	noAdID := resolver.Resolve(context.Background(), "", "tok")
	noToken := resolver.Resolve(context.Background(), "120", "")
	received := time.Date(2024, 5, 10, 13, 45, 30, 123000000, time.UTC)

	tests := []struct {
		name      string
		raw       payload.Value
		diags     []models.APIDiagnostic
		wantError string
		wantBody  string
	}{
		{
			name:      "No ad id",
			raw:       mustParse(t, `{"full_name": "Bob", "phone": "123"}`),
			diags:     noAdID.APIResponses,
			wantError: "ad id not provided",
			wantBody:  "ad id not provided",
		},
		{
			name:      "Missing token",
			raw:       mustParse(t, `{"contact": {"lastAttributionSource": {"adId": "120"}}}`),
			diags:     noToken.APIResponses,
			wantError: "access token not configured",
			wantBody:  "access token not configured",
		},
		{
			name: "Graph API error body",
			raw:  mustParse(t, `{"phone": 5511999999999}`),
			diags: []models.APIDiagnostic{{
				Step:       1,
				URL:        "https://graph.facebook.com/v20.0/120?fields=adset_id&access_token=REDACTED",
				StatusCode: 400,
				Response:   mustParse(t, `{"error": {"message": "Invalid OAuth access token", "code": 190}}`),
				Error:      "API returned status 400",
			}},
			wantError: "API returned status 400",
			wantBody:  "Invalid OAuth access token",
		},
		{
			name:      "Null payload",
			raw:       mustParse(t, `null`),
			diags:     noAdID.APIResponses,
			wantError: "ad id not provided",
			wantBody:  "ad id not provided",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := &models.Lead{
				ID:              primitive.NewObjectID(),
				UserID:          "user-1",
				LeadName:        models.NameNotAvailable,
				Origin:          models.NotAvailable,
				Campaign:        metaads.CampaignNoAdID,
				RawPayload:      tt.raw,
				MetaAPIResponse: tt.diags,
				ReceivedAt:      received,
				Status:          models.LeadStatusOpen,
			}

			data, err := bson.Marshal(lead)
			require.NoError(t, err)

			var decoded models.Lead
			require.NoError(t, bson.Unmarshal(data, &decoded))

			assert.Equal(t, lead.ID, decoded.ID)
			assert.Equal(t, lead.Campaign, decoded.Campaign)
			assert.Equal(t, lead.Status, decoded.Status)
			assert.True(t, received.Equal(decoded.ReceivedAt))
			assert.Equal(t, tt.raw.IsNull(), decoded.RawPayload.IsNull())

			require.Len(t, decoded.MetaAPIResponse, 1)
			diag := decoded.MetaAPIResponse[0]
			assert.Equal(t, tt.diags[0].Step, diag.Step)
			assert.Equal(t, tt.diags[0].URL, diag.URL)
			assert.Equal(t, tt.diags[0].StatusCode, diag.StatusCode)
			assert.Equal(t, tt.wantError, diag.Error)
			body := diag.Response.FirstString("", "error", "error.message")
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestPreconditionDiagnosticOmitsStep(t *testing.T) {
	resolver := metaads.NewResolver(metaads.Config{}, zap.NewNop())
	info := resolver.Resolve(context.Background(), "", "tok")

	data, err := bson.Marshal(info.APIResponses[0])
	require.NoError(t, err)

	var raw bson.M
	require.NoError(t, bson.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "step")
	assert.NotContains(t, raw, "url")
	assert.Equal(t, "ad id not provided", raw["error"])
}

func TestAuditDocumentsBSONRoundTrip(t *testing.T) {
	received := time.Date(2024, 5, 10, 13, 45, 30, 0, time.UTC)

	t.Run("Webhook log with object payload", func(t *testing.T) {
		entry := models.WebhookLog{
			UserID:     "user-1",
			LeadName:   "Ana",
			Payload:    mustParse(t, `{"full_name": "Ana", "phone": 5511999999999}`),
			RequestID:  "req-1",
			ReceivedAt: received,
		}
		data, err := bson.Marshal(entry)
		require.NoError(t, err)

		var decoded models.WebhookLog
		require.NoError(t, bson.Unmarshal(data, &decoded))
		assert.Equal(t, "Ana", decoded.Payload.String("full_name", ""))
		assert.Equal(t, "5511999999999", decoded.Payload.String("phone", ""))
		assert.Equal(t, "req-1", decoded.RequestID)
		assert.True(t, received.Equal(decoded.ReceivedAt))
	})

	t.Run("Webhook log with null payload", func(t *testing.T) {
		entry := models.WebhookLog{
			UserID:     "user-1",
			LeadName:   models.NameNotAvailable,
			Payload:    mustParse(t, `null`),
			ReceivedAt: received,
		}
		data, err := bson.Marshal(entry)
		require.NoError(t, err)

		var decoded models.WebhookLog
		require.NoError(t, bson.Unmarshal(data, &decoded))
		assert.True(t, decoded.Payload.IsNull())
		assert.Equal(t, models.NameNotAvailable, decoded.LeadName)
	})

	t.Run("Webhook error keeps raw text", func(t *testing.T) {
		entry := models.WebhookError{
			UserID:     "user-1",
			Error:      "invalid JSON payload",
			Payload:    "full_name=Ana&phone=1",
			ReceivedAt: received,
		}
		data, err := bson.Marshal(entry)
		require.NoError(t, err)

		var decoded models.WebhookError
		require.NoError(t, bson.Unmarshal(data, &decoded))
		assert.Equal(t, entry.Payload, decoded.Payload)
		assert.Equal(t, entry.Error, decoded.Error)
	})
}
