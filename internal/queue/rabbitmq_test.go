package queue

import (
	"context"
	"testing"
	"time"

	"lead-ingest/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublishing(t *testing.T) {
	occurred := time.Date(2024, 5, 10, 13, 45, 30, 0, time.UTC)
	event := models.LeadEvent{
		Type:       models.LeadEventStatusUpdated,
		UserID:     "user-1",
		ContactID:  "c1",
		Status:     models.LeadStatusWon,
		Matched:    2,
		OccurredAt: occurred,
	}

	msg, err := newPublishing(event)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, occurred, msg.Timestamp)
	assert.Equal(t, "user-1", msg.Headers["user_id"])
	assert.Equal(t, "lead.status_updated", msg.Headers["event_type"])
	assert.JSONEq(t, `{
		"type": "lead.status_updated",
		"userId": "user-1",
		"contactId": "c1",
		"status": "Ganho",
		"matched": 2,
		"occurredAt": "2024-05-10T13:45:30Z"
	}`, string(msg.Body))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), models.LeadEvent{Type: models.LeadEventCreated}))
	assert.NoError(t, p.Close())
}
