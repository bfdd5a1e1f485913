package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lead-ingest/api/middleware"
	"lead-ingest/internal/ingest"
	"lead-ingest/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ingest.Result), args.Error(1)
}

func setupWebhookRouter(h *WebhookHandler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/webhook/:userId", h.HandleWebhook)
	r.GET("/webhook/:userId", h.Verify)
	r.POST("/webhook", h.MissingUserID)
	r.GET("/webhook", h.MissingUserID)
	return r
}

func TestHandleWebhook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	tests := []struct {
		name        string
		path        string
		body        string
		setupMock   func(*MockIngester)
		wantStatus  int
		wantMessage string
		wantFields  map[string]interface{}
	}{
		{
			name: "New lead",
			path: "/webhook/user-1",
			body: `{"full_name": "Ana", "source": "widget"}`,
			setupMock: func(m *MockIngester) {
				m.On("Ingest", mock.Anything, mock.MatchedBy(func(r ingest.Request) bool {
					return r.UserID == "user-1" && string(r.Body) == `{"full_name": "Ana", "source": "widget"}` && r.RequestID != ""
				})).Return(ingest.Result{
					Outcome: ingest.OutcomeLeadCreated,
					Message: "Lead received and stored successfully",
					LeadID:  "6650f0a1c2b3d4e5f6a7b8c9",
				}, nil)
			},
			wantStatus:  http.StatusOK,
			wantMessage: "Lead received and stored successfully",
			wantFields:  map[string]interface{}{"leadId": "6650f0a1c2b3d4e5f6a7b8c9"},
		},
		{
			name: "Status update",
			path: "/webhook/user-1",
			body: `{"contact": {"id": "c1"}, "customData": {"Status": "won"}}`,
			setupMock: func(m *MockIngester) {
				m.On("Ingest", mock.Anything, mock.Anything).Return(ingest.Result{
					Outcome:   ingest.OutcomeStatusUpdated,
					Message:   "Status updated for contact c1",
					ContactID: "c1",
					Status:    models.LeadStatusWon,
					Matched:   1,
				}, nil)
			},
			wantStatus:  http.StatusOK,
			wantMessage: "Status updated for contact c1",
			wantFields:  map[string]interface{}{"status": "Ganho", "matched": float64(1)},
		},
		{
			name: "Unconfigured user",
			path: "/webhook/user-2",
			body: `{}`,
			setupMock: func(m *MockIngester) {
				m.On("Ingest", mock.Anything, mock.Anything).Return(ingest.Result{}, ingest.ErrUnconfigured)
			},
			wantStatus:  http.StatusForbidden,
			wantMessage: "User configuration not found or incomplete.",
		},
		{
			name: "Processing failure",
			path: "/webhook/user-1",
			body: `not json`,
			setupMock: func(m *MockIngester) {
				m.On("Ingest", mock.Anything, mock.Anything).
					Return(ingest.Result{}, errors.New("invalid JSON payload: unexpected token"))
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Error processing webhook",
			wantFields:  map[string]interface{}{"error": "invalid JSON payload: unexpected token"},
		},
		{
			name:        "Missing user id",
			path:        "/webhook",
			body:        `{}`,
			setupMock:   func(m *MockIngester) {},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "User ID is missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockIngester := new(MockIngester)
			tt.setupMock(mockIngester)

			handler := NewWebhookHandler(logger, mockIngester, "secret")
			router := setupWebhookRouter(handler)

			req := httptest.NewRequest(http.MethodPost, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantMessage, resp["message"])
			for k, v := range tt.wantFields {
				assert.Equal(t, v, resp[k], k)
			}
			mockIngester.AssertExpectations(t)
		})
	}
}

func TestHandleWebhookKeepsInboundRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockIngester := new(MockIngester)
	mockIngester.On("Ingest", mock.Anything, mock.MatchedBy(func(r ingest.Request) bool {
		return r.RequestID == "req-42"
	})).Return(ingest.Result{Outcome: ingest.OutcomeLeadCreated, Message: "ok"}, nil)

	router := setupWebhookRouter(NewWebhookHandler(zap.NewNop(), mockIngester, "secret"))

	req := httptest.NewRequest(http.MethodPost, "/webhook/user-1", bytes.NewBufferString(`{}`))
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))
	mockIngester.AssertExpectations(t)
}

func TestVerify(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		verifyToken string
		query       string
		wantStatus  int
		wantBody    string
	}{
		{
			name:        "Matching token",
			verifyToken: "secret",
			query:       "?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=1158201444",
			wantStatus:  http.StatusOK,
			wantBody:    "1158201444",
		},
		{
			name:        "Challenge returned verbatim",
			verifyToken: "secret",
			query:       "?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=abc%25d",
			wantStatus:  http.StatusOK,
			wantBody:    "abc%d",
		},
		{
			name:        "Wrong token",
			verifyToken: "secret",
			query:       "?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1",
			wantStatus:  http.StatusForbidden,
			wantBody:    "Forbidden",
		},
		{
			name:        "Wrong mode",
			verifyToken: "secret",
			query:       "?hub.mode=unsubscribe&hub.verify_token=secret&hub.challenge=1",
			wantStatus:  http.StatusForbidden,
			wantBody:    "Forbidden",
		},
		{
			name:        "Server token not configured",
			verifyToken: "",
			query:       "?hub.mode=subscribe&hub.verify_token=&hub.challenge=1",
			wantStatus:  http.StatusForbidden,
			wantBody:    "Forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockIngester := new(MockIngester)
			router := setupWebhookRouter(NewWebhookHandler(zap.NewNop(), mockIngester, tt.verifyToken))

			req := httptest.NewRequest(http.MethodGet, "/webhook/user-1"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
			mockIngester.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
		})
	}
}

func TestVerifyWithoutUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := setupWebhookRouter(NewWebhookHandler(zap.NewNop(), new(MockIngester), "secret"))

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message": "User ID is missing"}`, w.Body.String())
}
