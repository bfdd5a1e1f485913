package metaads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lead-ingest/internal/models"
	"lead-ingest/internal/payload"
	"lead-ingest/pkg/metrics"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Campaign names returned when resolution is skipped or fails.
const (
	CampaignNoAdID      = "Não disponível (sem Ad ID)"
	CampaignConfigError = "Erro de configuração do servidor"
	CampaignAPIFailure  = "Não disponível (falha na API)"
)

const (
	redactedAccessToken  = "REDACTED"
	maxResponseBodyBytes = 1 << 20
)

// chain lists the field fetched at each hop. The value read at hop N is the
// object id requested at hop N+1; the last value is the campaign name.
var chain = []string{"adset_id", "campaign_id", "name"}

// urlListCodec leaves '&' unescaped so recorded URLs stay readable.
var urlListCodec = jsoniter.Config{EscapeHTML: false, IndentionStep: 2}.Froze()

// Config holds the Graph API settings.
type Config struct {
	BaseURL     string
	Version     string
	Timeout     time.Duration
	RedactToken bool
}

// CampaignInfo is the outcome of a resolution together with every request made.
type CampaignInfo struct {
	Name         string
	APIResponses []models.APIDiagnostic
	RequestURLs  []string
}

// RequestURLsJSON renders the attempted URLs as an indented JSON array.
func (c CampaignInfo) RequestURLsJSON() string {
	urls := c.RequestURLs
	if urls == nil {
		urls = []string{}
	}
	out, err := urlListCodec.Marshal(urls)
	if err != nil {
		return "[]"
	}
	return string(out)
}

// Resolver walks ad → ad set → campaign against the Graph API.
type Resolver struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewResolver(cfg Config, logger *zap.Logger) *Resolver {
	return NewResolverWithClient(cfg, &http.Client{Timeout: cfg.Timeout}, logger)
}

func NewResolverWithClient(cfg Config, client *http.Client, logger *zap.Logger) *Resolver {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Resolver{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// Resolve never returns an error: failures are reported through Name and the
// collected diagnostics, and the chain stops at the first failing hop.
func (r *Resolver) Resolve(ctx context.Context, adID, accessToken string) CampaignInfo {
	info := CampaignInfo{
		APIResponses: []models.APIDiagnostic{},
		RequestURLs:  []string{},
	}

	if adID == "" {
		info.Name = CampaignNoAdID
		info.APIResponses = append(info.APIResponses, skippedDiagnostic("ad id not provided"))
		return info
	}
	if accessToken == "" {
		r.logger.Error("Graph API access token is not configured for this user")
		info.Name = CampaignConfigError
		info.APIResponses = append(info.APIResponses, skippedDiagnostic("access token not configured"))
		return info
	}

	id := adID
	for i, field := range chain {
		step := i + 1
		value, diag, err := r.fetchField(ctx, step, id, field, accessToken)
		info.RequestURLs = append(info.RequestURLs, diag.URL)
		info.APIResponses = append(info.APIResponses, diag)
		if err != nil {
			metrics.GraphAPIRequests.WithLabelValues(field, "failed").Inc()
			r.logger.Warn("Graph API lookup failed",
				zap.Int("step", step),
				zap.String("object_id", id),
				zap.String("field", field),
				zap.Error(err))
			info.Name = CampaignAPIFailure
			return info
		}
		metrics.GraphAPIRequests.WithLabelValues(field, "success").Inc()
		id = value
	}

	info.Name = id
	return info
}

// fetchField performs GET /{objectID}?fields={field}. The diagnostic is filled
// in before the outcome is checked so it reflects exactly what was exchanged.
func (r *Resolver) fetchField(ctx context.Context, step int, objectID, field, accessToken string) (string, models.APIDiagnostic, error) {
	reqURL := r.objectURL(objectID, field, accessToken)
	diag := models.APIDiagnostic{
		Step: step,
		URL:  r.objectURL(objectID, field, r.recordedToken(accessToken)),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		diag.Error = scrubToken(err.Error(), accessToken)
		diag.Response = failureBody(diag.Error)
		return "", diag, fmt.Errorf("error creating request: %s", diag.Error)
	}
	req.Header.Set("Accept", "application/json")

	r.logger.Debug("Querying Graph API", zap.Int("step", step), zap.String("object_id", objectID), zap.String("field", field))

	resp, err := r.client.Do(req)
	if err != nil {
		diag.Error = scrubToken(err.Error(), accessToken)
		diag.Response = failureBody(diag.Error)
		return "", diag, fmt.Errorf("error making request: %s", diag.Error)
	}
	defer resp.Body.Close()

	diag.StatusCode = resp.StatusCode
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		diag.Error = err.Error()
		diag.Response = failureBody(diag.Error)
		return "", diag, fmt.Errorf("error reading response: %w", err)
	}
	diag.Response = decodeBody(body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", diag, fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	value := diag.Response.String(field, "")
	if value == "" {
		return "", diag, fmt.Errorf("response has no %q field", field)
	}
	return value, diag, nil
}

func (r *Resolver) objectURL(objectID, field, token string) string {
	base := r.cfg.BaseURL
	if r.cfg.Version != "" {
		base += "/" + r.cfg.Version
	}
	return fmt.Sprintf("%s/%s?fields=%s&access_token=%s", base, url.PathEscape(objectID), field, url.QueryEscape(token))
}

func (r *Resolver) recordedToken(token string) string {
	if r.cfg.RedactToken {
		return redactedAccessToken
	}
	return token
}

// scrubToken removes the token from transport errors, which embed the request URL.
func scrubToken(msg, token string) string {
	if token == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(token), redactedAccessToken)
	return strings.ReplaceAll(msg, token, redactedAccessToken)
}

func decodeBody(body []byte) payload.Value {
	v, err := payload.Parse(body)
	if err != nil {
		return payload.From(map[string]any{"raw": string(body)})
	}
	return v
}

// skippedDiagnostic records why the chain was not started. Step stays 0.
func skippedDiagnostic(reason string) models.APIDiagnostic {
	return models.APIDiagnostic{
		Response: payload.From(map[string]any{"error": reason}),
		Error:    reason,
	}
}

func failureBody(details string) payload.Value {
	return payload.From(map[string]any{
		"error":   "request failed",
		"details": details,
	})
}
