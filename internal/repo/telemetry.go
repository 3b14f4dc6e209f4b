package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/autonexops/autonex-console/internal/cache"
	"github.com/autonexops/autonex-console/internal/models"
)

// TelemetryClient wraps the AUTONEX platform backend API. Read calls return
// typed domain values; write calls return the fields the console consumes.
//
// A shared rate limiter throttles outbound requests so that five concurrent
// pollers plus the demo workflow cannot overwhelm the backend. The service
// list and time-series queries are served from cache under short TTLs; demo
// status is always fetched fresh because it gates demo re-entry.
type TelemetryClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	cache         cache.Provider
	servicesTTL   time.Duration
	timeseriesTTL time.Duration
}

// TelemetryConfig carries construction parameters for the client.
type TelemetryConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSec    float64
	RateBurst     int
	Cache         cache.Provider
	ServicesTTL   time.Duration
	TimeseriesTTL time.Duration
}

// NewTelemetryClient constructs a client targeting the configured backend.
func NewTelemetryClient(cfg TelemetryConfig) *TelemetryClient {
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	provider := cfg.Cache
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &TelemetryClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		limiter:       limiter,
		cache:         provider,
		servicesTTL:   cfg.ServicesTTL,
		timeseriesTTL: cfg.TimeseriesTTL,
	}
}

// DemoStatus reads the failure-injection state. Never cached: the demo
// workflow relies on a fresh value to gate re-entry.
func (c *TelemetryClient) DemoStatus(ctx context.Context) (models.DemoStatus, error) {
	var response models.DemoStatus
	if err := c.getJSON(ctx, "/api/demo/status", nil, &response); err != nil {
		return models.DemoStatus{}, fmt.Errorf("demo status request failed: %w", err)
	}
	return response, nil
}

// ListServices returns the monitored service names in backend order.
func (c *TelemetryClient) ListServices(ctx context.Context) ([]string, error) {
	const cacheKey = "console:services"
	if c.servicesTTL > 0 {
		if data, err := c.cache.Get(ctx, cacheKey); err == nil {
			var cached []string
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
				return cached, nil
			}
		}
	}

	var response struct {
		Services []string `json:"services"`
	}
	if err := c.getJSON(ctx, "/api/metrics/services", nil, &response); err != nil {
		return nil, fmt.Errorf("service list request failed: %w", err)
	}

	if c.servicesTTL > 0 && len(response.Services) > 0 {
		if data, err := json.Marshal(response.Services); err == nil {
			_ = c.cache.Set(ctx, cacheKey, data, c.servicesTTL)
		}
	}
	return response.Services, nil
}

// LatestMetrics returns the newest sample per service.
func (c *TelemetryClient) LatestMetrics(ctx context.Context) ([]models.MetricSample, error) {
	var response struct {
		Metrics []models.MetricSample `json:"metrics"`
	}
	if err := c.getJSON(ctx, "/api/metrics/latest", nil, &response); err != nil {
		return nil, fmt.Errorf("latest metrics request failed: %w", err)
	}
	return response.Metrics, nil
}

// Timeseries returns metric samples for one service over the lookback window.
func (c *TelemetryClient) Timeseries(ctx context.Context, service string, hours int) ([]models.MetricSample, error) {
	if service == "" {
		return nil, fmt.Errorf("service is required")
	}
	cacheKey := fmt.Sprintf("console:timeseries:%s:%d", service, hours)
	if c.timeseriesTTL > 0 {
		if data, err := c.cache.Get(ctx, cacheKey); err == nil {
			var cached []models.MetricSample
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
				return cached, nil
			}
		}
	}

	query := url.Values{}
	query.Set("service", service)
	query.Set("hours", strconv.Itoa(hours))
	var response struct {
		Metrics []models.MetricSample `json:"metrics"`
	}
	if err := c.getJSON(ctx, "/api/metrics/timeseries", query, &response); err != nil {
		return nil, fmt.Errorf("timeseries request failed: %w", err)
	}

	if c.timeseriesTTL > 0 && len(response.Metrics) > 0 {
		if data, err := json.Marshal(response.Metrics); err == nil {
			_ = c.cache.Set(ctx, cacheKey, data, c.timeseriesTTL)
		}
	}
	return response.Metrics, nil
}

// ListAnomalies returns anomalies detected within the last `hours`, capped at
// `limit`, most recent first.
func (c *TelemetryClient) ListAnomalies(ctx context.Context, hours, limit int) ([]models.Anomaly, error) {
	query := url.Values{}
	query.Set("hours", strconv.Itoa(hours))
	query.Set("limit", strconv.Itoa(limit))
	var response struct {
		Anomalies []models.Anomaly `json:"anomalies"`
	}
	if err := c.getJSON(ctx, "/api/anomalies", query, &response); err != nil {
		return nil, fmt.Errorf("anomaly list request failed: %w", err)
	}
	return response.Anomalies, nil
}

// TriggerDetection asks the backend to run its detection model against the
// latest metrics.
func (c *TelemetryClient) TriggerDetection(ctx context.Context) error {
	if err := c.postJSON(ctx, "/api/anomalies/detect", nil, nil, nil); err != nil {
		return fmt.Errorf("detection trigger failed: %w", err)
	}
	return nil
}

// ListIncidents returns incidents, most recent first. An empty status matches
// all incidents.
func (c *TelemetryClient) ListIncidents(ctx context.Context, status models.IncidentStatus, limit int) ([]models.Incident, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", string(status))
	}
	query.Set("limit", strconv.Itoa(limit))
	var response struct {
		Incidents []models.Incident `json:"incidents"`
	}
	if err := c.getJSON(ctx, "/api/incidents", query, &response); err != nil {
		return nil, fmt.Errorf("incident list request failed: %w", err)
	}
	return response.Incidents, nil
}

// CreateIncident opens a new incident referencing the given anomalies and
// returns its id.
func (c *TelemetryClient) CreateIncident(ctx context.Context, title string, severity models.Severity, service string, anomalyIDs []string) (string, error) {
	payload := map[string]any{
		"title":       title,
		"severity":    severity,
		"service":     service,
		"anomaly_ids": anomalyIDs,
	}
	var response struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/api/incidents", nil, payload, &response); err != nil {
		return "", fmt.Errorf("incident creation failed: %w", err)
	}
	if response.ID == "" {
		return "", fmt.Errorf("incident creation returned no id")
	}
	return response.ID, nil
}

// UpdateIncidentStatus patches an incident's status. Resolving also stamps
// resolved_at on the backend.
func (c *TelemetryClient) UpdateIncidentStatus(ctx context.Context, incidentID string, status models.IncidentStatus) error {
	payload := map[string]any{"status": status}
	if status == models.IncidentResolved {
		payload["resolved_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	endpoint := "/api/incidents/" + url.PathEscape(incidentID)
	if err := c.patchJSON(ctx, endpoint, payload); err != nil {
		return fmt.Errorf("incident update failed: %w", err)
	}
	return nil
}

// ListActions returns the remediation actions proposed for an incident.
func (c *TelemetryClient) ListActions(ctx context.Context, incidentID string) ([]models.Action, error) {
	if incidentID == "" {
		return nil, fmt.Errorf("incident id is required")
	}
	query := url.Values{}
	query.Set("incident_id", incidentID)
	var response struct {
		Actions []models.Action `json:"actions"`
	}
	if err := c.getJSON(ctx, "/api/actions", query, &response); err != nil {
		return nil, fmt.Errorf("action list request failed: %w", err)
	}
	return response.Actions, nil
}

// ApproveAction commits an approval decision tagged with the approver.
func (c *TelemetryClient) ApproveAction(ctx context.Context, actionID, approvedBy string) error {
	endpoint := "/api/actions/" + url.PathEscape(actionID) + "/approve"
	payload := map[string]any{"approved_by": approvedBy}
	if err := c.postJSON(ctx, endpoint, nil, payload, nil); err != nil {
		return fmt.Errorf("action approval failed: %w", err)
	}
	return nil
}

// RejectAction commits a rejection decision.
func (c *TelemetryClient) RejectAction(ctx context.Context, actionID string) error {
	endpoint := "/api/actions/" + url.PathEscape(actionID) + "/reject"
	if err := c.postJSON(ctx, endpoint, nil, nil, nil); err != nil {
		return fmt.Errorf("action rejection failed: %w", err)
	}
	return nil
}

// TriggerAnalysis asks the backend's LLM collaborator for a root-cause
// explanation of the incident.
func (c *TelemetryClient) TriggerAnalysis(ctx context.Context, incidentID string) error {
	query := url.Values{}
	query.Set("incident_id", incidentID)
	if err := c.postJSON(ctx, "/api/ai/analyze", query, nil, nil); err != nil {
		return fmt.Errorf("analysis trigger failed: %w", err)
	}
	return nil
}

// TriggerRecommendation asks the backend's LLM collaborator to generate
// remediation actions for the incident.
func (c *TelemetryClient) TriggerRecommendation(ctx context.Context, incidentID string) error {
	query := url.Values{}
	query.Set("incident_id", incidentID)
	if err := c.postJSON(ctx, "/api/ai/recommend", query, nil, nil); err != nil {
		return fmt.Errorf("recommendation trigger failed: %w", err)
	}
	return nil
}

// InjectFailure starts a simulated fault in the named service.
func (c *TelemetryClient) InjectFailure(ctx context.Context, service string) error {
	query := url.Values{}
	query.Set("service", service)
	if err := c.postJSON(ctx, "/api/demo/inject-failure", query, nil, nil); err != nil {
		return fmt.Errorf("failure injection failed: %w", err)
	}
	return nil
}

// ClearFailure stops the simulated fault.
func (c *TelemetryClient) ClearFailure(ctx context.Context) error {
	if err := c.postJSON(ctx, "/api/demo/clear-failure", nil, nil, nil); err != nil {
		return fmt.Errorf("failure clear failed: %w", err)
	}
	return nil
}

// DashboardStats returns aggregated counts and per-service health.
func (c *TelemetryClient) DashboardStats(ctx context.Context) (models.DashboardStats, error) {
	var response models.DashboardStats
	if err := c.getJSON(ctx, "/api/stats/dashboard", nil, &response); err != nil {
		return models.DashboardStats{}, fmt.Errorf("dashboard stats request failed: %w", err)
	}
	return response, nil
}

func (c *TelemetryClient) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, query, nil, out)
}

func (c *TelemetryClient) postJSON(ctx context.Context, endpoint string, query url.Values, payload, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, query, payload, out)
}

func (c *TelemetryClient) patchJSON(ctx context.Context, endpoint string, payload any) error {
	return c.do(ctx, http.MethodPatch, endpoint, nil, payload, nil)
}

func (c *TelemetryClient) do(ctx context.Context, method, endpoint string, query url.Values, payload, out any) error {
	if c == nil {
		return fmt.Errorf("telemetry client not initialised")
	}
	if c.baseURL == "" {
		return fmt.Errorf("platform base URL not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint, query), body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("platform backend returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *TelemetryClient) resolve(endpoint string, query url.Values) string {
	cleaned := "/" + strings.TrimLeft(endpoint, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		target := c.baseURL + cleaned
		if len(query) > 0 {
			target += "?" + query.Encode()
		}
		return target
	}
	u.Path = path.Join(u.Path, cleaned)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
