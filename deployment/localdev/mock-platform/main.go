// mock-platform is a runnable stand-in for the AUTONEX platform backend,
// covering every endpoint the console consumes. Metrics are simulated with an
// optional failure-injection ramp; the detection and AI collaborators are
// replaced with deterministic fakes so the demo workflow can be exercised
// end to end without the real platform.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

var services = []string{"api-gateway", "auth-service", "database", "cache", "worker"}

// Baselines for normal operation, used to score deviations.
var baseline = map[string]float64{
	"cpu":              35,
	"memory":           45,
	"latency":          100,
	"error_rate":       1,
	"requests_per_sec": 300,
}

type metricSample struct {
	Timestamp      time.Time `json:"timestamp"`
	Service        string    `json:"service"`
	CPU            float64   `json:"cpu"`
	Memory         float64   `json:"memory"`
	Latency        float64   `json:"latency"`
	ErrorRate      float64   `json:"error_rate"`
	RequestsPerSec float64   `json:"requests_per_sec"`
}

type anomaly struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	MetricType  string    `json:"metric_type"`
	Severity    string    `json:"severity"`
	Confidence  float64   `json:"confidence"`
	Description string    `json:"description"`
	Value       float64   `json:"value"`
	Baseline    float64   `json:"baseline"`
}

type recommendation struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	RiskLevel   string `json:"risk_level"`
	Impact      string `json:"impact"`
}

type incident struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Status          string           `json:"status"`
	Severity        string           `json:"severity"`
	Service         string           `json:"service"`
	RootCause       string           `json:"root_cause,omitempty"`
	AIExplanation   string           `json:"ai_explanation,omitempty"`
	Recommendations []recommendation `json:"recommendations,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	AnomalyIDs      []string         `json:"anomaly_ids"`
}

type action struct {
	ID          string     `json:"id"`
	IncidentID  string     `json:"incident_id"`
	Action      string     `json:"action"`
	Description string     `json:"description"`
	RiskLevel   string     `json:"risk_level"`
	Impact      string     `json:"impact"`
	Status      string     `json:"status"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// platform holds the whole simulated backend state.
type platform struct {
	mu sync.Mutex

	metrics   map[string][]metricSample
	anomalies []anomaly
	incidents []incident
	actions   []action

	failureMode    bool
	failureService string
	failureStart   time.Time
}

func newPlatform() *platform {
	return &platform{metrics: make(map[string][]metricSample)}
}

// generate appends one sample per service, ramping the failure signature
// over a minute like a real resource exhaustion would.
func (p *platform) generate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now().UTC()
	for _, svc := range services {
		s := metricSample{
			Timestamp:      now,
			Service:        svc,
			CPU:            20 + rand.Float64()*30,
			Memory:         30 + rand.Float64()*30,
			Latency:        50 + rand.Float64()*100,
			ErrorRate:      rand.Float64() * 2,
			RequestsPerSec: 100 + rand.Float64()*400,
		}
		if p.failureMode && svc == p.failureService {
			intensity := now.Sub(p.failureStart).Seconds() / 60
			if intensity > 1 {
				intensity = 1
			}
			s.CPU = 70 + intensity*20 + rand.Float64()*5
			s.Memory = 70 + intensity*20 + rand.Float64()*5
			s.Latency = 300 + intensity*700
			s.ErrorRate = 10 + intensity*30
			s.RequestsPerSec = 50 + rand.Float64()*50
		}
		samples := append(p.metrics[svc], s)
		if len(samples) > 720 {
			samples = samples[len(samples)-720:]
		}
		p.metrics[svc] = samples
	}
}

func (p *platform) latest() []metricSample {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]metricSample, 0, len(services))
	for _, svc := range services {
		if samples := p.metrics[svc]; len(samples) > 0 {
			out = append(out, samples[len(samples)-1])
		}
	}
	return out
}

// detect flags the latest sample of each service whose vitals left the normal
// band, attributing the most deviant metric.
func (p *platform) detect() []anomaly {
	p.mu.Lock()
	defer p.mu.Unlock()
	var detected []anomaly
	for _, svc := range services {
		samples := p.metrics[svc]
		if len(samples) == 0 {
			continue
		}
		s := samples[len(samples)-1]
		if s.CPU < 70 && s.Memory < 70 && s.Latency < 300 && s.ErrorRate < 10 {
			continue
		}
		values := map[string]float64{
			"cpu":              s.CPU,
			"memory":           s.Memory,
			"latency":          s.Latency,
			"error_rate":       s.ErrorRate,
			"requests_per_sec": s.RequestsPerSec,
		}
		worst, worstDev := "cpu", 0.0
		for name, v := range values {
			dev := (v - baseline[name]) / (baseline[name] + 1)
			if dev < 0 {
				dev = -dev
			}
			if dev > worstDev {
				worst, worstDev = name, dev
			}
		}
		confidence := worstDev / (worstDev + 1)
		severity := "medium"
		if confidence > 0.8 {
			severity = "critical"
		} else if confidence > 0.6 {
			severity = "high"
		}
		a := anomaly{
			ID:          uuid.NewString(),
			Timestamp:   s.Timestamp,
			Service:     svc,
			MetricType:  worst,
			Severity:    severity,
			Confidence:  confidence,
			Description: "Anomalous " + worst + " detected",
			Value:       values[worst],
			Baseline:    baseline[worst],
		}
		p.anomalies = append(p.anomalies, a)
		detected = append(detected, a)
	}
	return detected
}

func main() {
	var addr string
	flag.StringVar(&addr, "addr", ":8000", "listen address")
	flag.Parse()

	p := newPlatform()
	p.generate()
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			p.generate()
		}
	}()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/demo/status", func(w http.ResponseWriter, _ *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		writeJSON(w, map[string]any{
			"failure_mode":     p.failureMode,
			"affected_service": p.failureService,
			"services":         services,
		})
	})

	mux.HandleFunc("POST /api/demo/inject-failure", func(w http.ResponseWriter, r *http.Request) {
		svc := r.URL.Query().Get("service")
		if !contains(services, svc) {
			writeStatus(w, http.StatusBadRequest, "invalid service")
			return
		}
		p.mu.Lock()
		p.failureMode = true
		p.failureService = svc
		p.failureStart = time.Now().UTC()
		p.mu.Unlock()
		p.generate()
		writeJSON(w, map[string]any{"service": svc, "status": "active"})
	})

	mux.HandleFunc("POST /api/demo/clear-failure", func(w http.ResponseWriter, _ *http.Request) {
		p.mu.Lock()
		p.failureMode = false
		p.failureService = ""
		p.mu.Unlock()
		writeJSON(w, map[string]any{"status": "normal"})
	})

	mux.HandleFunc("GET /api/metrics/services", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"services": services})
	})

	mux.HandleFunc("GET /api/metrics/latest", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"metrics": p.latest()})
	})

	mux.HandleFunc("GET /api/metrics/timeseries", func(w http.ResponseWriter, r *http.Request) {
		svc := r.URL.Query().Get("service")
		hours := intQuery(r, "hours", 1)
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		p.mu.Lock()
		var out []metricSample
		for _, s := range p.metrics[svc] {
			if s.Timestamp.After(since) {
				out = append(out, s)
			}
		}
		p.mu.Unlock()
		writeJSON(w, map[string]any{"service": svc, "metrics": out})
	})

	mux.HandleFunc("POST /api/anomalies/detect", func(w http.ResponseWriter, _ *http.Request) {
		detected := p.detect()
		writeJSON(w, map[string]any{"detected": len(detected), "anomalies": detected})
	})

	mux.HandleFunc("GET /api/anomalies", func(w http.ResponseWriter, r *http.Request) {
		hours := intQuery(r, "hours", 24)
		limit := intQuery(r, "limit", 100)
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		p.mu.Lock()
		var out []anomaly
		for _, a := range p.anomalies {
			if a.Timestamp.After(since) {
				out = append(out, a)
			}
		}
		p.mu.Unlock()
		sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
		if len(out) > limit {
			out = out[:limit]
		}
		writeJSON(w, map[string]any{"anomalies": out})
	})

	mux.HandleFunc("POST /api/incidents", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Title      string   `json:"title"`
			Severity   string   `json:"severity"`
			Service    string   `json:"service"`
			AnomalyIDs []string `json:"anomaly_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeStatus(w, http.StatusBadRequest, "invalid payload")
			return
		}
		inc := incident{
			ID:         uuid.NewString(),
			Title:      body.Title,
			Status:     "open",
			Severity:   body.Severity,
			Service:    body.Service,
			CreatedAt:  time.Now().UTC(),
			AnomalyIDs: body.AnomalyIDs,
		}
		p.mu.Lock()
		p.incidents = append(p.incidents, inc)
		p.mu.Unlock()
		writeJSON(w, inc)
	})

	mux.HandleFunc("GET /api/incidents", func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		limit := intQuery(r, "limit", 50)
		p.mu.Lock()
		out := make([]incident, 0, len(p.incidents))
		for _, inc := range p.incidents {
			if status == "" || inc.Status == status {
				out = append(out, inc)
			}
		}
		p.mu.Unlock()
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		if len(out) > limit {
			out = out[:limit]
		}
		writeJSON(w, map[string]any{"incidents": out})
	})

	mux.HandleFunc("PATCH /api/incidents/{id}", func(w http.ResponseWriter, r *http.Request) {
		var updates map[string]any
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			writeStatus(w, http.StatusBadRequest, "invalid payload")
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		for i := range p.incidents {
			if p.incidents[i].ID != r.PathValue("id") {
				continue
			}
			if status, ok := updates["status"].(string); ok {
				p.incidents[i].Status = status
				if status == "resolved" {
					now := time.Now().UTC()
					p.incidents[i].ResolvedAt = &now
				}
			}
			writeJSON(w, p.incidents[i])
			return
		}
		writeStatus(w, http.StatusNotFound, "incident not found")
	})

	mux.HandleFunc("POST /api/ai/analyze", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("incident_id")
		p.mu.Lock()
		defer p.mu.Unlock()
		for i := range p.incidents {
			if p.incidents[i].ID != id {
				continue
			}
			p.incidents[i].AIExplanation = "Root cause: resource saturation in " + p.incidents[i].Service +
				". Impact: elevated latency and error rates for dependent services. " +
				"Recommended: scale out, then investigate recent deployments."
			writeJSON(w, map[string]any{"incident_id": id, "analysis": p.incidents[i].AIExplanation})
			return
		}
		writeStatus(w, http.StatusNotFound, "incident not found")
	})

	mux.HandleFunc("POST /api/ai/recommend", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("incident_id")
		recs := []recommendation{
			{Action: "Scale Resources", Description: "Increase CPU and memory allocation for the affected service", RiskLevel: "low", Impact: "Improved performance and reduced error rates"},
			{Action: "Restart Service", Description: "Perform a rolling restart of the service instances", RiskLevel: "medium", Impact: "Clears memory leaks and resets connections"},
			{Action: "Review Recent Changes", Description: "Investigate and potentially rollback recent deployments", RiskLevel: "low", Impact: "Identifies root cause if related to recent changes"},
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		for i := range p.incidents {
			if p.incidents[i].ID != id {
				continue
			}
			p.incidents[i].Recommendations = recs
			now := time.Now().UTC()
			for _, rec := range recs {
				p.actions = append(p.actions, action{
					ID:          uuid.NewString(),
					IncidentID:  id,
					Action:      rec.Action,
					Description: rec.Description,
					RiskLevel:   rec.RiskLevel,
					Impact:      rec.Impact,
					Status:      "pending",
					CreatedAt:   now,
				})
			}
			writeJSON(w, map[string]any{"incident_id": id, "recommendations": recs})
			return
		}
		writeStatus(w, http.StatusNotFound, "incident not found")
	})

	mux.HandleFunc("GET /api/actions", func(w http.ResponseWriter, r *http.Request) {
		incidentID := r.URL.Query().Get("incident_id")
		p.mu.Lock()
		var out []action
		for _, a := range p.actions {
			if incidentID == "" || a.IncidentID == incidentID {
				out = append(out, a)
			}
		}
		p.mu.Unlock()
		writeJSON(w, map[string]any{"actions": out})
	})

	mux.HandleFunc("POST /api/actions/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ApprovedBy string `json:"approved_by"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeStatus(w, http.StatusBadRequest, "invalid payload")
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		for i := range p.actions {
			if p.actions[i].ID != r.PathValue("id") {
				continue
			}
			now := time.Now().UTC()
			p.actions[i].Status = "approved"
			p.actions[i].ApprovedBy = body.ApprovedBy
			p.actions[i].ExecutedAt = &now
			writeJSON(w, p.actions[i])
			return
		}
		writeStatus(w, http.StatusNotFound, "action not found")
	})

	mux.HandleFunc("POST /api/actions/{id}/reject", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i := range p.actions {
			if p.actions[i].ID != r.PathValue("id") {
				continue
			}
			p.actions[i].Status = "rejected"
			writeJSON(w, p.actions[i])
			return
		}
		writeStatus(w, http.StatusNotFound, "action not found")
	})

	mux.HandleFunc("GET /api/stats/dashboard", func(w http.ResponseWriter, _ *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		active, pending := 0, 0
		for _, inc := range p.incidents {
			if inc.Status == "open" {
				active++
			}
		}
		for _, a := range p.actions {
			if a.Status == "pending" {
				pending++
			}
		}
		since := time.Now().UTC().Add(-24 * time.Hour)
		recent := 0
		for _, a := range p.anomalies {
			if a.Timestamp.After(since) {
				recent++
			}
		}
		health := make([]map[string]any, 0, len(services))
		for _, svc := range services {
			samples := p.metrics[svc]
			if len(samples) == 0 {
				continue
			}
			s := samples[len(samples)-1]
			status := "healthy"
			if s.CPU > 80 || s.Memory > 80 || s.ErrorRate > 10 {
				status = "critical"
			} else if s.CPU > 60 || s.Memory > 60 || s.ErrorRate > 5 {
				status = "warning"
			}
			health = append(health, map[string]any{
				"service":    svc,
				"status":     status,
				"cpu":        s.CPU,
				"memory":     s.Memory,
				"latency":    s.Latency,
				"error_rate": s.ErrorRate,
			})
		}
		writeJSON(w, map[string]any{
			"active_incidents": active,
			"total_incidents":  len(p.incidents),
			"recent_anomalies": recent,
			"pending_actions":  pending,
			"service_health":   health,
		})
	})

	logger := log.New(log.Writer(), "mock-platform ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{Addr: addr, Handler: logRequests(logger, mux)}

	logger.Println("listening on " + addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func writeStatus(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}

func intQuery(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
