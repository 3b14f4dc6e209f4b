package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/autonexops/autonex-console/internal/approval"
	"github.com/autonexops/autonex-console/internal/models"
	"github.com/autonexops/autonex-console/internal/orchestrator"
	"github.com/autonexops/autonex-console/internal/store"
)

// stubConsole returns canned values and records the last call arguments.
type stubConsole struct {
	snapshot store.Snapshot
	report   orchestrator.Report
	runID    string

	selectErr  error
	resolveErr error
	approveErr error
	rejectErr  error
	startErr   error
	healthErr  error

	approvedAction string
	approvedBy     string
	selectedSvc    string
}

func (s *stubConsole) Overview() store.Snapshot { return s.snapshot }

func (s *stubConsole) Timeseries(ctx context.Context, service string, hours int) ([]models.MetricSample, error) {
	return []models.MetricSample{{Service: service}}, nil
}

func (s *stubConsole) SelectService(ctx context.Context, service string) error {
	s.selectedSvc = service
	return s.selectErr
}

func (s *stubConsole) SelectIncident(ctx context.Context, id string) error { return s.selectErr }

func (s *stubConsole) ResolveIncident(ctx context.Context, id string) error {
	return s.resolveErr
}

func (s *stubConsole) ApproveAction(ctx context.Context, actionID, approvedBy string) error {
	s.approvedAction = actionID
	s.approvedBy = approvedBy
	return s.approveErr
}

func (s *stubConsole) RejectAction(ctx context.Context, actionID string) error { return s.rejectErr }

func (s *stubConsole) StartDemo() (string, error) { return s.runID, s.startErr }

func (s *stubConsole) DemoReport() orchestrator.Report { return s.report }

func (s *stubConsole) ClearFailure(ctx context.Context) error { return nil }

func (s *stubConsole) Healthy(ctx context.Context) error { return s.healthErr }

func newTestRouter(console Console) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	registerRoutes(engine, console)
	return engine
}

func doRequest(t *testing.T, router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestOverviewReturnsSnapshot(t *testing.T) {
	console := &stubConsole{snapshot: store.Snapshot{
		SelectedIncident: "inc-1",
		Incidents:        []models.Incident{{ID: "inc-1", Title: "Performance Degradation in cache"}},
	}}
	rec := doRequest(t, newTestRouter(console), http.MethodGet, "/console/overview", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var got store.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SelectedIncident != "inc-1" || len(got.Incidents) != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestApproveRequiresBody(t *testing.T) {
	router := newTestRouter(&stubConsole{})
	rec := doRequest(t, router, http.MethodPost, "/console/actions/act-1/approve", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing approved_by, got %d", rec.Code)
	}
}

func TestApprovePassesIdentity(t *testing.T) {
	console := &stubConsole{}
	rec := doRequest(t, newTestRouter(console), http.MethodPost,
		"/console/actions/act-1/approve", `{"approved_by":"oncall"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if console.approvedAction != "act-1" || console.approvedBy != "oncall" {
		t.Fatalf("arguments not forwarded: %q %q", console.approvedAction, console.approvedBy)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		seed   func(*stubConsole)
		method string
		target string
		body   string
		want   int
	}{
		{"unknown incident", func(s *stubConsole) { s.selectErr = store.ErrUnknownIncident },
			http.MethodPost, "/console/incidents/inc-404/select", "", http.StatusNotFound},
		{"unknown action", func(s *stubConsole) { s.rejectErr = approval.ErrUnknownAction },
			http.MethodPost, "/console/actions/act-404/reject", "", http.StatusNotFound},
		{"not pending", func(s *stubConsole) { s.rejectErr = approval.ErrNotPending },
			http.MethodPost, "/console/actions/act-1/reject", "", http.StatusConflict},
		{"decision in flight", func(s *stubConsole) { s.approveErr = approval.ErrDecisionInFlight },
			http.MethodPost, "/console/actions/act-1/approve", `{"approved_by":"oncall"}`, http.StatusConflict},
		{"run active", func(s *stubConsole) { s.startErr = orchestrator.ErrRunActive },
			http.MethodPost, "/console/demo/run", "", http.StatusConflict},
		{"failure active", func(s *stubConsole) { s.startErr = orchestrator.ErrFailureActive },
			http.MethodPost, "/console/demo/run", "", http.StatusConflict},
		{"backend failure", func(s *stubConsole) { s.resolveErr = context.DeadlineExceeded },
			http.MethodPost, "/console/incidents/inc-1/resolve", "", http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			console := &stubConsole{}
			tc.seed(console)
			rec := doRequest(t, newTestRouter(console), tc.method, tc.target, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("got %d want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestStartDemoReturnsRunID(t *testing.T) {
	console := &stubConsole{runID: "run-1"}
	rec := doRequest(t, newTestRouter(console), http.MethodPost, "/console/demo/run", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["run_id"] != "run-1" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestTimeseriesValidation(t *testing.T) {
	router := newTestRouter(&stubConsole{})
	if rec := doRequest(t, router, http.MethodGet, "/console/timeseries", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing service must be 400, got %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/console/timeseries?service=cache&hours=zero", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad hours must be 400, got %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/console/timeseries?service=cache", ""); rec.Code != http.StatusOK {
		t.Fatalf("valid request must be 200, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	if rec := doRequest(t, newTestRouter(&stubConsole{}), http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthy status %d", rec.Code)
	}
	degraded := &stubConsole{healthErr: context.DeadlineExceeded}
	if rec := doRequest(t, newTestRouter(degraded), http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status %d", rec.Code)
	}
}
