package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/autonexops/autonex-console/internal/models"
	"github.com/autonexops/autonex-console/internal/store"
)

// stubActionClient records committed decisions and serves a canned action
// list on refresh.
type stubActionClient struct {
	mu        sync.Mutex
	approves  []string
	rejects   []string
	commitErr error
	listErr   error
	actions   []models.Action

	block chan struct{} // when set, commits park here
}

func (c *stubActionClient) ApproveAction(ctx context.Context, actionID, approvedBy string) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.commitErr != nil {
		return c.commitErr
	}
	c.approves = append(c.approves, actionID+"/"+approvedBy)
	return nil
}

func (c *stubActionClient) RejectAction(ctx context.Context, actionID string) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.commitErr != nil {
		return c.commitErr
	}
	c.rejects = append(c.rejects, actionID)
	return nil
}

func (c *stubActionClient) ListActions(ctx context.Context, incidentID string) ([]models.Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.actions, nil
}

func seededStore(t *testing.T, actions ...models.Action) *store.SessionStore {
	t.Helper()
	s := store.New()
	s.ReplaceIncidents([]models.Incident{{ID: "inc-1"}})
	if err := s.SelectIncident("inc-1"); err != nil {
		t.Fatalf("select incident: %v", err)
	}
	if !s.ReplaceActions("inc-1", actions) {
		t.Fatalf("seed actions")
	}
	return s
}

func TestApproveCommitsAndRefreshes(t *testing.T) {
	pending := models.Action{ID: "act-1", IncidentID: "inc-1", Status: models.ActionPending}
	s := seededStore(t, pending)

	approved := pending
	approved.Status = models.ActionApproved
	approved.ApprovedBy = "oncall"
	client := &stubActionClient{actions: []models.Action{approved}}

	a := New(nil, client, s)
	if err := a.Approve(context.Background(), "act-1", "oncall"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if len(client.approves) != 1 || client.approves[0] != "act-1/oncall" {
		t.Fatalf("unexpected commits: %+v", client.approves)
	}
	got, ok := s.Action("act-1")
	if !ok || got.Status != models.ActionApproved {
		t.Fatalf("store must reflect the backend-confirmed status, got %+v ok=%v", got, ok)
	}
}

func TestDecisionOnTerminalAction(t *testing.T) {
	s := seededStore(t, models.Action{ID: "act-1", IncidentID: "inc-1", Status: models.ActionRejected})
	a := New(nil, &stubActionClient{}, s)

	if err := a.Approve(context.Background(), "act-1", "oncall"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if err := a.Reject(context.Background(), "act-1"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
}

func TestDecisionOnUnknownAction(t *testing.T) {
	a := New(nil, &stubActionClient{}, seededStore(t))
	if err := a.Reject(context.Background(), "act-404"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestApproveRequiresIdentity(t *testing.T) {
	s := seededStore(t, models.Action{ID: "act-1", IncidentID: "inc-1", Status: models.ActionPending})
	a := New(nil, &stubActionClient{}, s)
	if err := a.Approve(context.Background(), "act-1", ""); err == nil {
		t.Fatalf("expected an error for a missing approver identity")
	}
}

func TestRemoteFailureLeavesActionPending(t *testing.T) {
	pending := models.Action{ID: "act-1", IncidentID: "inc-1", Status: models.ActionPending}
	s := seededStore(t, pending)
	client := &stubActionClient{commitErr: errors.New("backend down")}

	a := New(nil, client, s)
	if err := a.Approve(context.Background(), "act-1", "oncall"); err == nil {
		t.Fatalf("expected the commit error to surface")
	}

	got, _ := s.Action("act-1")
	if got.Status != models.ActionPending {
		t.Fatalf("failed decision must not advance local state, got %s", got.Status)
	}
	// The action is decidable again after the failure.
	client.commitErr = nil
	client.actions = []models.Action{{ID: "act-1", IncidentID: "inc-1", Status: models.ActionRejected}}
	if err := a.Reject(context.Background(), "act-1"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestConcurrentDecisionsAreExcluded(t *testing.T) {
	pending := models.Action{ID: "act-1", IncidentID: "inc-1", Status: models.ActionPending}
	s := seededStore(t, pending)
	client := &stubActionClient{
		block:   make(chan struct{}),
		actions: []models.Action{{ID: "act-1", IncidentID: "inc-1", Status: models.ActionApproved}},
	}
	a := New(nil, client, s)

	first := make(chan error, 1)
	go func() { first <- a.Approve(context.Background(), "act-1", "oncall") }()

	// Wait until the first decision holds the in-flight slot.
	for {
		a.mu.Lock()
		_, busy := a.inflight["act-1"]
		a.mu.Unlock()
		if busy {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := a.Reject(context.Background(), "act-1"); !errors.Is(err, ErrDecisionInFlight) {
		t.Fatalf("expected ErrDecisionInFlight, got %v", err)
	}

	close(client.block)
	if err := <-first; err != nil {
		t.Fatalf("first decision: %v", err)
	}
	if len(client.rejects) != 0 {
		t.Fatalf("the losing decision must never reach the backend")
	}
}

func TestRefreshFailureDoesNotFailDecision(t *testing.T) {
	pending := models.Action{ID: "act-1", IncidentID: "inc-1", Status: models.ActionPending}
	s := seededStore(t, pending)
	client := &stubActionClient{listErr: errors.New("list unavailable")}

	a := New(nil, client, s)
	if err := a.Approve(context.Background(), "act-1", "oncall"); err != nil {
		t.Fatalf("decision must succeed even if the refresh fails: %v", err)
	}
}
