// Package approval implements the human-in-the-loop decision gate for
// remediation actions.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/autonexops/autonex-console/internal/metrics"
	"github.com/autonexops/autonex-console/internal/models"
	"github.com/autonexops/autonex-console/internal/store"
	"github.com/autonexops/autonex-console/internal/utils"
)

var (
	// ErrUnknownAction is returned when the action id is not in the session's
	// action list.
	ErrUnknownAction = errors.New("unknown action")
	// ErrNotPending is returned when a decision targets an action that has
	// already reached a terminal status.
	ErrNotPending = errors.New("action is not pending")
	// ErrDecisionInFlight is returned when a decision for the same action id
	// is already outstanding.
	ErrDecisionInFlight = errors.New("decision already in progress")
)

// ActionClient is the backend surface the approver commits decisions through.
type ActionClient interface {
	ApproveAction(ctx context.Context, actionID, approvedBy string) error
	RejectAction(ctx context.Context, actionID string) error
	ListActions(ctx context.Context, incidentID string) ([]models.Action, error)
}

// Approver drives a single action's lifecycle: pending → approved or
// pending → rejected, exactly once. The local store is never advanced
// optimistically: a decision only becomes visible after the backend confirms
// it and the action list has been re-fetched. On remote failure the action
// stays pending and the error is surfaced to the caller.
type Approver struct {
	logger    *slog.Logger
	client    ActionClient
	store     *store.SessionStore
	latencies *utils.LatencyTracker

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New constructs an approver bound to one session store.
func New(logger *slog.Logger, client ActionClient, sessionStore *store.SessionStore) *Approver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Approver{
		logger:    logger,
		client:    client,
		store:     sessionStore,
		latencies: utils.NewLatencyTracker(256),
		inflight:  make(map[string]struct{}),
	}
}

// Approve commits an approval tagged with the approver identity. Valid only
// while the action is pending and no other decision for the same id is in
// flight.
func (a *Approver) Approve(ctx context.Context, actionID, approvedBy string) error {
	if approvedBy == "" {
		return utils.NewAppError("approve", "approver identity is required", nil)
	}
	return a.decide(ctx, "approve", actionID, func(ctx context.Context) error {
		return a.client.ApproveAction(ctx, actionID, approvedBy)
	})
}

// Reject commits a rejection. Valid only while the action is pending and no
// other decision for the same id is in flight.
func (a *Approver) Reject(ctx context.Context, actionID string) error {
	return a.decide(ctx, "reject", actionID, func(ctx context.Context) error {
		return a.client.RejectAction(ctx, actionID)
	})
}

func (a *Approver) decide(ctx context.Context, decision, actionID string, commit func(context.Context) error) error {
	action, ok := a.store.Action(actionID)
	if !ok {
		return fmt.Errorf("%s %s: %w", decision, actionID, ErrUnknownAction)
	}
	if action.Status.Terminal() {
		return fmt.Errorf("%s %s: %w (status %s)", decision, actionID, ErrNotPending, action.Status)
	}

	if !a.acquire(actionID) {
		return fmt.Errorf("%s %s: %w", decision, actionID, ErrDecisionInFlight)
	}
	defer a.release(actionID)

	start := time.Now()
	if err := commit(ctx); err != nil {
		metrics.ObserveApprovalDecision(decision, metrics.OutcomeError)
		return fmt.Errorf("%s %s: %w", decision, actionID, err)
	}
	a.latencies.Observe(time.Since(start))
	metrics.ObserveApprovalDecision(decision, metrics.OutcomeSuccess)

	a.refreshActions(ctx, action.IncidentID)
	a.logger.Info("action decision committed",
		slog.String("action_id", actionID),
		slog.String("decision", decision),
		slog.String("incident_id", action.IncidentID))
	return nil
}

// refreshActions re-fetches the owning incident's action list so the store
// reflects the backend-confirmed status. A refresh failure is logged, not
// returned: the decision itself was committed and the next poll will catch
// up.
func (a *Approver) refreshActions(ctx context.Context, incidentID string) {
	actions, err := a.client.ListActions(ctx, incidentID)
	if err != nil {
		a.logger.Warn("action refresh failed", slog.String("incident_id", incidentID), slog.Any("error", err))
		return
	}
	a.store.ReplaceActions(incidentID, actions)
}

func (a *Approver) acquire(actionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inflight[actionID]; busy {
		return false
	}
	a.inflight[actionID] = struct{}{}
	return true
}

func (a *Approver) release(actionID string) {
	a.mu.Lock()
	delete(a.inflight, actionID)
	a.mu.Unlock()
}

// LatencyP95 returns the p95 decision round trip.
func (a *Approver) LatencyP95() time.Duration {
	return a.latencies.Percentile(95)
}
