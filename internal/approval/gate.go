package approval

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/google/uuid"
	"github.com/sentinel-cycle/engine/internal/logging"
	"github.com/sentinel-cycle/engine/internal/sentinelerr"
)

// EventSink receives the Gate's two lifecycle events (§6: approval:pending,
// approval:resolved). Whoever constructs the Gate passes the event bus in
// here through NewGate; tests and one-shot CLI runs may pass nil.
type EventSink interface {
	Emit(event string, payload any)
}

type nopSink struct{}

func (nopSink) Emit(string, any) {}

type pendingEntry struct {
	request  Request
	respCh   chan Response
	resolved bool
}

// Gate is the Approval Gate from §4.2: mode resolution plus a queue of
// in-flight approvals correlated by approval_id.
type Gate struct {
	mu       sync.Mutex
	cfg      Config
	modules  map[string]map[string]bool // module_id -> registered capability set
	pending  map[string]*pendingEntry
	history  *lru.Cache[string, HistoryEntry]
	historyOrder []string
	logger   logging.Logger
	sink     EventSink
	now      func() time.Time
}

// NewGate constructs a Gate. sink may be nil (events are then dropped).
func NewGate(cfg Config, logger logging.Logger, sink EventSink) *Gate {
	if cfg.ModuleOverrides == nil {
		cfg.ModuleOverrides = map[string]Mode{}
	}
	cache, _ := lru.New[string, HistoryEntry](historyCapacity)
	if sink == nil {
		sink = nopSink{}
	}
	return &Gate{
		cfg:     cfg,
		modules: map[string]map[string]bool{},
		pending: map[string]*pendingEntry{},
		history: cache,
		logger:  logging.OrNop(logger).With("approval"),
		sink:    sink,
		now:     time.Now,
	}
}

// RegisterModule declares the capabilities a module exposes to HITL gating.
// requires_approval returns false for any capability not registered here,
// regardless of mode.
func (g *Gate) RegisterModule(moduleID string, capabilities ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.modules[moduleID]
	if !ok {
		set = map[string]bool{}
		g.modules[moduleID] = set
	}
	for _, c := range capabilities {
		set[c] = true
	}
}

func (g *Gate) SetMasterMode(mode Mode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.MasterMode = mode
}

func (g *Gate) SetModuleMode(moduleID string, mode Mode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.ModuleOverrides[moduleID] = mode
}

// RequiresApproval implements the effective-mode resolution from §4.2 and
// §8 Property 7: effective mode is the module override if present and not
// INHERIT, otherwise the master mode; true iff that mode is HITL and the
// capability is registered for the module.
func (g *Gate) RequiresApproval(moduleID, capability string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requiresApprovalLocked(moduleID, capability)
}

func (g *Gate) requiresApprovalLocked(moduleID, capability string) bool {
	if !g.modules[moduleID][capability] {
		return false
	}
	return g.effectiveModeLocked(moduleID) == ModeHITL
}

func (g *Gate) effectiveModeLocked(moduleID string) Mode {
	if override, ok := g.cfg.ModuleOverrides[moduleID]; ok && override != ModeInherit {
		return override
	}
	return g.cfg.MasterMode
}

// RequestApprovalInput is what a module supplies when it reaches a gated
// capability.
type RequestApprovalInput struct {
	ModuleID    string
	Capability  string
	ActionLabel string
	Payload     any
	Diff        string
	Summary     string
}

// RequestApproval resolves immediately with Payload if approval is not
// required; otherwise it enqueues the request, emits approval:pending, and
// blocks until Approve/Reject is called with the matching approval_id or
// ctx is cancelled.
func (g *Gate) RequestApproval(ctx context.Context, in RequestApprovalInput) (any, error) {
	g.mu.Lock()
	if !g.requiresApprovalLocked(in.ModuleID, in.Capability) {
		g.mu.Unlock()
		return in.Payload, nil
	}

	approvalID := uuid.NewString()
	req := Request{
		ApprovalID:  approvalID,
		ModuleID:    in.ModuleID,
		Capability:  in.Capability,
		ActionLabel: in.ActionLabel,
		Payload:     in.Payload,
		Diff:        in.Diff,
		Summary:     in.Summary,
		RequestedAt: g.now(),
	}
	entry := &pendingEntry{request: req, respCh: make(chan Response, 1)}
	g.pending[approvalID] = entry
	g.mu.Unlock()

	g.logger.Info("approval requested: module=%s capability=%s id=%s", in.ModuleID, in.Capability, approvalID)
	g.sink.Emit("approval:pending", map[string]any{
		"approval_id":  approvalID,
		"module_id":    in.ModuleID,
		"capability":   in.Capability,
		"action_label": in.ActionLabel,
	})

	select {
	case resp := <-entry.respCh:
		if !resp.Approved {
			return nil, &RejectedError{ApprovalID: approvalID, Reason: resp.Reason}
		}
		if resp.Value != nil {
			return resp.Value, nil
		}
		return in.Payload, nil
	case <-ctx.Done():
		return nil, sentinelerr.Wrap(sentinelerr.KindCancelled, ctx.Err())
	}
}

// Approve resolves a pending approval with acceptance.
func (g *Gate) Approve(approvalID string, value any) error {
	return g.resolve(approvalID, Response{Approved: true, Value: value})
}

// Reject resolves a pending approval with rejection.
func (g *Gate) Reject(approvalID string, reason string) error {
	return g.resolve(approvalID, Response{Approved: false, Reason: reason})
}

func (g *Gate) resolve(approvalID string, resp Response) error {
	g.mu.Lock()
	entry, ok := g.pending[approvalID]
	if !ok {
		g.mu.Unlock()
		if g.wasResolved(approvalID) {
			return sentinelerr.New(sentinelerr.KindApprovalAlreadyDone, "approval %s already resolved", approvalID)
		}
		return sentinelerr.New(sentinelerr.KindApprovalNotFound, "approval %s not found", approvalID)
	}
	if entry.resolved {
		g.mu.Unlock()
		return sentinelerr.New(sentinelerr.KindApprovalAlreadyDone, "approval %s already resolved", approvalID)
	}
	entry.resolved = true
	delete(g.pending, approvalID)

	outcome := OutcomeRejected
	if resp.Approved {
		outcome = OutcomeApproved
	}
	hist := HistoryEntry{
		ApprovalID: approvalID,
		ModuleID:   entry.request.ModuleID,
		Capability: entry.request.Capability,
		Outcome:    outcome,
		Reason:     resp.Reason,
		At:         g.now(),
	}
	g.history.Add(approvalID, hist)
	g.mu.Unlock()

	g.sink.Emit("approval:resolved", map[string]any{
		"approval_id": approvalID,
		"outcome":     string(outcome),
		"reason":      resp.Reason,
	})
	entry.respCh <- resp
	return nil
}

func (g *Gate) wasResolved(approvalID string) bool {
	_, ok := g.history.Peek(approvalID)
	return ok
}

// Pending returns a snapshot of currently queued, unresolved approvals.
func (g *Gate) Pending() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Request, 0, len(g.pending))
	for _, e := range g.pending {
		out = append(out, e.request)
	}
	return out
}

// History returns up to the last n resolved approvals, most recent last.
func (g *Gate) History(n int) []HistoryEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := g.history.Keys()
	if n > 0 && n < len(keys) {
		keys = keys[len(keys)-n:]
	}
	out := make([]HistoryEntry, 0, len(keys))
	for _, k := range keys {
		if v, ok := g.history.Peek(k); ok {
			out = append(out, v)
		}
	}
	return out
}
