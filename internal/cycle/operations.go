package cycle

import (
	"context"
	"fmt"

	"github.com/sentinel-cycle/engine/internal/eventbus"
	"github.com/sentinel-cycle/engine/internal/sentinelerr"
)

// StartCycle implements start_cycle (§4.1). Preconditions: the engine is
// idle; goal is non-empty. Side effects: constructs a Cycle Context and
// spawns the driver goroutine, which immediately enters CURATING_CONTEXT.
func (e *Engine) StartCycle(ctx context.Context, goal, sessionID string) (string, error) {
	if goal == "" {
		return "", sentinelerr.New(sentinelerr.KindInvalidGoal, "goal must not be empty")
	}

	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		return "", sentinelerr.New(sentinelerr.KindBusy, "a cycle is already in progress")
	}

	cycleID := newCycleID()
	turnIndex := e.nextTurnIndex(sessionID)

	cc := &Context{
		CycleID:   cycleID,
		Goal:      goal,
		SessionID: sessionID,
		TurnIndex: turnIndex,
		StartedAt: e.clock(),
		State:     StateCuratingContext,
	}
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{ctx: runCtx, cancel: cancel, cc: cc, done: make(chan struct{})}
	e.current = r
	e.mu.Unlock()

	e.emitCycleStarted(cc)
	go e.drive(r)

	return cycleID, nil
}

func (e *Engine) emitCycleStarted(cc *Context) {
	e.emit(eventbus.KindCycleStarted, map[string]any{
		"cycle_id": cc.CycleID, "goal": cc.Goal, "session_id": cc.SessionID, "turn_index": cc.TurnIndex,
	})
}

func (e *Engine) activeRun() (*run, error) {
	e.mu.Lock()
	r := e.current
	e.mu.Unlock()
	if r == nil {
		return nil, sentinelerr.New(sentinelerr.KindNotAwaiting, "no cycle is in progress")
	}
	return r, nil
}

// ApproveCurrent implements approve_current: resolves the single pending
// approval (the driver only ever enqueues one at a time) with acceptance.
func (e *Engine) ApproveCurrent(payload any) error {
	if _, err := e.activeRun(); err != nil {
		return err
	}
	pending := e.gate.Pending()
	if len(pending) != 1 {
		return sentinelerr.New(sentinelerr.KindNotAwaiting, "no single pending approval to resolve")
	}
	return e.gate.Approve(pending[0].ApprovalID, payload)
}

// ReviseCurrent implements revise_current: resolves the pending approval
// with rejection, which the driver interprets as a loop back with
// iterations += 1.
func (e *Engine) ReviseCurrent(reason string) error {
	if _, err := e.activeRun(); err != nil {
		return err
	}
	pending := e.gate.Pending()
	if len(pending) != 1 {
		return sentinelerr.New(sentinelerr.KindNotAwaiting, "no single pending approval to resolve")
	}
	return e.gate.Reject(pending[0].ApprovalID, reason)
}

// CancelCycle implements cancel_cycle: force transition to CANCELLED.
// Honoured between transitions and at every suspension point (§5). r.cancel
// alone is enough to unblock a pending RequestApproval: its ctx.Done() case
// already classifies the wakeup as KindCancelled. Also calling gate.Reject
// here would race that same select in RequestApproval; if the explicit
// reject won, interpretApproval would see a *RejectedError before it ever
// reaches the cancellation check and misinterpret the cancel as a revision.
func (e *Engine) CancelCycle() error {
	r, err := e.activeRun()
	if err != nil {
		return nil // cancelling an idle engine is a no-op, not an error
	}
	r.cancel()
	return nil
}

// PauseCycle implements pause_cycle: it sets Paused and stores the current
// state in PausedFrom. The driver does not consult Paused: an approval
// resolved while paused (through approve_current/revise_current or directly
// on the Gate) advances the FSM at once; it is not held until resume.
func (e *Engine) PauseCycle() error {
	r, err := e.activeRun()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cc.Paused {
		return nil
	}
	r.cc.Paused = true
	r.cc.PausedFrom = r.cc.State
	return nil
}

// ResumeCycle implements resume_cycle: clears the paused flag. The driver
// does not block on Paused (suspension happens at the Gate and at external
// calls); Paused is only surfaced through get_status.
func (e *Engine) ResumeCycle() error {
	r, err := e.activeRun()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cc.Paused = false
	return nil
}

// GetStatus implements get_status: a read-only snapshot of current state,
// cycle context, recent history, and pending approvals.
func (e *Engine) GetStatus(historyLimit int) Snapshot {
	e.mu.Lock()
	r := e.current
	e.mu.Unlock()

	if r == nil {
		return Snapshot{State: StateIdle}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ccCopy := *r.cc
	history := r.cc.History
	if historyLimit > 0 && len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	recent := make([]TransitionRecord, len(history))
	copy(recent, history)

	pendingCount := 0
	if e.gate != nil {
		pendingCount = len(e.gate.Pending())
	}

	return Snapshot{
		State:         ccCopy.State,
		Context:       &ccCopy,
		RecentHistory: recent,
		PendingCount:  pendingCount,
	}
}

// WaitDone blocks until the active cycle (if any) reaches a terminal
// state. Useful for CLI one-shot runs and tests; never called by the
// driver itself.
func (e *Engine) WaitDone(ctx context.Context) error {
	r, err := e.activeRun()
	if err != nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait cancelled: %w", ctx.Err())
	}
}
