package cycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sentinel-cycle/engine/internal/approval"
	"github.com/sentinel-cycle/engine/internal/codec"
	"github.com/sentinel-cycle/engine/internal/eventbus"
	"github.com/sentinel-cycle/engine/internal/llm"
	"github.com/sentinel-cycle/engine/internal/reflection"
	"github.com/sentinel-cycle/engine/internal/sentinelerr"
)

// curationReadConcurrency bounds how many VFS reads stepCurate fans out at
// once while assembling a context bundle.
const curationReadConcurrency = 8

// drive is the FSM driver's single logical task (§5). It suspends at
// exactly three points: awaiting the model (curate/propose), awaiting an
// approval decision (via the Gate, inside step), and awaiting the VFS or
// Verifier. No two transitions ever execute concurrently for one run.
func (e *Engine) drive(r *run) {
	defer close(r.done)

	for {
		r.mu.Lock()
		state := r.cc.State
		r.mu.Unlock()

		if state.IsTerminal() {
			return
		}

		next, stepErr := e.step(r, state)

		r.mu.Lock()
		if stepErr != nil {
			e.logger.Warn("cycle %s: %s -> error: %v", r.cc.CycleID, state, stepErr)
			next = StateFailed
			if r.cc.Verification == nil {
				r.cc.Verification = &Verification{Passed: false, Summary: stepErr.Error()}
			}
		}
		e.transitionLocked(r.cc, next)
		terminal := next.IsTerminal()
		r.mu.Unlock()

		if terminal {
			e.finish(r)
			return
		}
	}
}

func (e *Engine) transitionLocked(cc *Context, next State) {
	cc.History = append(cc.History, TransitionRecord{From: cc.State, To: next, At: e.clock()})
	cc.State = next
}

// step executes exactly one state's work and returns the state to
// transition to next. Errors returned here always resolve to FAILED by the
// caller; a state that needs a different non-error exit (CANCELLED,
// looping back for revision) returns that state directly with a nil error.
func (e *Engine) step(r *run, state State) (State, error) {
	ctx := r.ctx
	cc := r.cc

	switch state {
	case StateCuratingContext:
		return e.stepCurate(ctx, cc)
	case StateAwaitingContextApproval:
		return e.stepAwaitContextApproval(ctx, cc)
	case StateGeneratingProposal:
		return e.stepGenerateProposal(ctx, cc)
	case StateAwaitingProposalApproval:
		return e.stepAwaitProposalApproval(ctx, cc)
	case StateApplyingChanges:
		return e.stepApply(ctx, cc)
	case StateVerifying:
		return e.stepVerify(ctx, cc)
	case StateCommitting:
		return e.stepCommit(ctx, cc)
	case StateRollingBack:
		return e.stepRollback(ctx, cc)
	case StateReflecting:
		return e.stepReflect(cc), nil
	default:
		return StateFailed, fmt.Errorf("no handler for state %s", state)
	}
}

func (e *Engine) stepCurate(ctx context.Context, cc *Context) (State, error) {
	if ctx.Err() != nil {
		return StateCancelled, nil
	}
	e.emit(eventbus.KindAgentCurating, map[string]any{"cycle_id": cc.CycleID, "goal": cc.Goal})

	knownPaths, err := e.vfsys.ListTree(ctx, "")
	if err != nil {
		return StateFailed, sentinelerr.Wrap(sentinelerr.KindCurationFailed, err)
	}

	if e.curator == nil {
		return StateFailed, sentinelerr.New(sentinelerr.KindCurationFailed, "no curator or LLM client configured")
	}
	paths, err := e.curator.Curate(ctx, cc.Goal, knownPaths)
	if err != nil {
		return StateFailed, sentinelerr.Wrap(sentinelerr.KindCurationFailed, err)
	}
	if len(paths) == 0 {
		return StateFailed, sentinelerr.New(sentinelerr.KindCurationFailed, "curator selected zero paths for goal %q", cc.Goal)
	}

	type readResult struct {
		snapshot codec.FileSnapshot
		present  bool
	}
	results := make([]readResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(curationReadConcurrency)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			content, ok, readErr := e.vfsys.Read(gctx, p)
			if readErr != nil {
				return readErr
			}
			results[i] = readResult{snapshot: codec.FileSnapshot{Path: p, Content: string(content)}, present: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return StateFailed, sentinelerr.Wrap(sentinelerr.KindCurationFailed, err)
	}

	files := make([]codec.FileSnapshot, 0, len(paths))
	for _, r := range results {
		if r.present {
			files = append(files, r.snapshot)
		}
	}

	bundle := codec.EncodeContext(files)
	bundlePath := fmt.Sprintf("/sessions/%s/turn-%d/context.bundle", cc.SessionID, cc.TurnIndex)
	if err := e.vfsys.Write(ctx, bundlePath, []byte(bundle)); err != nil {
		return StateFailed, sentinelerr.Wrap(sentinelerr.KindCurationFailed, err)
	}

	cc.CuratedPaths = paths
	cc.ContextBundlePath = bundlePath
	cc.ContextBundle = bundle
	cc.ContextTokenEstimate = estimateTokens(e.logger, bundle)

	e.emit(eventbus.KindAwaitingContext, map[string]any{
		"cycle_id": cc.CycleID, "session_id": cc.SessionID, "bundle_path": bundlePath,
		"token_estimate": cc.ContextTokenEstimate,
	})
	return StateAwaitingContextApproval, nil
}

func (e *Engine) stepAwaitContextApproval(ctx context.Context, cc *Context) (State, error) {
	_, err := e.gate.RequestApproval(ctx, approval.RequestApprovalInput{
		ModuleID:    ModuleContext,
		Capability:  CapApprove,
		ActionLabel: "approve curated context for: " + cc.Goal,
		Payload:     cc.ContextBundle,
		Summary:     fmt.Sprintf("%d file(s) curated, ~%d tokens", len(cc.CuratedPaths), cc.ContextTokenEstimate),
	})
	return e.interpretApproval(err, StateGeneratingProposal, StateCuratingContext, cc)
}

func (e *Engine) stepGenerateProposal(ctx context.Context, cc *Context) (State, error) {
	if ctx.Err() != nil {
		return StateCancelled, nil
	}

	resp, err := e.llmClient.Propose(ctx, llm.ProposalRequest{Goal: cc.Goal, ContextBundle: cc.ContextBundle})
	if err != nil {
		return StateFailed, sentinelerr.Wrap(sentinelerr.KindProposalInvalid, err)
	}

	bundlePath := fmt.Sprintf("/sessions/%s/turn-%d/proposal.bundle", cc.SessionID, cc.TurnIndex)
	if err := e.vfsys.Write(ctx, bundlePath, []byte(resp.PatchBundle)); err != nil {
		return StateFailed, sentinelerr.Wrap(sentinelerr.KindProposalInvalid, err)
	}

	parsed, err := codec.DecodePatch(resp.PatchBundle)
	if err != nil {
		return StateFailed, sentinelerr.Wrap(sentinelerr.KindProposalInvalid, err)
	}

	cc.PatchBundlePath = bundlePath
	cc.PatchBundle = resp.PatchBundle
	cc.ChangeSet = parsed.Changes

	e.emit(eventbus.KindAwaitingProposal, map[string]any{
		"cycle_id": cc.CycleID, "session_id": cc.SessionID, "bundle_path": bundlePath, "change_count": len(cc.ChangeSet),
	})
	return StateAwaitingProposalApproval, nil
}

func (e *Engine) stepAwaitProposalApproval(ctx context.Context, cc *Context) (State, error) {
	_, err := e.gate.RequestApproval(ctx, approval.RequestApprovalInput{
		ModuleID:    ModuleProposal,
		Capability:  CapApproveProp,
		ActionLabel: "approve proposed changes for: " + cc.Goal,
		Payload:     cc.ChangeSet,
		Summary:     fmt.Sprintf("%d change(s)", len(cc.ChangeSet)),
		Diff:        e.renderProposalDiff(cc.ChangeSet),
	})
	return e.interpretApproval(err, StateApplyingChanges, StateGeneratingProposal, cc)
}

// renderProposalDiff builds the unified diff an approver reviews alongside
// a proposal approval request. A rendering failure degrades to an empty
// Diff rather than failing the cycle over a display concern.
func (e *Engine) renderProposalDiff(changes []codec.Change) string {
	if e.diffGen == nil || len(changes) == 0 {
		return ""
	}
	results, err := e.diffGen.GenerateForPatch(&codec.ParsedPatch{Changes: changes})
	if err != nil {
		e.logger.Warn("failed to render proposal diff: %v", err)
		return ""
	}
	var b strings.Builder
	for _, r := range results {
		if r.UnifiedDiff == "" {
			continue
		}
		b.WriteString(r.UnifiedDiff)
		if !strings.HasSuffix(r.UnifiedDiff, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// interpretApproval turns a Gate error into the next state: nil means
// approved; a *approval.RejectedError means revise (loop back, iterations
// += 1); a CANCELLED kind means the caller invoked cancel_cycle while
// suspended waiting on the approval.
func (e *Engine) interpretApproval(err error, onApprove, onReject State, cc *Context) (State, error) {
	if err == nil {
		return onApprove, nil
	}
	var rejected *approval.RejectedError
	if errors.As(err, &rejected) {
		cc.Iterations++
		if e.limits.MaxIterations > 0 && cc.Iterations > e.limits.MaxIterations {
			return StateFailed, sentinelerr.New(sentinelerr.KindInvalidGoal, "exceeded max iterations (%d)", e.limits.MaxIterations)
		}
		return onReject, nil
	}
	if sentinelKind(err) == sentinelerr.KindCancelled {
		return StateCancelled, nil
	}
	return StateFailed, err
}

func (e *Engine) stepApply(ctx context.Context, cc *Context) (State, error) {
	checkpointID, err := e.vfsys.Checkpoint(ctx, cc.CycleID)
	if err != nil {
		return StateFailed, sentinelerr.Wrap(sentinelerr.KindApplyFailed, err)
	}
	cc.CheckpointID = checkpointID

	e.emit(eventbus.KindCycleApplying, map[string]any{
		"cycle_id": cc.CycleID, "checkpoint_id": checkpointID, "change_count": len(cc.ChangeSet),
	})

	for _, change := range cc.ChangeSet {
		if ctx.Err() != nil {
			return StateRollingBack, nil
		}
		if applyErr := applyChange(ctx, e.vfsys, change); applyErr != nil {
			cc.Verification = &Verification{Passed: false, Summary: applyErr.Error()}
			return StateRollingBack, nil
		}
	}
	return StateVerifying, nil
}

// writeVerificationFile persists the turn's verification outcome to the
// session layout (§6) alongside context.bundle and proposal.bundle. Best
// effort: a write failure here never overrides the verification result
// already decided.
func (e *Engine) writeVerificationFile(ctx context.Context, cc *Context) {
	if cc.Verification == nil {
		return
	}
	path := fmt.Sprintf("/sessions/%s/turn-%d/verification.json", cc.SessionID, cc.TurnIndex)
	body := fmt.Sprintf("{\"passed\":%t,\"summary\":%q}", cc.Verification.Passed, cc.Verification.Summary)
	if err := e.vfsys.Write(ctx, path, []byte(body)); err != nil {
		e.logger.Warn("cycle %s: failed to persist verification.json: %v", cc.CycleID, err)
	}
}

func applyChange(ctx context.Context, store interface {
	Write(ctx context.Context, path string, content []byte) error
	Delete(ctx context.Context, path string) error
}, change codec.Change) error {
	switch change.Op {
	case codec.OpCreate, codec.OpModify:
		return store.Write(ctx, change.Path, []byte(change.NewContent))
	case codec.OpDelete:
		return store.Delete(ctx, change.Path)
	default:
		return fmt.Errorf("unknown op %q for path %q", change.Op, change.Path)
	}
}

func (e *Engine) stepVerify(ctx context.Context, cc *Context) (State, error) {
	e.emit(eventbus.KindCycleVerifying, map[string]any{"cycle_id": cc.CycleID})

	snapshot, err := e.vfsys.Snapshot(ctx)
	if err != nil {
		return StateFailed, sentinelerr.Wrap(sentinelerr.KindVerificationFailed, err)
	}

	result, err := e.verifier.Run(ctx, snapshot)
	if err != nil {
		cc.Verification = &Verification{Passed: false, Summary: err.Error()}
		return StateRollingBack, nil
	}

	cc.Verification = &Verification{Passed: result.Passed, Summary: result.Summary}
	if result.Passed {
		return StateCommitting, nil
	}
	return StateRollingBack, nil
}

func (e *Engine) stepCommit(ctx context.Context, cc *Context) (State, error) {
	message := fmt.Sprintf("Turn %d: %s", cc.TurnIndex, cc.Goal)
	versionID, err := e.vfsys.Commit(ctx, message, commitAuthor)
	if err != nil {
		return StateFailed, sentinelerr.Wrap(sentinelerr.KindApplyFailed, err)
	}
	cc.VersionID = versionID
	e.writeVerificationFile(ctx, cc)

	e.emit(eventbus.KindCycleCommitted, map[string]any{"cycle_id": cc.CycleID, "version_id": versionID})
	return StateReflecting, nil
}

func (e *Engine) stepRollback(ctx context.Context, cc *Context) (State, error) {
	reason := "verification failed"
	if cc.Verification != nil {
		reason = cc.Verification.Summary
	}

	// The restore must still run when the cycle was cancelled mid-apply.
	if err := e.vfsys.Restore(context.WithoutCancel(ctx), cc.CheckpointID); err != nil {
		// §7: RESTORE_FAILED escalates straight to FAILED with a loud event.
		e.emit(eventbus.KindCycleFailed, map[string]any{"cycle_id": cc.CycleID, "summary": "restore failed: " + err.Error()})
		return StateFailed, sentinelerr.Wrap(sentinelerr.KindRestoreFailed, err)
	}

	e.writeVerificationFile(ctx, cc)
	e.emit(eventbus.KindCycleRolledBack, map[string]any{
		"cycle_id": cc.CycleID, "checkpoint_id": cc.CheckpointID, "reason": reason,
	})

	if ctx.Err() != nil {
		return StateCancelled, nil
	}
	return StateReflecting, nil
}

// stepReflect implements the Open Question's resolved decision: REFLECTING
// is fire-and-forget. The reflection record is dispatched without blocking
// the terminal transition that follows it.
func (e *Engine) stepReflect(cc *Context) State {
	next := StateFailed
	outcome := reflection.OutcomeFailed
	if cc.Verification != nil && cc.Verification.Passed {
		next = StateDone
		outcome = reflection.OutcomeDone
	}

	reflection.RecordAsync(e.reflection, reflection.Record{
		CycleID:     cc.CycleID,
		Goal:        cc.Goal,
		Outcome:     outcome,
		Duration:    e.clock().Sub(cc.StartedAt),
		ChangeCount: len(cc.ChangeSet),
		Iterations:  cc.Iterations,
		Notes:       summaryOf(cc.Verification),
	})
	return next
}

func summaryOf(v *Verification) string {
	if v == nil {
		return ""
	}
	return v.Summary
}

func (e *Engine) finish(r *run) {
	r.mu.Lock()
	cc := r.cc
	state := cc.State
	r.mu.Unlock()

	duration := e.clock().Sub(cc.StartedAt)
	kind := eventbus.KindCycleDone
	summary := "committed " + cc.VersionID
	switch state {
	case StateFailed:
		kind = eventbus.KindCycleFailed
		summary = summaryOf(cc.Verification)
	case StateCancelled:
		kind = eventbus.KindCycleCancelled
		summary = "cancelled"
		reflection.RecordAsync(e.reflection, reflection.Record{
			CycleID: cc.CycleID, Goal: cc.Goal, Outcome: reflection.OutcomeCancelled,
			Duration: duration, ChangeCount: len(cc.ChangeSet), Iterations: cc.Iterations,
		})
	}

	e.emit(kind, map[string]any{"cycle_id": cc.CycleID, "duration_ms": duration.Milliseconds(), "summary": summary})

	e.mu.Lock()
	if e.current == r {
		e.current = nil
	}
	e.mu.Unlock()
}
