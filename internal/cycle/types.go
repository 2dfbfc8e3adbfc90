// Package cycle implements the Cycle FSM (§4.1): the orchestrator that
// drives one goal-to-commit turn through curation, proposal, approval,
// apply, verification, and commit/rollback, suspending at exactly three
// points per §5's scheduling model.
package cycle

import (
	"time"

	"github.com/sentinel-cycle/engine/internal/codec"
)

// State is one node of the FSM graph in §4.1.
type State string

const (
	StateIdle                     State = "IDLE"
	StateCuratingContext          State = "CURATING_CONTEXT"
	StateAwaitingContextApproval  State = "AWAITING_CONTEXT_APPROVAL"
	StateGeneratingProposal       State = "GENERATING_PROPOSAL"
	StateAwaitingProposalApproval State = "AWAITING_PROPOSAL_APPROVAL"
	StateApplyingChanges          State = "APPLYING_CHANGES"
	StateVerifying                State = "VERIFYING"
	StateCommitting               State = "COMMITTING"
	StateRollingBack              State = "ROLLING_BACK"
	StateReflecting               State = "REFLECTING"
	StateDone                     State = "DONE"
	StateFailed                   State = "FAILED"
	StateCancelled                State = "CANCELLED"
)

// IsTerminal reports whether s admits no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateDone, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// TransitionRecord is one entry of the Cycle Context's append-only history.
type TransitionRecord struct {
	From State
	To   State
	At   time.Time
}

// Verification is the Verifier's reported outcome, recorded on the Cycle
// Context once VERIFYING completes.
type Verification struct {
	Passed  bool
	Summary string
}

// Context is the Cycle Context from §3: created at cycle start, mutated
// only by the FSM driver, and read-only to everything else via Snapshot.
type Context struct {
	CycleID   string
	Goal      string
	SessionID string
	TurnIndex int
	StartedAt time.Time

	CuratedPaths         []string
	ContextBundlePath    string
	ContextBundle        string
	ContextTokenEstimate int
	PatchBundlePath      string
	PatchBundle          string
	ChangeSet            []codec.Change

	CheckpointID string
	Verification *Verification
	VersionID    string

	State      State
	History    []TransitionRecord
	Iterations int
	Paused     bool
	PausedFrom State
}

// Snapshot is get_status's read-only view (§4.1).
type Snapshot struct {
	State          State
	Context        *Context
	RecentHistory  []TransitionRecord
	PendingCount   int
}

// Limits bounds open-ended cycle behaviour. MaxIterations of 0 means
// unbounded, matching §9's Open Question: the source enforces no cap, and
// this implementation keeps that default while making a cap configurable.
type Limits struct {
	MaxIterations int
}
