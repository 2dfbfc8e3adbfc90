package cycle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-cycle/engine/internal/approval"
	"github.com/sentinel-cycle/engine/internal/diff"
	"github.com/sentinel-cycle/engine/internal/eventbus"
	"github.com/sentinel-cycle/engine/internal/llm"
	"github.com/sentinel-cycle/engine/internal/logging"
	"github.com/sentinel-cycle/engine/internal/reflection"
	"github.com/sentinel-cycle/engine/internal/sentinelerr"
	"github.com/sentinel-cycle/engine/internal/verifier"
	"github.com/sentinel-cycle/engine/internal/vfs"
)

// diffContextLines is the context-lines value the default diff.Generator is
// built with when the caller doesn't supply its own Generator. The Generator
// stores it; its rendered diffs do not depend on it.
const diffContextLines = 3

// Module/capability identifiers the Gate gates (§3's Approval Request
// describes capability tags like approve_context, approve_proposal).
const (
	ModuleContext  = "context"
	ModuleProposal = "proposal"
	CapApprove     = "approve_context"
	CapApproveProp = "approve_proposal"

	commitAuthor = "sentinel-engine"
)

// Curator selects which VFS paths belong in a cycle's context. The default
// implementation asks the LLM client; callers MAY substitute a
// deterministic curator (e.g. "every path under /src").
type Curator interface {
	Curate(ctx context.Context, goal string, knownPaths []string) ([]string, error)
}

// llmCurator adapts an llm.Client into a Curator, the engine's default.
type llmCurator struct {
	client llm.Client
}

func (c llmCurator) Curate(ctx context.Context, goal string, knownPaths []string) ([]string, error) {
	resp, err := c.client.Curate(ctx, llm.CurationRequest{Goal: goal, KnownPaths: knownPaths})
	if err != nil {
		return nil, err
	}
	return resp.Paths, nil
}

// Dependencies are the engine's collaborators, injected explicitly at
// construction (§9: no global registry).
type Dependencies struct {
	VFS        vfs.VFS
	Gate       *approval.Gate
	LLM        llm.Client
	Verifier   *verifier.Adapter
	Reflection reflection.Sink
	Bus        *eventbus.Bus
	Logger     logging.Logger
	Curator    Curator // optional; defaults to an llmCurator wrapping LLM
	Limits     Limits
	Clock      func() time.Time // optional; defaults to time.Now
	DiffGen    *diff.Generator  // optional; defaults to an uncolored generator
}

// Engine owns at most one active cycle at a time (§4.1: "Only one cycle is
// active per engine instance"). It is safe for concurrent use; start_cycle
// returns BUSY while one is already running.
type Engine struct {
	mu      sync.Mutex
	current *run

	vfsys      vfs.VFS
	gate       *approval.Gate
	llmClient  llm.Client
	verifier   *verifier.Adapter
	reflection reflection.Sink
	bus        *eventbus.Bus
	logger     logging.Logger
	curator    Curator
	limits     Limits
	clock      func() time.Time
	diffGen    *diff.Generator

	turnIndices map[string]int
}

// run wraps one in-flight Cycle Context with the driver's own bookkeeping.
// Context itself stays faithful to §3's data model; everything the FSM
// needs beyond that lives here.
type run struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	cc     *Context
	done   chan struct{}
}

// New constructs an Engine. It registers the Gate's two gated modules
// (context approval, proposal approval) so requires_approval resolves
// correctly from the first cycle onward.
func New(deps Dependencies) *Engine {
	if deps.Curator == nil && deps.LLM != nil {
		deps.Curator = llmCurator{client: deps.LLM}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.DiffGen == nil {
		deps.DiffGen = diff.NewGenerator(diffContextLines, false)
	}
	logger := logging.OrNop(deps.Logger).With("cycle")

	if deps.Gate != nil {
		deps.Gate.RegisterModule(ModuleContext, CapApprove)
		deps.Gate.RegisterModule(ModuleProposal, CapApproveProp)
	}

	return &Engine{
		vfsys:       deps.VFS,
		gate:        deps.Gate,
		llmClient:   deps.LLM,
		verifier:    deps.Verifier,
		reflection:  deps.Reflection,
		bus:         deps.Bus,
		logger:      logger,
		curator:     deps.Curator,
		limits:      deps.Limits,
		clock:       deps.Clock,
		diffGen:     deps.DiffGen,
		turnIndices: map[string]int{},
	}
}

func (e *Engine) emit(kind eventbus.Kind, payload map[string]any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Kind: kind, Payload: payload})
}

func (e *Engine) nextTurnIndex(sessionID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turnIndices[sessionID]++
	return e.turnIndices[sessionID]
}

func newCycleID() string {
	return "cycle-" + uuid.NewString()
}

func sentinelKind(err error) sentinelerr.Kind {
	return sentinelerr.KindOf(err)
}
