// Package llm defines the LLM client port: curation (which files belong in
// context) and proposal generation (the patch bundle). Transport and prompt
// templates are explicitly out of scope (§1) — this package only specifies
// the contract the cycle FSM suspends on.
package llm

import (
	"context"
	"time"
)

// CurationRequest asks the model which VFS paths belong in context for goal.
type CurationRequest struct {
	Goal       string
	KnownPaths []string
}

// CurationResponse is the model's chosen context paths.
type CurationResponse struct {
	Paths []string
}

// ProposalRequest supplies the context bundle the model reasons over.
type ProposalRequest struct {
	Goal          string
	ContextBundle string
}

// ProposalResponse is the model's raw patch bundle text, in the Codec's
// patch dialect.
type ProposalResponse struct {
	PatchBundle string
}

// Client is the LLM port the cycle FSM suspends on at points (a) in §5's
// scheduling model. Prompt construction is the adapter's concern, not the
// engine's (§9 Open Questions).
type Client interface {
	Curate(ctx context.Context, req CurationRequest) (CurationResponse, error)
	Propose(ctx context.Context, req ProposalRequest) (ProposalResponse, error)
}

// Config bounds one Client's calls (§5: LLM timeout default 60s).
type Config struct {
	Timeout time.Duration
}

// DefaultConfig matches §6's llm.timeout_ms default of 60000.
func DefaultConfig() Config {
	return Config{Timeout: 60 * time.Second}
}
