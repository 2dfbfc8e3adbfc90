package approval

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
)

// Resolver is the human-facing side of the Gate: Drive hands it each request
// announced by an approval:pending event, and it calls Approve/Reject.
// InteractiveResolver and AutoApproveResolver implement it; the REST
// delivery layer uses no Resolver and resolves approvals through the
// engine's ApproveCurrent/ReviseCurrent.
type Resolver interface {
	Resolve(req Request) error
}

// InteractiveResolver drives one terminal prompt per pending request,
// showing its diff/summary and offering approve, revise, or cancel.
type InteractiveResolver struct {
	Gate         *Gate
	ColorEnabled bool
}

// NewInteractiveResolver builds a Resolver that prompts on stdin/stdout.
func NewInteractiveResolver(gate *Gate, colorEnabled bool) *InteractiveResolver {
	return &InteractiveResolver{Gate: gate, ColorEnabled: colorEnabled}
}

// Resolve renders req and blocks on a promptui select. Approve approves on
// the Gate; Revise and Cancel both reject, Cancel with the reason
// "cancelled by user". The Gate has no cancel operation, so the engine
// treats a Cancel like any other rejection: as a revision that loops back.
func (r *InteractiveResolver) Resolve(req Request) error {
	r.render(req)

	prompt := promptui.Select{
		Label: "Apply this change?",
		Items: []string{"Approve", "Revise", "Cancel"},
	}
	_, choice, err := prompt.Run()
	if err != nil {
		return r.Gate.Reject(req.ApprovalID, fmt.Sprintf("prompt failed: %v", err))
	}

	switch choice {
	case "Approve":
		return r.Gate.Approve(req.ApprovalID, req.Payload)
	case "Revise":
		reasonPrompt := promptui.Prompt{Label: "Revision reason"}
		reason, _ := reasonPrompt.Run()
		return r.Gate.Reject(req.ApprovalID, reason)
	default:
		return r.Gate.Reject(req.ApprovalID, "cancelled by user")
	}
}

func (r *InteractiveResolver) render(req Request) {
	rule := r.colorize("────────────────────────────────────────", color.FgCyan)
	fmt.Println()
	fmt.Println(rule)
	fmt.Println(r.colorize(fmt.Sprintf("%s requests approval: %s", req.ModuleID, req.ActionLabel), color.FgYellow, color.Bold))
	fmt.Println(rule)
	if req.Summary != "" {
		fmt.Println(r.colorize("Summary:", color.FgCyan))
		fmt.Println(req.Summary)
		fmt.Println()
	}
	if req.Diff != "" {
		fmt.Println(r.colorize("Changes:", color.FgCyan))
		fmt.Println(req.Diff)
		fmt.Println()
	}
}

func (r *InteractiveResolver) colorize(text string, attrs ...color.Attribute) string {
	if !r.ColorEnabled {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// AutoApproveResolver resolves every request it sees with approval. It is
// what AUTONOMOUS-mode capabilities effectively behave like, and it is also
// useful for tests that never want to block on stdin.
type AutoApproveResolver struct {
	Gate *Gate
}

func NewAutoApproveResolver(gate *Gate) *AutoApproveResolver {
	return &AutoApproveResolver{Gate: gate}
}

func (r *AutoApproveResolver) Resolve(req Request) error {
	return r.Gate.Approve(req.ApprovalID, req.Payload)
}
