package verifier

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ShellRunner is a concrete Runner that materializes a snapshot into a
// scratch directory and shells out to a test command there, the way the
// teacher's own infra packages wrap exec.CommandContext for one-shot
// external tools. It is the engine's reference Runner; nothing in the
// cycle package depends on it directly.
type ShellRunner struct {
	// Command is argv[0]; Args follow. Run inside the materialized
	// snapshot's root directory.
	Command string
	Args    []string
}

// NewShellRunner builds a ShellRunner that invokes command with args.
func NewShellRunner(command string, args ...string) ShellRunner {
	return ShellRunner{Command: command, Args: args}
}

// Run materializes snapshot under a temp directory, executes the
// configured command there, and reports pass/fail from its exit code.
// The temp directory is removed before returning.
func (r ShellRunner) Run(ctx context.Context, snapshot map[string][]byte) (Result, error) {
	root, err := os.MkdirTemp("", "sentinel-verify-*")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(root)

	for path, content := range snapshot {
		dest := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(path, "/")))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return Result{}, err
		}
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			return Result{}, err
		}
	}

	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Dir = root
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	if runErr != nil && ctx.Err() != nil {
		// The process was killed because its context expired (timeout or
		// cancellation), not because the command itself failed: propagate
		// the context error so the Adapter's timeout/cancellation handling
		// applies instead of reporting a false verification failure.
		return Result{}, ctx.Err()
	}

	summary := strings.TrimSpace(out.String())
	if runErr != nil {
		if summary == "" {
			summary = runErr.Error()
		}
		return Result{Passed: false, Summary: summary}, nil
	}
	return Result{Passed: true, Summary: summary}, nil
}
