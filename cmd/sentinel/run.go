package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sentinel-cycle/engine/internal/approval"
	"github.com/sentinel-cycle/engine/internal/cycle"
	"github.com/sentinel-cycle/engine/internal/verifier"
)

func newRunCommand() *cobra.Command {
	var (
		goal        string
		sessionID   string
		workdir     string
		scriptPath  string
		verifyCmd   string
		autonomous  bool
		colorPrompt bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "drive one cycle to completion against a local working directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}

			if err := seedWorkdir(ctx, rt.store, workdir); err != nil {
				return fmt.Errorf("seed working directory %q: %w", workdir, err)
			}

			client, err := scriptedLLMClient(scriptPath)
			if err != nil {
				return err
			}

			runner := verifierRunnerFromFlag(verifyCmd)
			verifierAdapter := verifier.New(runner, verifier.Config{Timeout: rt.cfg.VerifierTimeout()}, rt.logger)

			engine := cycle.New(cycle.Dependencies{
				VFS:        rt.store,
				Gate:       rt.gate,
				LLM:        client,
				Verifier:   verifierAdapter,
				Reflection: rt.sink,
				Bus:        rt.bus,
				Logger:     rt.logger,
			})

			var resolver approval.Resolver
			if autonomous {
				resolver = approval.NewAutoApproveResolver(rt.gate)
			} else {
				resolver = approval.NewInteractiveResolver(rt.gate, colorPrompt)
			}
			driveCtx, cancelDrive := context.WithCancel(ctx)
			defer cancelDrive()
			go approval.Drive(driveCtx, rt.bus, rt.gate, resolver)

			cycleID, err := engine.StartCycle(ctx, goal, sessionID)
			if err != nil {
				return fmt.Errorf("start cycle: %w", err)
			}
			rt.logger.Info("started cycle %s for session %s", cycleID, sessionID)

			if err := engine.WaitDone(ctx); err != nil {
				return fmt.Errorf("cycle did not finish cleanly: %w", err)
			}

			snap := engine.GetStatus(5)
			rt.logger.Info("cycle finished in state %s", snap.State)
			return rt.obs.Shutdown(context.Background())
		},
	}

	cmd.Flags().StringVar(&goal, "goal", "", "the goal text driving this cycle (required)")
	cmd.Flags().StringVar(&sessionID, "session", "local", "session identifier grouping this cycle's turns")
	cmd.Flags().StringVar(&workdir, "workdir", "", "a directory to load into the cycle's VFS before starting")
	cmd.Flags().StringVar(&scriptPath, "script", "", "path to a JSON file of canned curation/proposal responses")
	cmd.Flags().StringVar(&verifyCmd, "verify-cmd", "true", "shell command run against the applied snapshot to verify it")
	cmd.Flags().BoolVar(&autonomous, "autonomous", false, "auto-approve every gated step instead of prompting")
	cmd.Flags().BoolVar(&colorPrompt, "color", true, "colorize the interactive approval prompt")
	cmd.MarkFlagRequired("goal")

	return cmd
}
