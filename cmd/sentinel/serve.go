package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinel-cycle/engine/internal/approval"
	"github.com/sentinel-cycle/engine/internal/cycle"
	deliveryhttp "github.com/sentinel-cycle/engine/internal/delivery/http"
	"github.com/sentinel-cycle/engine/internal/delivery/ws"
	"github.com/sentinel-cycle/engine/internal/verifier"
)

const shutdownGrace = 10 * time.Second

func newServeCommand() *cobra.Command {
	var (
		addr        string
		verifyCmd   string
		corsOrigins []string
		autonomous  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "expose the cycle engine over HTTP (REST + SSE) and WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}

			runner := verifierRunnerFromFlag(verifyCmd)
			verifierAdapter := verifier.New(runner, verifier.Config{Timeout: rt.cfg.VerifierTimeout()}, rt.logger)

			// serve accepts requests from any process wanting to drive a
			// cycle over the wire, and it starts with no LLM client bound.
			// With neither an LLM client nor a Curator, a cycle started over
			// REST fails in CURATING_CONTEXT with CURATION_FAILED.
			engine := cycle.New(cycle.Dependencies{
				VFS:        rt.store,
				Gate:       rt.gate,
				Verifier:   verifierAdapter,
				Reflection: rt.sink,
				Bus:        rt.bus,
				Logger:     rt.logger,
			})

			// Only wire an auto-approve Drive loop when --autonomous is set.
			// Otherwise pending approvals sit on the Gate until a REST
			// client calls /api/cycles/current/approve or /revise —
			// engine.ApproveCurrent/ReviseCurrent resolve the Gate directly,
			// so no Resolver is needed for the HITL path.
			if autonomous {
				driveCtx, cancelDrive := context.WithCancel(ctx)
				defer cancelDrive()
				go approval.Drive(driveCtx, rt.bus, rt.gate, approval.NewAutoApproveResolver(rt.gate))
			}

			router := deliveryhttp.NewRouter(engine, rt.bus, rt.obs, deliveryhttp.RouterConfig{AllowedOrigins: corsOrigins}, rt.logger)
			mux := http.NewServeMux()
			mux.Handle("/", router)
			mux.Handle("/ws", ws.NewHandler(rt.bus, rt.logger))

			srv := &http.Server{Addr: addr, Handler: mux}

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("serving on %s", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
				rt.logger.Info("shutting down")
			case err := <-errCh:
				return fmt.Errorf("serve: %w", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown: %w", err)
			}
			return rt.obs.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&verifyCmd, "verify-cmd", "true", "shell command run against the applied snapshot to verify it")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "allowed CORS origins (default: allow all)")
	cmd.Flags().BoolVar(&autonomous, "autonomous", false, "auto-approve gated steps instead of waiting on REST approve/revise calls")

	return cmd
}
