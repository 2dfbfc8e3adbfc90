package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sentinel-cycle/engine/internal/approval"
	"github.com/sentinel-cycle/engine/internal/config"
	"github.com/sentinel-cycle/engine/internal/eventbus"
	"github.com/sentinel-cycle/engine/internal/llm"
	"github.com/sentinel-cycle/engine/internal/logging"
	"github.com/sentinel-cycle/engine/internal/observability"
	"github.com/sentinel-cycle/engine/internal/reflection"
	"github.com/sentinel-cycle/engine/internal/verifier"
	"github.com/sentinel-cycle/engine/internal/vfs"
)

// runtime bundles the collaborators one cobra command needs to construct
// a cycle.Engine. Each command builds its own: run wires a ScriptedClient
// and a shell Runner; serve wires a shell Runner but no LLM client, and
// also starts the HTTP+WS listeners.
type runtime struct {
	cfg    config.Config
	logger logging.Logger
	store  *vfs.InMemory
	gate   *approval.Gate
	bus    *eventbus.Bus
	sink   *reflection.InMemorySink
	obs    *observability.Provider
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(configPathFlag, nil)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Config{Level: logging.LevelInfo, Component: "sentinel"})

	bus := eventbus.New(logger.With("eventbus"))
	gate := approval.NewGate(cfg.ToGateConfig(), logger.With("approval"), bus)
	sink := reflection.NewInMemorySink(logger.With("reflection"))
	store := vfs.NewInMemory()

	obs, err := observability.New(observability.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}
	collector := observability.NewCollector(obs, bus, logger.With("observability"))
	collector.Start(ctx)

	return &runtime{cfg: cfg, logger: logger, store: store, gate: gate, bus: bus, sink: sink, obs: obs}, nil
}

// seedWorkdir walks dir and loads every regular file into the VFS under
// its path relative to dir, giving a cycle something real to curate from.
func seedWorkdir(ctx context.Context, store *vfs.InMemory, dir string) error {
	if dir == "" {
		return nil
	}
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		vfsPath := "/" + filepath.ToSlash(rel)
		return store.Write(ctx, vfsPath, content)
	})
}

// scriptedLLMClient loads a JSON script describing canned curation and
// proposal responses. LLM transport is explicitly out of this engine's
// scope; this is the CLI's stand-in for a real adapter.
func scriptedLLMClient(path string) (llm.Client, error) {
	if path == "" {
		return nil, fmt.Errorf("--script is required: the engine does not implement LLM transport, it replays pre-recorded responses")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %q: %w", path, err)
	}
	client, err := decodeScript(data)
	if err != nil {
		return nil, fmt.Errorf("parse script %q: %w", path, err)
	}
	return client, nil
}

func verifierRunnerFromFlag(command string) verifier.Runner {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return verifier.NewShellRunner("true")
	}
	return verifier.NewShellRunner(fields[0], fields[1:]...)
}
