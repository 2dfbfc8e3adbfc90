package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentinel-cycle/engine/internal/approval"
	"github.com/sentinel-cycle/engine/internal/cycle"
	"github.com/sentinel-cycle/engine/internal/eventbus"
	"github.com/sentinel-cycle/engine/internal/llm"
	"github.com/sentinel-cycle/engine/internal/llm/llmtest"
	"github.com/sentinel-cycle/engine/internal/reflection"
	"github.com/sentinel-cycle/engine/internal/verifier"
	"github.com/sentinel-cycle/engine/internal/vfs"
)

func buildTestEngine(t *testing.T) (*cycle.Engine, *approval.Gate, *eventbus.Bus) {
	t.Helper()
	store := vfs.NewInMemory()
	require.NoError(t, store.Write(context.Background(), "/src/main.js", []byte("export {}")))

	bus := eventbus.New(nil)
	gate := approval.NewGate(approval.Config{MasterMode: approval.ModeAutonomous}, nil, bus)
	sink := reflection.NewInMemorySink(nil)
	client := &llmtest.ScriptedClient{
		Curations: []llm.CurationResponse{{Paths: []string{"/src/main.js"}}},
		Proposals: []llm.ProposalResponse{{PatchBundle: "```sentinel-op\nop: CREATE\npath: /src/util.js\n```\n" +
			"\U0001F43E --- DOGS_START_FILE: /src/util.js ---\n" +
			"export const g=()=>1\n" +
			"\U0001F43E --- DOGS_END_FILE: /src/util.js ---\n"}},
	}
	ver := verifier.New(okRunner{}, verifier.DefaultConfig(), nil)

	engine := cycle.New(cycle.Dependencies{
		VFS: store, Gate: gate, LLM: client, Verifier: ver, Reflection: sink, Bus: bus, Clock: time.Now,
	})
	return engine, gate, bus
}

type okRunner struct{}

func (okRunner) Run(context.Context, map[string][]byte) (verifier.Result, error) {
	return verifier.Result{Passed: true}, nil
}

func TestStartCycleAndGetStatus(t *testing.T) {
	engine, _, bus := buildTestEngine(t)
	router := NewRouter(engine, bus, nil, RouterConfig{}, nil)

	body, _ := json.Marshal(startCycleRequest{Goal: "add greet()", SessionID: "s1"})
	req := httptest.NewRequest("POST", "/api/cycles", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 202, rec.Code)

	require.Eventually(t, func() bool {
		statusRec := httptest.NewRecorder()
		statusReq := httptest.NewRequest("GET", "/api/cycles/current", nil)
		router.ServeHTTP(statusRec, statusReq)
		return statusRec.Code == 200
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartCycleRejectsEmptyGoal(t *testing.T) {
	engine, _, bus := buildTestEngine(t)
	router := NewRouter(engine, bus, nil, RouterConfig{}, nil)

	body, _ := json.Marshal(startCycleRequest{Goal: "", SessionID: "s1"})
	req := httptest.NewRequest("POST", "/api/cycles", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 400, rec.Code)
}

func TestHealthzReturnsOK(t *testing.T) {
	engine, _, bus := buildTestEngine(t)
	router := NewRouter(engine, bus, nil, RouterConfig{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, 200, rec.Code)
}
