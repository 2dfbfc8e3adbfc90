// Package llmtest provides test doubles for the llm.Client port, used by
// the cycle driver's tests and by one-shot CLI dry runs that don't want a
// live model transport.
package llmtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sentinel-cycle/engine/internal/llm"
)

// MockClient is a testify/mock-backed llm.Client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Curate(ctx context.Context, req llm.CurationRequest) (llm.CurationResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(llm.CurationResponse)
	return resp, args.Error(1)
}

func (m *MockClient) Propose(ctx context.Context, req llm.ProposalRequest) (llm.ProposalResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(llm.ProposalResponse)
	return resp, args.Error(1)
}

// ScriptedClient replays a fixed sequence of curation/proposal responses in
// order. Simpler than MockClient when a test doesn't need call assertions.
type ScriptedClient struct {
	Curations []llm.CurationResponse
	Proposals []llm.ProposalResponse

	curationIdx int
	proposalIdx int
}

func (s *ScriptedClient) Curate(ctx context.Context, req llm.CurationRequest) (llm.CurationResponse, error) {
	if s.curationIdx >= len(s.Curations) {
		return llm.CurationResponse{}, nil
	}
	resp := s.Curations[s.curationIdx]
	s.curationIdx++
	return resp, nil
}

func (s *ScriptedClient) Propose(ctx context.Context, req llm.ProposalRequest) (llm.ProposalResponse, error) {
	if s.proposalIdx >= len(s.Proposals) {
		return llm.ProposalResponse{}, nil
	}
	resp := s.Proposals[s.proposalIdx]
	s.proposalIdx++
	return resp, nil
}
