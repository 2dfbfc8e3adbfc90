package main

import (
	"encoding/json"

	"github.com/sentinel-cycle/engine/internal/llm"
	"github.com/sentinel-cycle/engine/internal/llm/llmtest"
)

// scriptFile is the on-disk shape --script points at: a fixed sequence of
// curation and proposal responses the engine replays in order, since LLM
// transport itself is an external collaborator this module doesn't implement.
type scriptFile struct {
	Curations []llm.CurationResponse `json:"curations"`
	Proposals []llm.ProposalResponse `json:"proposals"`
}

func decodeScript(data []byte) (*llmtest.ScriptedClient, error) {
	var sf scriptFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, err
	}
	return &llmtest.ScriptedClient{Curations: sf.Curations, Proposals: sf.Proposals}, nil
}
