package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// EncodeInternalPatch renders the structured JSON form a model may emit
// instead of (or alongside) the textual patch dialect.
func EncodeInternalPatch(changes []Change, metadata map[string]string, timestamp time.Time) ([]byte, error) {
	for _, c := range changes {
		if err := validateChangeShape(c); err != nil {
			return nil, err
		}
	}
	patch := InternalPatch{
		Version:   DefaultInternalPatchVersion,
		Timestamp: timestamp,
		Metadata:  metadata,
		Changes:   changes,
	}
	return json.Marshal(patch)
}

// DecodeInternalPatch parses the structured JSON form. Model output is
// frequently near-valid JSON (trailing commas, unquoted keys, smart quotes);
// jsonrepair.JSONRepair normalizes it before the strict encoding/json pass.
func DecodeInternalPatch(raw []byte) (*InternalPatch, error) {
	repaired, err := jsonrepair.JSONRepair(string(raw))
	if err != nil {
		return nil, fmt.Errorf("internal patch is not repairable JSON: %w", err)
	}

	var patch InternalPatch
	if err := json.Unmarshal([]byte(repaired), &patch); err != nil {
		return nil, fmt.Errorf("internal patch JSON does not match expected shape: %w", err)
	}
	for _, c := range patch.Changes {
		if err := validateChangeShape(c); err != nil {
			return nil, fmt.Errorf("internal patch: %w", err)
		}
	}
	return &patch, nil
}

// ToParsedPatch buckets an InternalPatch's changes the same way DecodePatch
// does for the textual dialect, so downstream callers (the Gate, the VFS
// applier) can treat either origin identically.
func (p *InternalPatch) ToParsedPatch() *ParsedPatch {
	result := &ParsedPatch{Changes: p.Changes}
	for _, c := range p.Changes {
		switch c.Op {
		case OpCreate:
			result.Creates = append(result.Creates, c)
		case OpModify:
			result.Modifies = append(result.Modifies, c)
		case OpDelete:
			result.Deletes = append(result.Deletes, c)
		}
	}
	return result
}
