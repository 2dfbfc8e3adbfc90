package codec

import (
	"fmt"
	"strings"
)

const (
	preambleFenceOpen  = "```sentinel-op"
	preambleFenceClose = "```"
)

type preamble struct {
	op     Op
	path   string
	reason string
	line   int
}

// EncodePatch emits the patch bundle dialect: one fenced preamble per
// Change declaring op/path/reason, followed by a DOGS content block for
// every CREATE/MODIFY (DELETE has no content block, per §4.3).
func EncodePatch(changes []Change, metadata map[string]string) (string, error) {
	var b strings.Builder
	for _, c := range changes {
		if err := validateChangeShape(c); err != nil {
			return "", err
		}
		b.WriteString(preambleFenceOpen)
		b.WriteString("\n")
		fmt.Fprintf(&b, "op: %s\n", c.Op)
		fmt.Fprintf(&b, "path: %s\n", c.Path)
		if c.Reason != "" {
			fmt.Fprintf(&b, "reason: %s\n", c.Reason)
		}
		b.WriteString(preambleFenceClose)
		b.WriteString("\n")

		if c.Op != OpDelete {
			b.WriteString(catsMarker(dogsStartTag, c.Path))
			b.WriteString("\n")
			// Unconditional separator, matching EncodeContext: folding a real
			// trailing newline into this one makes "ends in \n" and "ends in
			// none" indistinguishable once scanBlocks joins lines with "\n".
			b.WriteString(c.NewContent)
			b.WriteString("\n")
			b.WriteString(catsMarker(dogsEndTag, c.Path))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func validateChangeShape(c Change) error {
	switch c.Op {
	case OpCreate, OpModify:
		if c.NewContent == "" && c.Op == OpCreate {
			// empty-file creates are legal; nothing to check beyond path presence.
		}
	case OpDelete:
		if c.NewContent != "" {
			return fmt.Errorf("DELETE change for %q must not carry new_content", c.Path)
		}
	default:
		return fmt.Errorf("unknown op %q for path %q", c.Op, c.Path)
	}
	if c.Path == "" {
		return fmt.Errorf("change is missing a path")
	}
	return nil
}

// scanPreambles finds every fenced preamble block in one linear pass.
func scanPreambles(bundle string) ([]preamble, error) {
	lines := strings.Split(bundle, "\n")
	var out []preamble

	i := 0
	for i < len(lines) {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) != preambleFenceOpen {
			i++
			continue
		}
		start := i + 1
		fields := map[string]string{}
		i++
		closed := false
		for i < len(lines) {
			inner := strings.TrimRight(lines[i], "\r")
			if strings.TrimSpace(inner) == preambleFenceClose {
				closed = true
				i++
				break
			}
			if key, val, ok := strings.Cut(inner, ":"); ok {
				fields[strings.TrimSpace(key)] = strings.TrimSpace(val)
			}
			i++
		}
		if !closed {
			return nil, fmt.Errorf("line %d: unterminated preamble block", start)
		}
		op := Op(strings.ToUpper(fields["op"]))
		path := fields["path"]
		if path == "" {
			return nil, fmt.Errorf("line %d: preamble missing path", start)
		}
		switch op {
		case OpCreate, OpModify, OpDelete:
		default:
			return nil, fmt.Errorf("line %d: unknown op %q", start, fields["op"])
		}
		out = append(out, preamble{op: op, path: path, reason: fields["reason"], line: start})
	}
	return out, nil
}

// DecodePatch parses a patch bundle into a ParsedPatch. An empty bundle
// decodes to zero changes without error.
func DecodePatch(bundle string) (*ParsedPatch, error) {
	preambles, err := scanPreambles(bundle)
	if err != nil {
		return nil, err
	}
	dogsBlocks, err := scanBlocks(bundle, dogsStartTag, dogsEndTag)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]block, len(dogsBlocks))
	for _, blk := range dogsBlocks {
		byPath[blk.path] = blk
	}

	seen := make(map[string]bool, len(preambles))
	result := &ParsedPatch{}

	for _, p := range preambles {
		if seen[p.path] {
			return nil, duplicatePathError(p.path)
		}
		seen[p.path] = true

		c := Change{Op: p.op, Path: p.path, Reason: p.reason}
		if p.op != OpDelete {
			blk, ok := byPath[p.path]
			if !ok {
				return nil, fmt.Errorf("line %d: %s change for %q has no content block", p.line, p.op, p.path)
			}
			c.NewContent = blk.content
		}

		result.Changes = append(result.Changes, c)
		switch p.op {
		case OpCreate:
			result.Creates = append(result.Creates, c)
		case OpModify:
			result.Modifies = append(result.Modifies, c)
		case OpDelete:
			result.Deletes = append(result.Deletes, c)
		}
	}

	return result, nil
}

// Validate checks bundle for structural well-formedness without building a
// full ParsedPatch/[]FileSnapshot result.
func Validate(bundle string, dialect Dialect) ValidationResult {
	var err error
	switch dialect {
	case DialectContext:
		_, err = DecodeContext(bundle)
	case DialectPatch:
		_, err = DecodePatch(bundle)
	default:
		return ValidationResult{Valid: false, Errors: []string{fmt.Sprintf("unknown dialect %q", dialect)}}
	}
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{err.Error()}}
	}
	return ValidationResult{Valid: true}
}

// VerifyAgainst performs the semantic check from §4.3: a MODIFY's declared
// old_content matches the snapshot, a DELETE target exists, a CREATE target
// is absent.
func VerifyAgainst(patch *ParsedPatch, snapshot map[string][]byte) VerifyResult {
	result := VerifyResult{Verified: true}
	for _, c := range patch.Changes {
		switch c.Op {
		case OpCreate:
			if _, exists := snapshot[c.Path]; exists {
				result.Verified = false
				result.Mismatches = append(result.Mismatches, Mismatch{Path: c.Path, Reason: "CREATE target already exists"})
			}
		case OpModify:
			current, exists := snapshot[c.Path]
			if !exists {
				result.Verified = false
				result.Mismatches = append(result.Mismatches, Mismatch{Path: c.Path, Reason: "MODIFY target does not exist"})
				continue
			}
			if c.OldContent != "" && string(current) != c.OldContent {
				result.Verified = false
				result.Mismatches = append(result.Mismatches, Mismatch{Path: c.Path, Reason: "MODIFY old_content does not match snapshot"})
			}
		case OpDelete:
			if _, exists := snapshot[c.Path]; !exists {
				result.Verified = false
				result.Mismatches = append(result.Mismatches, Mismatch{Path: c.Path, Reason: "DELETE target does not exist"})
			}
		}
	}
	return result
}
