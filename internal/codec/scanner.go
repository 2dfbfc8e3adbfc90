package codec

import (
	"fmt"
	"strings"
)

// block is one marker-delimited region found by the scanner.
type block struct {
	path         string
	content      string
	startLine    int
	endLine      int
	hadEndMarker bool
}

// scanBlocks performs the single linear pass over bundle, looking for
// `<PawGlyph> --- <startTag> <path> ---` ... `<PawGlyph> --- <endTag> <path> ---`
// pairs. Lines outside any block are ignored as commentary (§4.3 Properties).
// It never backtracks: each line is visited once, and an unterminated start
// marker produces an error that names the exact line it occurred on.
func scanBlocks(bundle, startTag, endTag string) ([]block, error) {
	lines := strings.Split(bundle, "\n")
	var blocks []block

	var open *block
	var openLineIdx int
	var contentLines []string

	startPrefix := PawGlyph + markerSeparator + startTag
	endPrefix := PawGlyph + markerSeparator + endTag

	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r")

		switch {
		case open == nil && strings.HasPrefix(trimmed, startPrefix):
			path, err := extractPath(trimmed, startPrefix)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			open = &block{path: path, startLine: i + 1}
			openLineIdx = i
			contentLines = nil

		case open != nil && strings.HasPrefix(trimmed, endPrefix):
			endPath, err := extractPath(trimmed, endPrefix)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			if endPath != open.path {
				return nil, fmt.Errorf("line %d: end marker path %q does not match start marker path %q (opened line %d)",
					i+1, endPath, open.path, open.startLine)
			}
			open.content = strings.Join(contentLines, "\n")
			open.endLine = i + 1
			open.hadEndMarker = true
			blocks = append(blocks, *open)
			open = nil

		case open != nil:
			contentLines = append(contentLines, trimmed)
		}
	}

	if open != nil {
		return nil, fmt.Errorf("line %d: unterminated block for path %q", open.startLine, open.path)
	}
	_ = openLineIdx

	return blocks, nil
}

func extractPath(line, prefix string) (string, error) {
	rest := strings.TrimPrefix(line, prefix)
	rest = strings.TrimSpace(rest)
	if !strings.HasSuffix(rest, strings.TrimSpace(markerSuffix)) {
		return "", fmt.Errorf("malformed marker line: %q", line)
	}
	path := strings.TrimSpace(strings.TrimSuffix(rest, strings.TrimSpace(markerSuffix)))
	if path == "" {
		return "", fmt.Errorf("marker line has empty path: %q", line)
	}
	return path, nil
}

func catsMarker(tag, path string) string {
	return PawGlyph + markerSeparator + tag + " " + path + markerSuffix
}
