package codec

import "strings"

// EncodeContext emits the context bundle dialect: whole-file snapshots
// concatenated in declared order, each wrapped in CATS markers.
func EncodeContext(files []FileSnapshot) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(catsMarker(catsStartTag, f.Path))
		b.WriteString("\n")
		// Always emit exactly one separator newline before the end marker,
		// regardless of whether Content itself ends in one: scanBlocks joins
		// the lines it finds between markers with "\n", which only inverts
		// Split cleanly if the encoder never folds a real trailing newline
		// into this separator. Folding them (as a HasSuffix-conditional
		// append once did) makes "ends in one \n" and "ends in none"
		// encode to the same bytes, losing the distinction on decode.
		b.WriteString(f.Content)
		b.WriteString("\n")
		b.WriteString(catsMarker(catsEndTag, f.Path))
		b.WriteString("\n")
	}
	return b.String()
}

// DecodeContext parses a context bundle back into ordered file snapshots.
// An empty bundle decodes to zero files without error (§4.3 Properties).
func DecodeContext(bundle string) ([]FileSnapshot, error) {
	blocks, err := scanBlocks(bundle, catsStartTag, catsEndTag)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(blocks))
	files := make([]FileSnapshot, 0, len(blocks))
	for _, blk := range blocks {
		if seen[blk.path] {
			return nil, duplicatePathError(blk.path)
		}
		seen[blk.path] = true
		files = append(files, FileSnapshot{Path: blk.path, Content: blk.content})
	}
	return files, nil
}

func duplicatePathError(path string) error {
	return &duplicatePathErr{path: path}
}

type duplicatePathErr struct{ path string }

func (e *duplicatePathErr) Error() string {
	return "duplicate path in bundle: " + e.path
}
