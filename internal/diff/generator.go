// Package diff renders the unified diffs an approver reviews alongside a
// pending context or proposal approval (§4.2's Diff field on an Approval
// Request): one renderer per codec.Change, plus GenerateForPatch, which
// renders every Change of a parsed patch in order.
package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sentinel-cycle/engine/internal/codec"
)

// maxDiffableBytes bounds diffmatchpatch's O(n*d) worst case; beyond this a
// Change's diff is reported as skipped rather than computed inline on the
// approval path.
const maxDiffableBytes = 10 * 1024 * 1024

// Generator renders the diff shown for one proposed Change.
type Generator struct {
	contextLines int
	colorEnabled bool
}

// NewGenerator creates a new diff generator
func NewGenerator(contextLines int, colorEnabled bool) *Generator {
	return &Generator{
		contextLines: contextLines,
		colorEnabled: colorEnabled,
	}
}

// DiffResult contains the generated diff and statistics
type DiffResult struct {
	UnifiedDiff  string
	AddedLines   int
	DeletedLines int
	ChangedFiles int
	IsBinary     bool
}

// GenerateForChange renders the diff the Gate shows an approver for one
// proposed Change: a CREATE diffs against an empty old side, a DELETE
// diffs against an empty new side, a MODIFY diffs old_content/new_content.
func (g *Generator) GenerateForChange(c codec.Change) (*DiffResult, error) {
	switch c.Op {
	case codec.OpCreate:
		return g.generateUnified("", c.NewContent, c.Path)
	case codec.OpDelete:
		return g.generateUnified(c.OldContent, "", c.Path)
	default:
		return g.generateUnified(c.OldContent, c.NewContent, c.Path)
	}
}

// GenerateForPatch renders one DiffResult per Change in patch, in
// declaration order, for the Diff shown on a proposal approval request
// that bundles multiple files.
func (g *Generator) GenerateForPatch(patch *codec.ParsedPatch) ([]*DiffResult, error) {
	results := make([]*DiffResult, 0, len(patch.Changes))
	for _, c := range patch.Changes {
		result, err := g.GenerateForChange(c)
		if err != nil {
			return nil, fmt.Errorf("diff %s %q: %w", c.Op, c.Path, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// generateUnified creates a unified diff between old and new content.
func (g *Generator) generateUnified(oldContent, newContent, filename string) (*DiffResult, error) {
	if oldContent == newContent {
		return &DiffResult{}, nil
	}

	if isBinary(oldContent) || isBinary(newContent) {
		return &DiffResult{
			UnifiedDiff:  fmt.Sprintf("Binary file %s has changed", filename),
			ChangedFiles: 1,
			IsBinary:     true,
		}, nil
	}

	if len(oldContent) > maxDiffableBytes || len(newContent) > maxDiffableBytes {
		return &DiffResult{
			UnifiedDiff: fmt.Sprintf("--- a/%s\n+++ b/%s\n@@ Large file (>10MB), diff skipped for performance @@",
				filename, filename),
			ChangedFiles: 1,
		}, nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, newContent, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	patches := dmp.PatchMake(oldContent, diffs)
	unifiedDiff := dmp.PatchToText(patches)

	if len(patches) == 0 || unifiedDiff == "" {
		return g.generateLineDiff(oldContent, newContent, filename)
	}

	addedLines, deletedLines := g.countChanges(diffs)

	return &DiffResult{
		UnifiedDiff:  g.formatUnifiedDiff(unifiedDiff, filename),
		AddedLines:   addedLines,
		DeletedLines: deletedLines,
		ChangedFiles: 1,
	}, nil
}

// generateLineDiff creates a line-based unified diff, the fallback when
// diffmatchpatch's patch text comes back empty (e.g. whitespace-only runs
// it cleans away entirely).
func (g *Generator) generateLineDiff(oldContent, newContent, filename string) (*DiffResult, error) {
	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")

	var body strings.Builder
	addedLines, deletedLines := 0, 0
	oldIdx, newIdx := 0, 0

	for oldIdx < len(oldLines) || newIdx < len(newLines) {
		switch {
		case oldIdx >= len(oldLines):
			for ; newIdx < len(newLines); newIdx++ {
				body.WriteString(g.colorize(fmt.Sprintf("+%s\n", newLines[newIdx]), color.FgGreen))
				addedLines++
			}
		case newIdx >= len(newLines):
			for ; oldIdx < len(oldLines); oldIdx++ {
				body.WriteString(g.colorize(fmt.Sprintf("-%s\n", oldLines[oldIdx]), color.FgRed))
				deletedLines++
			}
		case oldLines[oldIdx] == newLines[newIdx]:
			body.WriteString(fmt.Sprintf(" %s\n", oldLines[oldIdx]))
			oldIdx++
			newIdx++
		default:
			body.WriteString(g.colorize(fmt.Sprintf("-%s\n", oldLines[oldIdx]), color.FgRed))
			body.WriteString(g.colorize(fmt.Sprintf("+%s\n", newLines[newIdx]), color.FgGreen))
			deletedLines++
			addedLines++
			oldIdx++
			newIdx++
		}
	}

	hunkHeader := fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", 1, len(oldLines), 1, len(newLines))
	finalDiff := g.colorize("--- a/"+filename+"\n", color.FgRed) +
		g.colorize("+++ b/"+filename+"\n", color.FgGreen) +
		g.colorize(hunkHeader, color.FgCyan) +
		body.String()

	return &DiffResult{
		UnifiedDiff:  finalDiff,
		AddedLines:   addedLines,
		DeletedLines: deletedLines,
		ChangedFiles: 1,
	}, nil
}

// formatUnifiedDiff formats the patch text with proper headers and colors
func (g *Generator) formatUnifiedDiff(patchText, filename string) string {
	var result strings.Builder
	result.WriteString(g.colorize("--- a/"+filename+"\n", color.FgRed))
	result.WriteString(g.colorize("+++ b/"+filename+"\n", color.FgGreen))

	for _, line := range strings.Split(patchText, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			result.WriteString(g.colorize(line+"\n", color.FgCyan))
		case strings.HasPrefix(line, "+"):
			result.WriteString(g.colorize(line+"\n", color.FgGreen))
		case strings.HasPrefix(line, "-"):
			result.WriteString(g.colorize(line+"\n", color.FgRed))
		case line != "":
			result.WriteString(line + "\n")
		}
	}

	return result.String()
}

// countChanges counts added and deleted lines from diffs
func (g *Generator) countChanges(diffs []diffmatchpatch.Diff) (added, deleted int) {
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += lineCount(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += lineCount(d.Text)
		}
	}
	return
}

func lineCount(text string) int {
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// colorize applies color to text if color is enabled
func (g *Generator) colorize(text string, colorAttr color.Attribute) string {
	if !g.colorEnabled {
		return text
	}
	return color.New(colorAttr).Sprint(text)
}

// isBinary checks if content appears to be binary
func isBinary(content string) bool {
	checkLen := min(len(content), 8000)
	for i := 0; i < checkLen; i++ {
		if content[i] == 0 {
			return true
		}
	}
	return false
}

// FormatSummary returns a human-readable summary of a change's diff.
func (dr *DiffResult) FormatSummary() string {
	if dr.IsBinary {
		return "Binary file changed"
	}
	if dr.AddedLines == 0 && dr.DeletedLines == 0 {
		return "No changes"
	}

	var parts []string
	if dr.AddedLines > 0 {
		parts = append(parts, fmt.Sprintf("+%d lines", dr.AddedLines))
	}
	if dr.DeletedLines > 0 {
		parts = append(parts, fmt.Sprintf("-%d lines", dr.DeletedLines))
	}
	return strings.Join(parts, ", ")
}
