package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-cycle/engine/internal/codec"
)

func TestGenerator_GenerateForChange(t *testing.T) {
	gen := NewGenerator(3, false)

	t.Run("create diffs against empty old side", func(t *testing.T) {
		result, err := gen.GenerateForChange(codec.Change{Op: codec.OpCreate, Path: "new.go", NewContent: "package new\n"})
		require.NoError(t, err)
		assert.Greater(t, result.AddedLines, 0)
		assert.Equal(t, 0, result.DeletedLines)
		assert.Contains(t, result.UnifiedDiff, "--- a/new.go")
	})

	t.Run("delete diffs against empty new side", func(t *testing.T) {
		result, err := gen.GenerateForChange(codec.Change{Op: codec.OpDelete, Path: "old.go", OldContent: "package old\n"})
		require.NoError(t, err)
		assert.Equal(t, 0, result.AddedLines)
		assert.Greater(t, result.DeletedLines, 0)
	})

	t.Run("modify diffs old against new", func(t *testing.T) {
		result, err := gen.GenerateForChange(codec.Change{
			Op: codec.OpModify, Path: "existing.go",
			OldContent: "package existing\n", NewContent: "package existing // v2\n",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.UnifiedDiff)
	})

	t.Run("identical content produces no diff", func(t *testing.T) {
		result, err := gen.GenerateForChange(codec.Change{
			Op: codec.OpModify, Path: "same.go",
			OldContent: "package same\n", NewContent: "package same\n",
		})
		require.NoError(t, err)
		assert.Empty(t, result.UnifiedDiff)
		assert.Equal(t, 0, result.ChangedFiles)
	})

	t.Run("binary content is reported without a line diff", func(t *testing.T) {
		result, err := gen.GenerateForChange(codec.Change{
			Op: codec.OpModify, Path: "blob.bin",
			OldContent: "some text\x00binary data", NewContent: "different text\x00binary data",
		})
		require.NoError(t, err)
		assert.True(t, result.IsBinary)
		assert.Contains(t, result.UnifiedDiff, "Binary file")
	})

	t.Run("oversized content is reported skipped", func(t *testing.T) {
		large := strings.Repeat("a", maxDiffableBytes+1)
		modified := strings.Repeat("b", maxDiffableBytes+1)
		result, err := gen.GenerateForChange(codec.Change{Op: codec.OpModify, Path: "large.txt", OldContent: large, NewContent: modified})
		require.NoError(t, err)
		assert.Contains(t, result.UnifiedDiff, "diff skipped")
	})

	t.Run("multi-line rewrite reports both sides changing", func(t *testing.T) {
		result, err := gen.GenerateForChange(codec.Change{
			Op: codec.OpModify, Path: "main.go",
			OldContent: "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"Hello\")\n}\n",
			NewContent: "package main\n\nimport (\n\t\"fmt\"\n\t\"log\"\n)\n\nfunc main() {\n\tlog.Println(\"Hello, World!\")\n}\n",
		})
		require.NoError(t, err)
		assert.Greater(t, result.AddedLines, 0)
		assert.Greater(t, result.DeletedLines, 0)
		assert.Equal(t, 1, result.ChangedFiles)
	})
}

func TestGenerator_GenerateForPatch(t *testing.T) {
	gen := NewGenerator(3, false)
	patch := &codec.ParsedPatch{
		Changes: []codec.Change{
			{Op: codec.OpCreate, Path: "a.go", NewContent: "package a\n"},
			{Op: codec.OpDelete, Path: "b.go", OldContent: "package b\n"},
		},
	}

	results, err := gen.GenerateForPatch(patch)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Greater(t, results[0].AddedLines, 0)
	assert.Greater(t, results[1].DeletedLines, 0)
}

func TestDiffResult_FormatSummary(t *testing.T) {
	tests := []struct {
		name   string
		result DiffResult
		want   string
	}{
		{"no changes", DiffResult{}, "No changes"},
		{"only additions", DiffResult{AddedLines: 5, ChangedFiles: 1}, "+5 lines"},
		{"only deletions", DiffResult{DeletedLines: 3, ChangedFiles: 1}, "-3 lines"},
		{"binary", DiffResult{ChangedFiles: 1, IsBinary: true}, "Binary file changed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.FormatSummary())
		})
	}

	mixed := DiffResult{AddedLines: 5, DeletedLines: 3, ChangedFiles: 1}
	summary := mixed.FormatSummary()
	assert.Contains(t, summary, "+5 lines")
	assert.Contains(t, summary, "-3 lines")
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected bool
	}{
		{"plain text", "Hello, World!\nThis is plain text.", false},
		{"binary with null byte", "Hello\x00World", true},
		{"empty content", "", false},
		{"unicode text", "Hello, 世界! 🌍", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isBinary(tt.content))
		})
	}
}
