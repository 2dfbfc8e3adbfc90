package codec

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	files := []FileSnapshot{
		{Path: "/src/a.go", Content: "package a\n"},
		{Path: "/src/b.go", Content: "package b"},
	}

	bundle := EncodeContext(files)
	decoded, err := DecodeContext(bundle)
	require.NoError(t, err)

	if diff := cmp.Diff(files, decoded); diff != "" {
		t.Fatalf("context round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeContextEmptyBundle(t *testing.T) {
	files, err := DecodeContext("")
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestDecodeContextRejectsDuplicatePaths(t *testing.T) {
	bundle := EncodeContext([]FileSnapshot{{Path: "/a.go", Content: "x"}})
	bundle += bundle // duplicate the same block

	_, err := DecodeContext(bundle)
	require.Error(t, err)
}

func TestDecodeContextRejectsUnterminatedBlock(t *testing.T) {
	bundle := PawGlyph + " --- CATS_START_FILE: /a.go ---\npackage a\n"
	_, err := DecodeContext(bundle)
	require.Error(t, err)
}

func TestPatchRoundTrip(t *testing.T) {
	changes := []Change{
		{Op: OpCreate, Path: "/src/new.go", NewContent: "package new\n", Reason: "add module"},
		{Op: OpModify, Path: "/src/existing.go", NewContent: "package existing // v2\n", Reason: "bump version"},
		{Op: OpDelete, Path: "/src/old.go", Reason: "dead code"},
	}

	bundle, err := EncodePatch(changes, nil)
	require.NoError(t, err)

	parsed, err := DecodePatch(bundle)
	require.NoError(t, err)

	if diff := cmp.Diff(changes, parsed.Changes); diff != "" {
		t.Fatalf("patch round trip mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, parsed.Creates, 1)
	require.Len(t, parsed.Modifies, 1)
	require.Len(t, parsed.Deletes, 1)
}

func TestEncodePatchRejectsDeleteWithContent(t *testing.T) {
	_, err := EncodePatch([]Change{{Op: OpDelete, Path: "/x.go", NewContent: "oops"}}, nil)
	require.Error(t, err)
}

func TestDecodePatchRejectsMissingContentBlock(t *testing.T) {
	bundle := "```sentinel-op\nop: CREATE\npath: /x.go\n```\n"
	_, err := DecodePatch(bundle)
	require.Error(t, err)
}

func TestValidateReportsErrorsForMalformedPatch(t *testing.T) {
	result := Validate("```sentinel-op\nop: CREATE\npath: /x.go\n```\n", DialectPatch)
	require.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
}

func TestValidateAcceptsWellFormedContextBundle(t *testing.T) {
	bundle := EncodeContext([]FileSnapshot{{Path: "/a.go", Content: "package a"}})
	result := Validate(bundle, DialectContext)
	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
}

func TestVerifyAgainstDetectsMismatches(t *testing.T) {
	snapshot := map[string][]byte{
		"/existing.go": []byte("package existing\n"),
	}
	patch := &ParsedPatch{Changes: []Change{
		{Op: OpCreate, Path: "/existing.go"},
		{Op: OpModify, Path: "/missing.go"},
		{Op: OpDelete, Path: "/also-missing.go"},
	}}

	result := VerifyAgainst(patch, snapshot)
	require.False(t, result.Verified)
	require.Len(t, result.Mismatches, 3)
}

func TestVerifyAgainstPassesConsistentPatch(t *testing.T) {
	snapshot := map[string][]byte{
		"/existing.go": []byte("package existing\n"),
	}
	patch := &ParsedPatch{Changes: []Change{
		{Op: OpModify, Path: "/existing.go", OldContent: "package existing\n", NewContent: "package existing // v2\n"},
		{Op: OpCreate, Path: "/brand-new.go", NewContent: "package new\n"},
	}}

	result := VerifyAgainst(patch, snapshot)
	require.True(t, result.Verified)
	require.Empty(t, result.Mismatches)
}

func TestInternalPatchRoundTrip(t *testing.T) {
	changes := []Change{
		{Op: OpCreate, Path: "/src/new.go", NewContent: "package new\n"},
		{Op: OpDelete, Path: "/src/old.go", Reason: "dead code"},
	}
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	raw, err := EncodeInternalPatch(changes, map[string]string{"cycle_id": "c-1"}, ts)
	require.NoError(t, err)

	decoded, err := DecodeInternalPatch(raw)
	require.NoError(t, err)
	require.Equal(t, DefaultInternalPatchVersion, decoded.Version)
	require.True(t, ts.Equal(decoded.Timestamp))

	if diff := cmp.Diff(changes, decoded.Changes); diff != "" {
		t.Fatalf("internal patch round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeInternalPatchRepairsNearValidJSON(t *testing.T) {
	// trailing comma and unquoted keys, as a model might emit.
	raw := `{version: 2, timestamp: "2026-07-31T12:00:00Z", changes: [{op: "DELETE", path: "/x.go",},],}`

	decoded, err := DecodeInternalPatch([]byte(raw))
	require.NoError(t, err)
	require.Len(t, decoded.Changes, 1)
	require.Equal(t, OpDelete, decoded.Changes[0].Op)
}
