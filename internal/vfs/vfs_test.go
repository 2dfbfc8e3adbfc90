package vfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	v := NewInMemory()
	ctx := context.Background()

	require.NoError(t, v.Write(ctx, "/src/a.txt", []byte("hello")))

	content, ok, err := v.Read(ctx, "/src/a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", string(content))
}

func TestCheckpointRestoreIsAtomic(t *testing.T) {
	v := NewInMemory()
	ctx := context.Background()

	require.NoError(t, v.Write(ctx, "/a.txt", []byte("v1")))
	ckpt, err := v.Checkpoint(ctx, "pre-apply")
	require.NoError(t, err)

	require.NoError(t, v.Write(ctx, "/a.txt", []byte("v2")))
	require.NoError(t, v.Write(ctx, "/b.txt", []byte("new file")))

	before, err := v.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, before, 2)

	require.NoError(t, v.Restore(ctx, ckpt))

	after, err := v.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, "v1", string(after["/a.txt"]))
}

func TestRestoreUnknownCheckpointFails(t *testing.T) {
	v := NewInMemory()
	err := v.Restore(context.Background(), "does-not-exist")
	require.Error(t, err)
}

func TestDeleteRequiresExistingPath(t *testing.T) {
	v := NewInMemory()
	ctx := context.Background()

	err := v.Delete(ctx, "/missing.txt")
	require.Error(t, err)

	require.NoError(t, v.Write(ctx, "/x.txt", []byte("x")))
	require.NoError(t, v.Delete(ctx, "/x.txt"))

	_, ok, err := v.Read(ctx, "/x.txt")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCommitRecordsVersion(t *testing.T) {
	v := NewInMemory()
	ctx := context.Background()

	id, err := v.Commit(ctx, "Turn 1: add greet()", "sentinel-engine")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, v.Versions(), 1)
	require.Equal(t, "Turn 1: add greet()", v.Versions()[0].Message)
}
