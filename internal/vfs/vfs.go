// Package vfs defines the thin contract the cycle FSM drives (§4.4): write,
// read, list, checkpoint, restore, commit, snapshot. The engine consumes
// this port; it never assumes a particular backing store. InMemory below is
// a content-addressed reference implementation adequate for embedding the
// engine in a test harness or a single-process tool; a real deployment
// backs VFS with whatever persistent store it already has (out of scope,
// per spec §1).
package vfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/sentinel-cycle/engine/internal/sentinelerr"
)

// VFS is the contract the cycle FSM depends on.
type VFS interface {
	Write(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, bool, error)
	Delete(ctx context.Context, path string) error
	ListTree(ctx context.Context, prefix string) ([]string, error)
	Checkpoint(ctx context.Context, label string) (string, error)
	Restore(ctx context.Context, checkpointID string) error
	Commit(ctx context.Context, message, author string) (string, error)
	Snapshot(ctx context.Context) (map[string][]byte, error)
}

// InMemory is a content-addressed, single-writer VFS: every path maps to a
// content hash, and every checkpoint/commit captures the full path->hash
// table plus the blob store needed to resolve it. Restore is atomic from
// the caller's perspective because it swaps the whole table under a single
// lock; it can never leave the tree half-restored.
type InMemory struct {
	mu sync.RWMutex

	// live maps path -> content hash for the current working tree.
	live map[string]string
	// blobs maps content hash -> bytes. Content-addressing means two paths
	// with identical content share storage, and a checkpoint only needs to
	// remember hashes, not copies.
	blobs map[string][]byte

	checkpoints map[string]map[string]string // checkpoint id -> path->hash snapshot
	versions    []Version
}

// Version records a commit.
type Version struct {
	ID      string
	Message string
	Author  string
}

// NewInMemory constructs an empty VFS.
func NewInMemory() *InMemory {
	return &InMemory{
		live:        make(map[string]string),
		blobs:       make(map[string][]byte),
		checkpoints: make(map[string]map[string]string),
	}
}

func hashOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (v *InMemory) Write(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	h := hashOf(content)
	v.blobs[h] = append([]byte(nil), content...)
	v.live[path] = h
	return nil
}

func (v *InMemory) Read(ctx context.Context, path string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	h, ok := v.live[path]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v.blobs[h]...), true, nil
}

func (v *InMemory) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.live[path]; !ok {
		return sentinelerr.New(sentinelerr.KindApplyFailed, "delete: path %q does not exist", path)
	}
	delete(v.live, path)
	return nil
}

func (v *InMemory) ListTree(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []string
	for p := range v.live {
		if prefix == "" || hasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func hasPrefix(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

// Checkpoint tags the current path->hash table under a fresh id. It never
// copies file content (hashes are already immutable in the blob store), so
// a checkpoint is O(number of live paths), not O(total bytes).
func (v *InMemory) Checkpoint(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	id := fmt.Sprintf("ckpt-%s-%d", label, len(v.checkpoints)+1)
	snap := make(map[string]string, len(v.live))
	for p, h := range v.live {
		snap[p] = h
	}
	v.checkpoints[id] = snap
	return id, nil
}

// Restore overwrites the live tree with a previously taken checkpoint.
// From the caller's perspective this is atomic: either the whole table is
// replaced, or (on unknown id) nothing changes and RESTORE_FAILED is
// returned.
func (v *InMemory) Restore(ctx context.Context, checkpointID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	snap, ok := v.checkpoints[checkpointID]
	if !ok {
		return sentinelerr.New(sentinelerr.KindRestoreFailed, "unknown checkpoint %q", checkpointID)
	}
	restored := make(map[string]string, len(snap))
	for p, h := range snap {
		restored[p] = h
	}
	v.live = restored
	return nil
}

func (v *InMemory) Commit(ctx context.Context, message, author string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	id := fmt.Sprintf("v%d", len(v.versions)+1)
	v.versions = append(v.versions, Version{ID: id, Message: message, Author: author})
	return id, nil
}

// Snapshot returns an immutable view of the current tree, suitable for
// handing to the Verifier.
func (v *InMemory) Snapshot(ctx context.Context) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[string][]byte, len(v.live))
	for p, h := range v.live {
		out[p] = append([]byte(nil), v.blobs[h]...)
	}
	return out, nil
}

// Versions returns the commit history (test/debug use).
func (v *InMemory) Versions() []Version {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Version(nil), v.versions...)
}
