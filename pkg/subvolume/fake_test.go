package subvolume

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeCreateSnapshotDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	f := NewFake("testlabel")

	vol := filepath.Join(root, "data")
	require.NoError(t, f.Create(ctx, vol, true))
	assert.True(t, f.Exists(ctx, vol))

	snap := filepath.Join(root, "data@snap1")
	require.NoError(t, f.Snapshot(ctx, vol, snap, true))
	assert.True(t, f.Exists(ctx, snap))

	label, err := f.Label(ctx, vol)
	require.NoError(t, err)
	assert.Equal(t, "testlabel", label)

	require.NoError(t, f.Delete(ctx, snap, true))
	assert.False(t, f.Exists(ctx, snap))
}

func TestFakeDeleteNonexistentIdempotent(t *testing.T) {
	ctx := context.Background()
	f := NewFake("label")
	assert.NoError(t, f.Delete(ctx, "/nope", false))
	assert.Error(t, f.Delete(ctx, "/nope", true))
}

func TestFakeSnapshotRequiresExistingSource(t *testing.T) {
	ctx := context.Background()
	f := NewFake("label")
	err := f.Snapshot(ctx, "/does/not/exist", "/dst", true)
	assert.Error(t, err)
}
