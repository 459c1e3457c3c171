package driver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anybox/buttervolume/pkg/names"
	"github.com/anybox/buttervolume/pkg/registry"
	"github.com/anybox/buttervolume/pkg/subvolume"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	root := t.TempDir()
	d := New(
		subvolume.NewFake("testfs"),
		filepath.Join(root, "volumes"),
		filepath.Join(root, "snapshots"),
		filepath.Join(root, "test-remote"),
		22,
		registry.New(filepath.Join(root, "schedule.csv")),
		registry.NewPauseMarker(filepath.Join(root, "schedule.disabled")),
		zerolog.Nop(),
	)
	return d
}

func TestCreateRejectsAtSign(t *testing.T) {
	d := newTestDriver(t)
	resp := d.Create(context.Background(), createRequest{Name: "bad@name"})
	assert.NotEmpty(t, resp.Err)
}

func TestCreateIsIdempotent(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	r1 := d.Create(ctx, createRequest{Name: "v1"})
	require.Empty(t, r1.Err)
	r2 := d.Create(ctx, createRequest{Name: "v1"})
	require.Empty(t, r2.Err)

	list := d.List(ctx)
	require.Empty(t, list.Err)
	assert.Len(t, list.Volumes, 1)
}

func TestListAfterCreateRemove(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	require.Empty(t, d.Create(ctx, createRequest{Name: "a"}).Err)
	require.Empty(t, d.Create(ctx, createRequest{Name: "b"}).Err)
	require.Empty(t, d.Remove(ctx, removeRequest{Name: "a"}).Err)

	list := d.List(ctx)
	require.Len(t, list.Volumes, 1)
	assert.Equal(t, "b", list.Volumes[0].Name)
}

func TestMountPathGetOnMissingVolume(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	mr := d.Mount(ctx, mountRequest{Name: "missing"})
	assert.Equal(t, "missing: no such volume", mr.Err)

	gr := d.Get(ctx, mountRequest{Name: "missing"})
	assert.Equal(t, "missing: no such volume", gr.Err)
}

func TestSnapshotStampParsesBack(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 123000, time.UTC)
	d.now = func() time.Time { return fixed }

	require.Empty(t, d.Create(ctx, createRequest{Name: "v1"}).Err)
	snap := d.Snapshot(ctx, snapshotRequest{Name: "v1"})
	require.Empty(t, snap.Err)

	parsed, err := names.SplitStamp(snap.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, "v1", parsed.Base)
	assert.True(t, fixed.Equal(parsed.Timestamp))
}

func TestSnapshotListFiltersByNamePrefixAndExcludesMarkers(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	require.Empty(t, d.Create(ctx, createRequest{Name: "v1"}).Err)
	require.Empty(t, d.Create(ctx, createRequest{Name: "v2"}).Err)

	d.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	s1 := d.Snapshot(ctx, snapshotRequest{Name: "v1"})
	require.Empty(t, s1.Err)

	d.now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	s2 := d.Snapshot(ctx, snapshotRequest{Name: "v2"})
	require.Empty(t, s2.Err)

	// Fabricate a host-tagged marker directly; it must never appear in List.
	markerName := names.SnapshotName("v1", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), "backup01")
	markerPath, err := d.snapshotPath(markerName)
	require.NoError(t, err)
	v1Path, err := d.volumePath("v1")
	require.NoError(t, err)
	require.NoError(t, d.Subvolumes.Snapshot(ctx, v1Path, markerPath, true))

	list := d.SnapshotList(ctx, snapshotListRequest{Name: "v1"})
	require.Empty(t, list.Err)
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, s1.Snapshot, list.Snapshots[0])
}

func TestSnapshotRestoreWithExistingTargetTakesBackup(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	require.Empty(t, d.Create(ctx, createRequest{Name: "v1"}).Err)

	d.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	snap := d.Snapshot(ctx, snapshotRequest{Name: "v1"})
	require.Empty(t, snap.Err)

	d.now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	restore := d.SnapshotRestore(ctx, snapshotRestoreRequest{Name: snap.Snapshot})
	require.Empty(t, restore.Err)
	assert.NotEmpty(t, restore.VolumeBackup)

	// Volume still exists post-restore.
	path, err := d.volumePath("v1")
	require.NoError(t, err)
	assert.True(t, d.Subvolumes.Exists(ctx, path))
}

func TestSnapshotRestoreByVolumeNameWithNoSnapshotsIsNoop(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	require.Empty(t, d.Create(ctx, createRequest{Name: "v1"}).Err)

	restore := d.SnapshotRestore(ctx, snapshotRestoreRequest{Name: "v1"})
	assert.Empty(t, restore.Err)
	assert.Empty(t, restore.VolumeBackup)
}

func TestCloneRequiresExistingSource(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	resp := d.Clone(ctx, cloneRequest{Name: "missing", Target: "dst"})
	assert.NotEmpty(t, resp.Err)

	require.Empty(t, d.Create(ctx, createRequest{Name: "v1"}).Err)
	resp2 := d.Clone(ctx, cloneRequest{Name: "v1", Target: "v1-clone"})
	require.Empty(t, resp2.Err)
	assert.Equal(t, "v1-clone", resp2.VolumeCloned)
}

func TestCapabilitiesAndActivate(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	assert.Equal(t, "local", d.Capabilities(ctx).Capabilities.Scope)
	assert.Equal(t, []string{"VolumeDriver"}, d.Activate(ctx).Implements)
}

func TestScheduleRoundTripAndPause(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	require.Empty(t, d.Schedule(ctx, scheduleRequest{Name: "v1", Action: "snapshot", Timer: 60}).Err)
	list := d.ScheduleList(ctx)
	require.Empty(t, list.Err)
	require.Len(t, list.Schedule, 1)
	assert.True(t, list.Schedule[0].Active)

	require.Empty(t, d.SchedulePause(ctx).Err)
	assert.True(t, d.Pause.Paused())
	require.Empty(t, d.ScheduleResume(ctx).Err)
	assert.False(t, d.Pause.Paused())
}

func TestSnapshotsPurgeDryrunDoesNotDelete(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	require.Empty(t, d.Create(ctx, createRequest{Name: "v1"}).Err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	v1Path, _ := d.volumePath("v1")
	for i := 1; i <= 20; i++ {
		ts := now.Add(-time.Duration(i) * time.Hour)
		snapPath, _ := d.snapshotPath(names.SnapshotName("v1", ts, ""))
		require.NoError(t, d.Subvolumes.Snapshot(ctx, v1Path, snapPath, true))
	}
	d.now = func() time.Time { return now }

	resp := d.SnapshotsPurge(ctx, purgeRequest{Name: "v1", Pattern: "2h:2h", Dryrun: true})
	require.Empty(t, resp.Err)

	list := d.SnapshotList(ctx, snapshotListRequest{Name: "v1"})
	require.Empty(t, list.Err)
	assert.Len(t, list.Snapshots, 20, "dryrun must not delete anything")
}

func TestSnapshotsPurgeActuallyDeletes(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	require.Empty(t, d.Create(ctx, createRequest{Name: "v1"}).Err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	v1Path, _ := d.volumePath("v1")
	for i := 1; i <= 20; i++ {
		ts := now.Add(-time.Duration(i) * time.Hour)
		snapPath, _ := d.snapshotPath(names.SnapshotName("v1", ts, ""))
		require.NoError(t, d.Subvolumes.Snapshot(ctx, v1Path, snapPath, true))
	}
	d.now = func() time.Time { return now }

	resp := d.SnapshotsPurge(ctx, purgeRequest{Name: "v1", Pattern: "2h:2h"})
	require.Empty(t, resp.Err)

	list := d.SnapshotList(ctx, snapshotListRequest{Name: "v1"})
	require.Empty(t, list.Err)
	assert.Len(t, list.Snapshots, 2)
}
