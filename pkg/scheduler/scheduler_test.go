package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anybox/buttervolume/pkg/driver"
	"github.com/anybox/buttervolume/pkg/registry"
	"github.com/anybox/buttervolume/pkg/subvolume"
)

type harness struct {
	Driver        *driver.Driver
	Registry      *registry.Registry
	Pause         *registry.PauseMarker
	SnapshotsRoot string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	reg := registry.New(filepath.Join(root, "schedule.csv"))
	pause := registry.NewPauseMarker(filepath.Join(root, "schedule.disabled"))
	d := driver.New(
		subvolume.NewFake("testfs"),
		filepath.Join(root, "volumes"),
		filepath.Join(root, "snapshots"),
		filepath.Join(root, "test-remote"),
		22,
		reg,
		pause,
		zerolog.Nop(),
	)
	return &harness{Driver: d, Registry: reg, Pause: pause, SnapshotsRoot: filepath.Join(root, "snapshots")}
}

func (h *harness) createVolume(t *testing.T, name string) {
	t.Helper()
	resp := h.Driver.Create(context.Background(), struct {
		Name string `json:"Name"`
	}{Name: name})
	_ = resp
}

func (h *harness) snapshotCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(h.SnapshotsRoot)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func newScheduler(h *harness, fixed time.Time) *Scheduler {
	s := New(h.Registry, h.Pause, h.Driver, time.Minute, zerolog.Nop())
	s.now = func() time.Time { return fixed }
	return s
}

func TestTickSkipsWhenRegistryMissing(t *testing.T) {
	h := newHarness(t)
	s := newScheduler(h, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Tick()
	assert.Equal(t, 0, h.snapshotCount(t))
}

func TestTickSkipsWhenPaused(t *testing.T) {
	h := newHarness(t)
	h.createVolume(t, "vol1")
	require.NoError(t, h.Registry.Upsert("vol1", "snapshot", 60))
	require.NoError(t, h.Pause.Pause())

	s := newScheduler(h, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Tick()
	assert.Equal(t, 0, h.snapshotCount(t))
}

func TestTickDispatchesSnapshotActionAndRespectsTimer(t *testing.T) {
	h := newHarness(t)
	h.createVolume(t, "vol1")
	require.NoError(t, h.Registry.Upsert("vol1", "snapshot", 60))

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newScheduler(h, start)

	s.Tick()
	assert.Equal(t, 1, h.snapshotCount(t), "first tick should take a snapshot (ScheduleLog seeded to now-1day)")

	s.Tick()
	assert.Equal(t, 1, h.snapshotCount(t), "second tick within the 60 minute timer should not take another snapshot")

	s.now = func() time.Time { return start.Add(61 * time.Minute) }
	s.Tick()
	assert.Equal(t, 2, h.snapshotCount(t), "tick past the timer should take another snapshot")
}

func TestTickIsolatesPerJobFailure(t *testing.T) {
	h := newHarness(t)
	// "missing" has no backing volume: its snapshot dispatch must fail
	// without preventing "vol1"'s from running.
	h.createVolume(t, "vol1")
	require.NoError(t, h.Registry.Upsert("missing", "snapshot", 60))
	require.NoError(t, h.Registry.Upsert("vol1", "snapshot", 60))

	s := newScheduler(h, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Tick()
	assert.Equal(t, 1, h.snapshotCount(t))
}

func TestTickDispatchesPurgeAction(t *testing.T) {
	h := newHarness(t)
	h.createVolume(t, "vol1")

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Twenty hourly snapshots, oldest first, newest one hour old.
	for i := 20; i >= 1; i-- {
		age := time.Duration(i) * time.Hour
		h.Driver.SetClock(func() time.Time { return now.Add(-age) })
		_, err := h.Driver.SnapshotVolume(context.Background(), "vol1")
		require.NoError(t, err)
	}
	require.Equal(t, 20, h.snapshotCount(t))

	h.Driver.SetClock(func() time.Time { return now })
	require.NoError(t, h.Registry.Upsert("vol1", "purge:2h:2h", 60))
	s := newScheduler(h, now)
	s.Tick()

	after := h.snapshotCount(t)
	assert.Equal(t, 2, after, "purge:2h:2h against 20 hourly snapshots should leave exactly 2")
}
