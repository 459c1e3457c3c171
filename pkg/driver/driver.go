// Package driver implements the Docker-volume-plugin-style handlers (C7):
// one method per endpoint in the wire contract, each accepting and
// returning the JSON shapes in types.go. Handlers never return a Go error:
// every failure, whether expected and documented (volume not found,
// malformed pattern, ...) or not, is encoded in the response's Err field,
// per the plugin contract.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/anybox/buttervolume/pkg/metrics"
	"github.com/anybox/buttervolume/pkg/names"
	"github.com/anybox/buttervolume/pkg/purge"
	"github.com/anybox/buttervolume/pkg/registry"
	"github.com/anybox/buttervolume/pkg/rsync"
	"github.com/anybox/buttervolume/pkg/sendrecv"
	"github.com/anybox/buttervolume/pkg/subvolume"
	"github.com/anybox/buttervolume/pkg/types"
)

// Driver composes the lower-level packages into the full handler surface.
type Driver struct {
	Subvolumes     subvolume.Runner
	VolumesRoot    string
	SnapshotsRoot  string
	TestRemoteRoot string
	SSHPort        int
	Registry       *registry.Registry
	Pause          *registry.PauseMarker
	Log            zerolog.Logger

	// now is overridden in tests for deterministic stamps.
	now func() time.Time
}

// New returns a Driver whose clock is time.Now; SetClock overrides it.
func New(runner subvolume.Runner, volumesRoot, snapshotsRoot, testRemoteRoot string, sshPort int, reg *registry.Registry, pause *registry.PauseMarker, log zerolog.Logger) *Driver {
	return &Driver{
		Subvolumes:     runner,
		VolumesRoot:    volumesRoot,
		SnapshotsRoot:  snapshotsRoot,
		TestRemoteRoot: testRemoteRoot,
		SSHPort:        sshPort,
		Registry:       reg,
		Pause:          pause,
		Log:            log,
		now:            time.Now,
	}
}

func (d *Driver) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// SetClock overrides the Driver's notion of "now", for tests outside this
// package that need deterministic snapshot timestamps.
func (d *Driver) SetClock(now func() time.Time) {
	d.now = now
}

func (d *Driver) volumePath(name string) (string, error) {
	return names.VolumePath(d.VolumesRoot, name)
}

func (d *Driver) snapshotPath(name string) (string, error) {
	return names.SnapshotPath(d.SnapshotsRoot, name)
}

// Create implements /VolumeDriver.Create.
func (d *Driver) Create(ctx context.Context, req createRequest) response {
	if strings.Contains(req.Name, "@") {
		return response{Err: fmt.Sprintf("%s: volume names must not contain '@'", req.Name)}
	}
	path, err := d.volumePath(req.Name)
	if err != nil {
		return response{Err: err.Error()}
	}
	if d.Subvolumes.Exists(ctx, path) {
		return response{} // idempotent
	}
	if err := d.Subvolumes.Create(ctx, path, true); err != nil {
		d.Log.Error().Err(err).Str("volume", req.Name).Msg("create failed")
		return response{Err: err.Error()}
	}
	return response{}
}

// Remove implements /VolumeDriver.Remove.
func (d *Driver) Remove(ctx context.Context, req removeRequest) response {
	path, err := d.volumePath(req.Name)
	if err != nil {
		return response{Err: err.Error()}
	}
	if err := d.Subvolumes.Delete(ctx, path, true); err != nil {
		return response{Err: fmt.Sprintf("%s: no such volume", req.Name)}
	}
	return response{}
}

// Mount implements /VolumeDriver.Mount (a pure observation; no mount
// syscall is performed).
func (d *Driver) Mount(ctx context.Context, req mountRequest) mountResponse {
	return d.pathOrMissing(ctx, req.Name)
}

// Path implements /VolumeDriver.Path.
func (d *Driver) Path(ctx context.Context, req mountRequest) mountResponse {
	return d.pathOrMissing(ctx, req.Name)
}

func (d *Driver) pathOrMissing(ctx context.Context, name string) mountResponse {
	path, err := d.volumePath(name)
	if err != nil {
		return mountResponse{response: response{Err: err.Error()}}
	}
	if !d.Subvolumes.Exists(ctx, path) {
		return mountResponse{response: response{Err: fmt.Sprintf("%s: no such volume", name)}}
	}
	return mountResponse{Mountpoint: path}
}

// Unmount implements /VolumeDriver.Unmount; always succeeds.
func (d *Driver) Unmount(ctx context.Context, req mountRequest) response {
	return response{}
}

// Get implements /VolumeDriver.Get.
func (d *Driver) Get(ctx context.Context, req mountRequest) getResponse {
	path, err := d.volumePath(req.Name)
	if err != nil {
		return getResponse{response: response{Err: err.Error()}}
	}
	if !d.Subvolumes.Exists(ctx, path) {
		return getResponse{response: response{Err: fmt.Sprintf("%s: no such volume", req.Name)}}
	}
	return getResponse{Volume: &types.Volume{Name: req.Name, Mountpoint: path}}
}

// List implements /VolumeDriver.List.
func (d *Driver) List(ctx context.Context) listResponse {
	entries, err := os.ReadDir(d.VolumesRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return listResponse{}
		}
		return listResponse{response: response{Err: err.Error()}}
	}
	var volumes []types.Volume
	for _, e := range entries {
		if e.Name() == "metadata.db" {
			continue
		}
		path := filepath.Join(d.VolumesRoot, e.Name())
		if !d.Subvolumes.Exists(ctx, path) {
			continue
		}
		volumes = append(volumes, types.Volume{Name: e.Name(), Mountpoint: path})
	}
	metrics.VolumesTotal.Set(float64(len(volumes)))
	return listResponse{Volumes: volumes}
}

// Snapshot implements /VolumeDriver.Snapshot.
func (d *Driver) Snapshot(ctx context.Context, req snapshotRequest) snapshotResponse {
	volPath, err := d.volumePath(req.Name)
	if err != nil {
		return snapshotResponse{response: response{Err: err.Error()}}
	}
	if !d.Subvolumes.Exists(ctx, volPath) {
		return snapshotResponse{response: response{Err: fmt.Sprintf("%s: no such volume", req.Name)}}
	}

	snapName := names.SnapshotName(req.Name, d.clock(), "")
	snapPath, err := d.snapshotPath(snapName)
	if err != nil {
		return snapshotResponse{response: response{Err: err.Error()}}
	}
	if err := d.Subvolumes.Snapshot(ctx, volPath, snapPath, true); err != nil {
		d.Log.Error().Err(err).Str("volume", req.Name).Msg("snapshot failed")
		return snapshotResponse{response: response{Err: err.Error()}}
	}
	return snapshotResponse{Snapshot: snapName}
}

// listSnapshotEntries enumerates SnapshotsRoot, optionally filtered to a
// base name, excluding host-tagged markers which are never regular
// snapshots of the base.
func (d *Driver) listSnapshotEntries(namePrefix string) ([]names.Parsed, []string, error) {
	entries, err := os.ReadDir(d.SnapshotsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	var parsed []names.Parsed
	var rawNames []string
	for _, e := range entries {
		name := e.Name()
		if namePrefix != "" && !strings.HasPrefix(name, namePrefix+"@") {
			continue
		}
		p, err := names.SplitStamp(name)
		if err != nil {
			d.Log.Debug().Err(err).Str("snapshot", name).Msg("skipping unparseable snapshot name")
			continue
		}
		if p.Host != "" {
			continue
		}
		parsed = append(parsed, p)
		rawNames = append(rawNames, name)
	}
	return parsed, rawNames, nil
}

// SnapshotList implements /VolumeDriver.Snapshot.List. Snapshots are
// returned as a flat list of names, matching the original plugin's wire
// shape.
func (d *Driver) SnapshotList(ctx context.Context, req snapshotListRequest) snapshotListResponse {
	_, rawNames, err := d.listSnapshotEntries(req.Name)
	if err != nil {
		return snapshotListResponse{response: response{Err: err.Error()}}
	}
	if req.Name == "" {
		metrics.SnapshotsTotal.Set(float64(len(rawNames)))
	}
	return snapshotListResponse{Snapshots: rawNames}
}

// SnapshotRemove implements /VolumeDriver.Snapshot.Remove.
func (d *Driver) SnapshotRemove(ctx context.Context, req snapshotRemoveRequest) response {
	path, err := d.snapshotPath(req.Name)
	if err != nil {
		return response{Err: err.Error()}
	}
	if !d.Subvolumes.Exists(ctx, path) {
		return response{Err: "No such snapshot"}
	}
	if err := d.Subvolumes.Delete(ctx, path, true); err != nil {
		return response{Err: "No such snapshot"}
	}
	return response{}
}

// latestSnapshot returns the most recent non-host-tagged snapshot name for
// base, or "" if none exist.
func (d *Driver) latestSnapshot(base string) (string, error) {
	parsed, rawNames, err := d.listSnapshotEntries(base)
	if err != nil {
		return "", err
	}
	if len(parsed) == 0 {
		return "", nil
	}
	idx := 0
	for i := range parsed {
		if parsed[i].Timestamp.After(parsed[idx].Timestamp) {
			idx = i
		}
	}
	return rawNames[idx], nil
}

// SnapshotRestore implements /VolumeDriver.Snapshot.Restore.
func (d *Driver) SnapshotRestore(ctx context.Context, req snapshotRestoreRequest) snapshotRestoreResponse {
	sourceName := req.Name
	base := sourceName
	if !strings.Contains(sourceName, "@") {
		latest, err := d.latestSnapshot(sourceName)
		if err != nil {
			return snapshotRestoreResponse{response: response{Err: err.Error()}}
		}
		if latest == "" {
			return snapshotRestoreResponse{} // nothing to restore, not an error
		}
		sourceName = latest
	} else {
		p, err := names.SplitStamp(sourceName)
		if err != nil {
			return snapshotRestoreResponse{response: response{Err: err.Error()}}
		}
		base = p.Base
	}

	target := req.Target
	if target == "" {
		target = base
	}

	sourcePath, err := d.snapshotPath(sourceName)
	if err != nil {
		return snapshotRestoreResponse{response: response{Err: err.Error()}}
	}
	if !d.Subvolumes.Exists(ctx, sourcePath) {
		return snapshotRestoreResponse{response: response{Err: "No such snapshot"}}
	}

	targetPath, err := d.volumePath(target)
	if err != nil {
		return snapshotRestoreResponse{response: response{Err: err.Error()}}
	}

	var backupName string
	if d.Subvolumes.Exists(ctx, targetPath) {
		backupName = names.SnapshotName(target, d.clock(), "")
		backupPath, err := d.snapshotPath(backupName)
		if err != nil {
			return snapshotRestoreResponse{response: response{Err: err.Error()}}
		}
		if err := d.Subvolumes.Snapshot(ctx, targetPath, backupPath, true); err != nil {
			return snapshotRestoreResponse{response: response{Err: err.Error()}}
		}
		if err := d.Subvolumes.Delete(ctx, targetPath, true); err != nil {
			return snapshotRestoreResponse{response: response{Err: err.Error()}}
		}
	}

	if err := d.Subvolumes.Snapshot(ctx, sourcePath, targetPath, false); err != nil {
		return snapshotRestoreResponse{response: response{Err: err.Error()}}
	}
	return snapshotRestoreResponse{VolumeBackup: backupName}
}

// Clone implements /VolumeDriver.Clone.
func (d *Driver) Clone(ctx context.Context, req cloneRequest) cloneResponse {
	sourcePath, err := d.volumePath(req.Name)
	if err != nil {
		return cloneResponse{response: response{Err: err.Error()}}
	}
	if !d.Subvolumes.Exists(ctx, sourcePath) {
		return cloneResponse{response: response{Err: fmt.Sprintf("%s: no such volume", req.Name)}}
	}
	targetPath, err := d.volumePath(req.Target)
	if err != nil {
		return cloneResponse{response: response{Err: err.Error()}}
	}
	if err := d.Subvolumes.Snapshot(ctx, sourcePath, targetPath, false); err != nil {
		return cloneResponse{response: response{Err: err.Error()}}
	}
	return cloneResponse{VolumeCloned: req.Target}
}

// SnapshotSend implements /VolumeDriver.Snapshot.Send, see pkg/sendrecv.
func (d *Driver) SnapshotSend(ctx context.Context, req snapshotSendRequest) response {
	var transport sendrecv.Transport
	if req.Test {
		transport = &sendrecv.LocalTransport{RemoteRoot: d.TestRemoteRoot}
	} else {
		transport = &sendrecv.SSHTransport{Port: d.SSHPort, RemoteRoot: d.VolumesRoot}
	}
	engine := sendrecv.New(d.Subvolumes, d.SnapshotsRoot, transport)
	result, err := engine.Send(ctx, req.Name, req.Host)
	if err != nil {
		metrics.SendsTotal.WithLabelValues(req.Host, "failed").Inc()
		d.Log.Error().Err(err).Str("volume", req.Name).Str("host", req.Host).Msg("send failed")
		return response{Err: err.Error()}
	}
	outcome := "full"
	if result.Incremental {
		outcome = "incremental"
	}
	metrics.SendsTotal.WithLabelValues(req.Host, outcome).Inc()
	return response{}
}

// SnapshotsPurge implements /VolumeDriver.Snapshots.Purge, see pkg/purge.
func (d *Driver) SnapshotsPurge(ctx context.Context, req purgeRequest) response {
	_, rawNames, err := d.listSnapshotEntries(req.Name)
	if err != nil {
		return response{Err: err.Error()}
	}
	marks, err := purge.Compute(rawNames, req.Pattern, d.clock())
	if err != nil {
		return response{Err: "Invalid purge pattern"}
	}
	if req.Dryrun {
		return response{}
	}
	for name, marked := range marks {
		if !marked {
			continue
		}
		path, err := d.snapshotPath(name)
		if err != nil {
			continue
		}
		if err := d.Subvolumes.Delete(ctx, path, false); err != nil {
			d.Log.Error().Err(err).Str("snapshot", name).Msg("purge delete failed")
			continue
		}
		metrics.SnapshotsPurgedTotal.Inc()
	}
	return response{}
}

// VolumeSync implements /VolumeDriver.Volume.Sync, see pkg/rsync.
func (d *Driver) VolumeSync(ctx context.Context, req volumeSyncRequest) response {
	puller := rsync.New(d.VolumesRoot, d.SSHPort)
	if req.Test {
		puller = rsync.New(d.TestRemoteRoot, d.SSHPort)
	}
	if err := puller.Sync(ctx, req.Volumes, req.Hosts); err != nil {
		return response{Err: err.Error()}
	}
	return response{}
}

// Capabilities implements /VolumeDriver.Capabilities.
func (d *Driver) Capabilities(ctx context.Context) capabilitiesResponse {
	return capabilitiesResponse{Capabilities: capabilities{Scope: "local"}}
}

// Activate implements /Plugin.Activate.
func (d *Driver) Activate(ctx context.Context) activateResponse {
	return activateResponse{Implements: []string{"VolumeDriver"}}
}

// The methods below are plain Go-error wrappers around the JSON handlers
// above, for in-process callers (the scheduler) that have no JSON boundary
// to cross.

// SnapshotVolume takes a snapshot of name and returns its generated name.
func (d *Driver) SnapshotVolume(ctx context.Context, name string) (string, error) {
	resp := d.Snapshot(ctx, snapshotRequest{Name: name})
	if resp.Err != "" {
		return "", fmt.Errorf("%s", resp.Err)
	}
	return resp.Snapshot, nil
}

// SendSnapshot sends snapshotName to host.
func (d *Driver) SendSnapshot(ctx context.Context, snapshotName, host string) error {
	resp := d.SnapshotSend(ctx, snapshotSendRequest{Name: snapshotName, Host: host})
	if resp.Err != "" {
		return fmt.Errorf("%s", resp.Err)
	}
	return nil
}

// PurgeVolume purges name's snapshots against pattern.
func (d *Driver) PurgeVolume(ctx context.Context, name, pattern string) error {
	resp := d.SnapshotsPurge(ctx, purgeRequest{Name: name, Pattern: pattern})
	if resp.Err != "" {
		return fmt.Errorf("%s", resp.Err)
	}
	return nil
}

// SyncVolumes pulls volumes from hosts via rsync.
func (d *Driver) SyncVolumes(ctx context.Context, volumes, hosts []string) error {
	resp := d.VolumeSync(ctx, volumeSyncRequest{Volumes: volumes, Hosts: hosts})
	if resp.Err != "" {
		return fmt.Errorf("%s", resp.Err)
	}
	return nil
}
