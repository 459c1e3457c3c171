// Package sendrecv implements the incremental snapshot-send protocol: find
// the last marker sent to a host, send an incremental stream against it (or
// a full stream on first send or on failure), and record a new local marker
// only once the transfer has succeeded.
package sendrecv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anybox/buttervolume/pkg/names"
	"github.com/anybox/buttervolume/pkg/subvolume"
)

// Engine drives the send protocol against a Transport.
type Engine struct {
	Subvolumes    subvolume.Runner
	SnapshotsRoot string
	Transport     Transport
}

// New returns an Engine.
func New(runner subvolume.Runner, snapshotsRoot string, transport Transport) *Engine {
	return &Engine{Subvolumes: runner, SnapshotsRoot: snapshotsRoot, Transport: transport}
}

// Result describes the outcome of a successful Send.
type Result struct {
	// Marker is the name of the new local host-tagged snapshot (S@Host).
	Marker string
	// Incremental is true if the transfer was sent against a parent.
	Incremental bool
}

// Send transfers snapshot name to host. name must already exist under
// SnapshotsRoot and must not contain shell metacharacters. On success it creates a local read-only marker S@Host and
// deletes any markers it superseded; on failure the local snapshot tree is
// left unchanged.
func (e *Engine) Send(ctx context.Context, name, host string) (*Result, error) {
	parsed, err := names.SplitStamp(name)
	if err != nil {
		return nil, fmt.Errorf("sendrecv: %w", err)
	}
	if parsed.Host != "" {
		return nil, fmt.Errorf("sendrecv: %q is a host-tagged marker, not sendable", name)
	}
	if strings.ContainsAny(name, "`$&|;<>()\\\"' \t\n*?[]{}~#!") {
		return nil, fmt.Errorf("sendrecv: %q contains shell metacharacters", name)
	}
	snapshotPath := filepath.Join(e.SnapshotsRoot, name)
	if !e.Subvolumes.Exists(ctx, snapshotPath) {
		return nil, fmt.Errorf("sendrecv: snapshot %q does not exist", name)
	}

	markers, err := e.markersFor(parsed.Base, host)
	if err != nil {
		return nil, err
	}
	var parent string
	if len(markers) > 0 {
		last := markers[len(markers)-1]
		parent = names.SnapshotName(parsed.Base, last.Timestamp, "")
	}

	// Workaround for a known send/receive race: force a flush before
	// reading from the subvolume we're about to stream.
	if err := e.Subvolumes.Sync(ctx, e.SnapshotsRoot); err != nil {
		return nil, fmt.Errorf("sendrecv: pre-send sync: %w", err)
	}

	parentPath := ""
	if parent != "" {
		parentPath = filepath.Join(e.SnapshotsRoot, parent)
	}

	incremental := parentPath != ""
	if err := e.Transport.SendReceive(ctx, snapshotPath, parentPath, host); err != nil {
		// Full resend fallback: best-effort delete the stale remote
		// target, then retry without a parent.
		_ = e.Transport.DeleteRemote(ctx, host, name)
		if err2 := e.Transport.SendReceive(ctx, snapshotPath, "", host); err2 != nil {
			return nil, fmt.Errorf("sendrecv: send to %s failed (incremental: %w), full resend also failed: %w", host, err, err2)
		}
		incremental = false
	}

	markerName := names.SnapshotName(parsed.Base, parsed.Timestamp, host)
	markerPath := filepath.Join(e.SnapshotsRoot, markerName)
	if err := e.Subvolumes.Snapshot(ctx, snapshotPath, markerPath, true); err != nil {
		return nil, fmt.Errorf("sendrecv: creating local marker %q: %w", markerName, err)
	}

	for _, m := range markers {
		oldMarker := names.SnapshotName(parsed.Base, m.Timestamp, host)
		oldPath := filepath.Join(e.SnapshotsRoot, oldMarker)
		if err := e.Subvolumes.Delete(ctx, oldPath, false); err != nil {
			return nil, fmt.Errorf("sendrecv: removing superseded marker %q: %w", oldMarker, err)
		}
	}

	return &Result{Marker: markerName, Incremental: incremental}, nil
}

// markersFor returns the host-tagged markers for base, sorted ascending by
// timestamp.
func (e *Engine) markersFor(base, host string) ([]names.Parsed, error) {
	entries, err := os.ReadDir(e.SnapshotsRoot)
	if err != nil {
		return nil, fmt.Errorf("sendrecv: listing %s: %w", e.SnapshotsRoot, err)
	}
	var markers []names.Parsed
	prefix := base + "@"
	for _, ent := range entries {
		name := ent.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		p, err := names.SplitStamp(name)
		if err != nil || p.Host != host {
			continue
		}
		markers = append(markers, p)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].Timestamp.Before(markers[j].Timestamp) })
	return markers, nil
}
