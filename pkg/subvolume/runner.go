package subvolume

import (
	"context"
	"fmt"
	"strings"
)

// Info is the parsed output of `btrfs subvolume show`.
type Info struct {
	// Fields holds the "Key: value" pairs btrfs prints (Name, UUID, Parent
	// UUID, Received UUID, Creation time, Subvolume ID, Generation, Gen at
	// creation, Parent ID, Top level ID, Flags).
	Fields map[string]string
	// Snapshots lists the paths btrfs reports under "Snapshot(s):".
	Snapshots []string
}

// CommandError wraps the failure of an external btrfs/chattr invocation
// with enough context to log and to classify (e.g. "not a valid subvolume").
type CommandError struct {
	Op       string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("subvolume: %s %s: exit %d: %s", e.Op, strings.Join(e.Args, " "), e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *CommandError) Unwrap() error { return e.Err }

// NotValidSubvolume reports whether the failure looks like "path is not a
// btrfs subvolume", the case Delete treats as "already gone" when the
// caller does not require success.
func (e *CommandError) NotValidSubvolume() bool {
	s := strings.ToLower(e.Stderr)
	return strings.Contains(s, "not a subvolume") ||
		strings.Contains(s, "not empty") ||
		strings.Contains(s, "no such file or directory") ||
		strings.Contains(s, "not a valid subvolume")
}

// Runner is the facade over the btrfs subvolume primitives the driver needs.
// All paths are absolute; implementations must not interpret them through a
// shell.
type Runner interface {
	// Exists reports whether path is a btrfs subvolume.
	Exists(ctx context.Context, path string) bool

	// Create makes a new, empty subvolume at path. When disableCOW is true,
	// the subvolume is chattr +C'd immediately after creation, before any
	// data is written, so every file created inside it skips the
	// copy-on-write/checksum path.
	Create(ctx context.Context, path string, disableCOW bool) error

	// Snapshot creates dst as a snapshot of src. When readonly is true the
	// snapshot is created with `btrfs subvolume snapshot -r`.
	Snapshot(ctx context.Context, src, dst string, readonly bool) error

	// Delete removes the subvolume at path. When mustSucceed is false,
	// deleting a path that is not (or no longer) a valid subvolume is not
	// an error — this makes purge and replace idempotent.
	Delete(ctx context.Context, path string, mustSucceed bool) error

	// Show returns the parsed `btrfs subvolume show` output for path.
	Show(ctx context.Context, path string) (*Info, error)

	// Label returns the filesystem label of the btrfs filesystem containing
	// path.
	Label(ctx context.Context, path string) (string, error)

	// Sync forces btrfs to flush path's filesystem, used on the snapshots
	// root just before a send (a workaround for a send/receive race).
	Sync(ctx context.Context, path string) error
}
