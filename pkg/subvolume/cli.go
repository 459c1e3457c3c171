package subvolume

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// CLI is the production Runner, built on os/exec argument vectors against
// the real btrfs and chattr binaries. It never interpolates a path into a
// shell string.
type CLI struct {
	// BtrfsPath and ChattrPath default to "btrfs" and "chattr", resolved
	// against PATH, when left empty.
	BtrfsPath  string
	ChattrPath string
}

func (c *CLI) btrfs() string {
	if c.BtrfsPath != "" {
		return c.BtrfsPath
	}
	return "btrfs"
}

func (c *CLI) chattr() string {
	if c.ChattrPath != "" {
		return c.ChattrPath
	}
	return "chattr"
}

func (c *CLI) run(ctx context.Context, op, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	cerr := &CommandError{Op: op, Args: append([]string{name}, args...), Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	} else {
		cerr.ExitCode = -1
	}
	return stdout.String(), cerr
}

// Exists reports whether path is a btrfs subvolume by attempting to show it.
func (c *CLI) Exists(ctx context.Context, path string) bool {
	_, err := c.Show(ctx, path)
	return err == nil
}

// Create makes a new, empty subvolume at path, optionally disabling COW
// immediately afterward so no data is ever written under the default
// copy-on-write/checksummed attribute.
func (c *CLI) Create(ctx context.Context, path string, disableCOW bool) error {
	if _, err := c.run(ctx, "create", c.btrfs(), "subvolume", "create", path); err != nil {
		return err
	}
	if disableCOW {
		if _, err := c.run(ctx, "disable-cow", c.chattr(), "+C", path); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot creates dst as a (optionally read-only) snapshot of src.
func (c *CLI) Snapshot(ctx context.Context, src, dst string, readonly bool) error {
	args := []string{"subvolume", "snapshot"}
	if readonly {
		args = append(args, "-r")
	}
	args = append(args, src, dst)
	_, err := c.run(ctx, "snapshot", c.btrfs(), args...)
	return err
}

// Delete removes the subvolume at path. When mustSucceed is false, a
// failure that looks like "path is not a valid subvolume" is treated as
// already-deleted rather than an error.
func (c *CLI) Delete(ctx context.Context, path string, mustSucceed bool) error {
	_, err := c.run(ctx, "delete", c.btrfs(), "subvolume", "delete", path)
	if err == nil {
		return nil
	}
	if !mustSucceed {
		var cerr *CommandError
		if errors.As(err, &cerr) && cerr.NotValidSubvolume() {
			return nil
		}
	}
	return err
}

// Show returns the parsed `btrfs subvolume show` output for path.
func (c *CLI) Show(ctx context.Context, path string) (*Info, error) {
	out, err := c.run(ctx, "show", c.btrfs(), "subvolume", "show", path)
	if err != nil {
		return nil, err
	}
	return parseShow(out), nil
}

// Label returns the filesystem label of the btrfs filesystem containing path.
func (c *CLI) Label(ctx context.Context, path string) (string, error) {
	out, err := c.run(ctx, "label", c.btrfs(), "filesystem", "label", path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Sync forces btrfs to flush path's filesystem.
func (c *CLI) Sync(ctx context.Context, path string) error {
	_, err := c.run(ctx, "sync", c.btrfs(), "filesystem", "sync", path)
	return err
}

// parseShow parses `btrfs subvolume show` output of the form:
//
//	<path>
//	    Name:                   data
//	    UUID:                   ...
//	    ...
//	    Flags:                  -
//
//	    Snapshot(s):
//	                            data@2024-01-01T00:00:00.000000
func parseShow(raw string) *Info {
	info := &Info{Fields: make(map[string]string)}
	lines := strings.Split(raw, "\n")
	inSnapshots := false
	for i, line := range lines {
		if i == 0 {
			continue // header line: the path itself
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "Snapshot(s):") {
			inSnapshots = true
			continue
		}
		if inSnapshots {
			info.Snapshots = append(info.Snapshots, trimmed)
			continue
		}
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		info.Fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return info
}
