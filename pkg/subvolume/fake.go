package subvolume

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Fake is an in-memory Runner for tests that don't have a real btrfs
// filesystem available. It tracks subvolumes as a set of paths (backed by
// plain directories on disk so callers can still list/stat them) and
// records enough call history for assertions.
type Fake struct {
	mu         sync.Mutex
	subvolumes map[string]bool
	nocow      map[string]bool
	label      string

	// Calls records every method invocation, in order, for test assertions.
	Calls []string
}

// NewFake returns an empty Fake reporting label as its filesystem label.
func NewFake(label string) *Fake {
	return &Fake{subvolumes: make(map[string]bool), nocow: make(map[string]bool), label: label}
}

func (f *Fake) record(format string, args ...interface{}) {
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
}

func (f *Fake) Exists(ctx context.Context, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Exists(%s)", path)
	return f.subvolumes[path]
}

func (f *Fake) Create(ctx context.Context, path string, disableCOW bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Create(%s,%v)", path, disableCOW)
	if f.subvolumes[path] {
		return &CommandError{Op: "create", Args: []string{path}, ExitCode: 1, Stderr: "Target path already exists"}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	f.subvolumes[path] = true
	f.nocow[path] = disableCOW
	return nil
}

func (f *Fake) Snapshot(ctx context.Context, src, dst string, readonly bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Snapshot(%s,%s,%v)", src, dst, readonly)
	if !f.subvolumes[src] {
		return &CommandError{Op: "snapshot", Args: []string{src, dst}, ExitCode: 1, Stderr: "not a subvolume"}
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	f.subvolumes[dst] = true
	return nil
}

func (f *Fake) Delete(ctx context.Context, path string, mustSucceed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Delete(%s,%v)", path, mustSucceed)
	if !f.subvolumes[path] {
		if mustSucceed {
			return &CommandError{Op: "delete", Args: []string{path}, ExitCode: 1, Stderr: "not a valid subvolume"}
		}
		return nil
	}
	delete(f.subvolumes, path)
	delete(f.nocow, path)
	return os.RemoveAll(path)
}

func (f *Fake) Show(ctx context.Context, path string) (*Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Show(%s)", path)
	if !f.subvolumes[path] {
		return nil, &CommandError{Op: "show", Args: []string{path}, ExitCode: 1, Stderr: "not a valid subvolume"}
	}
	fields := map[string]string{"Name": strings.TrimPrefix(path, "/")}
	if f.nocow[path] {
		fields["Flags"] = "nocow"
	} else {
		fields["Flags"] = "-"
	}
	return &Info{Fields: fields}, nil
}

func (f *Fake) Label(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Label(%s)", path)
	return f.label, nil
}

func (f *Fake) Sync(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Sync(%s)", path)
	return nil
}

var _ Runner = (*Fake)(nil)
var _ Runner = (*CLI)(nil)
