package registry

import (
	"fmt"
	"os"
	"path/filepath"
)

// PauseMarker is the global schedule pause flag: a file whose mere presence
// suppresses scheduler dispatch. It does not touch the registry file.
type PauseMarker struct {
	path string
}

// NewPauseMarker returns a PauseMarker backed by the file at path.
func NewPauseMarker(path string) *PauseMarker {
	return &PauseMarker{path: path}
}

// Pause creates the marker file, idempotently.
func (p *PauseMarker) Pause() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("registry: creating pause marker directory: %w", err)
	}
	f, err := os.OpenFile(p.path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("registry: creating pause marker: %w", err)
	}
	return f.Close()
}

// Resume removes the marker file, idempotently.
func (p *PauseMarker) Resume() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("registry: removing pause marker: %w", err)
	}
	return nil
}

// Paused reports whether the marker file is present.
func (p *PauseMarker) Paused() bool {
	_, err := os.Stat(p.path)
	return err == nil
}
