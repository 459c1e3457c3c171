// Package registry persists the scheduled-job table as a header-less CSV
// file: Name,Action,Timer,Enabled. It also owns the global pause marker
// that Schedule.Pause/Resume toggle and the scheduler checks every tick.
package registry

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/anybox/buttervolume/pkg/types"
)

// Row is one parsed CSV record; Enabled is the bool decoded from the
// on-disk "True"/"False" string.
type Row struct {
	Name    string
	Action  string
	Timer   int
	Enabled bool
}

func (r Row) toJob() types.ScheduledJob {
	return types.ScheduledJob{Name: r.Name, Action: r.Action, Timer: r.Timer, Active: r.Enabled}
}

// Registry is a single CSV-backed job table with a serialized writer.
type Registry struct {
	path string
	mu   sync.Mutex
}

// New returns a Registry backed by the CSV file at path.
func New(path string) *Registry {
	return &Registry{path: path}
}

// List parses every row in the registry file in on-disk order. A missing
// file is treated as an empty registry. Any unparseable row fails the whole
// call closed.
func (r *Registry) List() ([]types.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.readLocked()
	if err != nil {
		return nil, err
	}
	jobs := make([]types.ScheduledJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toJob())
	}
	return jobs, nil
}

// Exists reports whether the registry file is present on disk. The
// scheduler treats a missing file as "skip this tick" rather than an error.
func (r *Registry) Exists() bool {
	_, err := os.Stat(r.path)
	return err == nil
}

// Upsert inserts, replaces, or removes the row identified by (name, action).
// A timer of 0 means "remove this row"; any other timer upserts it enabled.
func (r *Registry) Upsert(name, action string, timer int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.readLocked()
	if err != nil {
		return err
	}

	kept := rows[:0]
	for _, row := range rows {
		if row.Name == name && row.Action == action {
			continue
		}
		kept = append(kept, row)
	}
	if timer != 0 {
		kept = append(kept, Row{Name: name, Action: action, Timer: timer, Enabled: true})
	}
	return r.writeLocked(kept)
}

func (r *Registry) readLocked() ([]Row, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: opening %s: %w", r.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 4
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("registry: parsing %s: %w", r.path, err)
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		timer, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("registry: %s line %d: bad timer %q: %w", r.path, i+1, rec[2], err)
		}
		enabled, err := parseBool(rec[3])
		if err != nil {
			return nil, fmt.Errorf("registry: %s line %d: bad enabled %q: %w", r.path, i+1, rec[3], err)
		}
		rows = append(rows, Row{Name: rec[0], Action: rec[1], Timer: timer, Enabled: enabled})
	}
	return rows, nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "True":
		return true, nil
	case "False":
		return false, nil
	default:
		return false, fmt.Errorf("must be %q or %q", "True", "False")
	}
}

// writeLocked rewrites the whole registry file atomically: write to a
// sibling temp file, then rename over the target. The caller must hold mu.
func (r *Registry) writeLocked(rows []Row) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("registry: creating %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, ".schedule-"+uuid.New().String()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("registry: creating temp file: %w", err)
	}

	w := csv.NewWriter(f)
	for _, row := range rows {
		enabled := "False"
		if row.Enabled {
			enabled = "True"
		}
		record := []string{row.Name, row.Action, strconv.Itoa(row.Timer), enabled}
		if err := w.Write(record); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("registry: writing temp file: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("registry: flushing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("registry: closing temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("registry: renaming temp file into place: %w", err)
	}
	return nil
}
