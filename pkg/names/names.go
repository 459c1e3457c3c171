// Package names derives on-disk paths and snapshot identifiers from volume
// and snapshot names, and owns the one timestamp format used throughout the
// daemon: a Go reference layout equivalent to Python's "%Y-%m-%dT%H:%M:%S.%f".
package names

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DTFormat is the microsecond-precision timestamp layout embedded in every
// snapshot name: Base@Timestamp[@Host].
const DTFormat = "2006-01-02T15:04:05.000000"

// layout is the timestamp layout actually used by Stamp/ParseStamp. It
// defaults to DTFormat but can be overridden at startup via SetDTFormat,
// honoring the daemon's configured DTFORMAT setting.
var layout = DTFormat

// SetDTFormat overrides the layout used by Stamp/ParseStamp for the rest of
// the process. A blank value is ignored, leaving the current layout in place.
func SetDTFormat(l string) {
	if l != "" {
		layout = l
	}
}

// Stamp formats t using the configured layout.
func Stamp(t time.Time) string {
	return t.Format(layout)
}

// ParseStamp parses a timestamp in the configured layout.
func ParseStamp(s string) (time.Time, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("names: invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// Parsed is the decomposition of a snapshot name of the form
// Base@Timestamp or Base@Timestamp@Host.
type Parsed struct {
	Base      string
	Timestamp time.Time
	Host      string
}

// SplitStamp decomposes a snapshot name into its base volume name,
// timestamp, and optional host tag. It returns an error if name does not
// contain at least one '@'-separated timestamp component.
func SplitStamp(name string) (Parsed, error) {
	parts := strings.Split(name, "@")
	if len(parts) < 2 {
		return Parsed{}, fmt.Errorf("names: %q is not a snapshot name (missing '@')", name)
	}
	ts, err := ParseStamp(parts[1])
	if err != nil {
		return Parsed{}, err
	}
	p := Parsed{Base: parts[0], Timestamp: ts}
	if len(parts) >= 3 {
		p.Host = parts[2]
	}
	return p, nil
}

// SnapshotName builds a snapshot name from its components. host may be empty.
func SnapshotName(base string, t time.Time, host string) string {
	if host == "" {
		return fmt.Sprintf("%s@%s", base, Stamp(t))
	}
	return fmt.Sprintf("%s@%s@%s", base, Stamp(t), host)
}

// ValidateName rejects volume/snapshot names that could escape the volumes
// or snapshots root: empty names, names containing '/' or NUL, and "." / "..".
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("names: empty name")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("names: invalid name %q", name)
	}
	if strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("names: name %q must not contain a path separator or NUL byte", name)
	}
	return nil
}

// VolumePath returns the absolute path of volume name under root.
func VolumePath(root, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(root, name), nil
}

// SnapshotPath returns the absolute path of snapshot name under root. It
// applies the same ValidateName check as VolumePath: the snapshot name
// legitimately contains '@' but must not contain a path separator.
func SnapshotPath(root, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(root, name), nil
}
