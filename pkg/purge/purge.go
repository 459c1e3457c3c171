// Package purge implements the retention-pattern purge engine: a pure
// function from a set of candidate snapshot names, a colon-separated
// retention pattern, and a reference instant to the exact set of names to
// delete. It has no I/O side effects and does not know about btrfs, the
// filesystem, or the registry.
package purge

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/anybox/buttervolume/pkg/names"
)

// unitMinutes maps a pattern component's unit suffix to its minute value.
var unitMinutes = map[byte]int{
	'm': 1,
	'h': 60,
	'd': 1440,
	'w': 10080,
	'y': 525600,
}

// ParsePattern parses a colon-separated retention pattern such as "2h:2h" or
// "30m:1d:1w" into minute values, sorted ascending. It requires at least two
// components.
func ParsePattern(pattern string) ([]int, error) {
	parts := strings.Split(pattern, ":")
	if len(parts) < 2 {
		return nil, fmt.Errorf("purge: invalid purge pattern %q: need at least two components", pattern)
	}
	minutes := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("purge: invalid purge pattern %q: empty component", pattern)
		}
		unit := p[len(p)-1]
		mult, ok := unitMinutes[unit]
		if !ok {
			return nil, fmt.Errorf("purge: invalid purge pattern %q: unknown unit %q", pattern, string(unit))
		}
		n, err := strconv.Atoi(p[:len(p)-1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("purge: invalid purge pattern %q: bad count in %q", pattern, p)
		}
		minutes = append(minutes, n*mult)
	}
	sort.Ints(minutes)
	return minutes, nil
}

// candidate is a parsed snapshot name with its age in minutes relative to
// the reference instant.
type candidate struct {
	name string
	age  int
}

// Compute returns the set of snapshot names to delete given the full
// candidate set, a retention pattern, and a reference instant. Names that
// fail to parse as Base@Timestamp are skipped from consideration (kept,
// never marked for deletion) rather than rejecting the whole call. Names
// carrying a host-tagged third '@' segment must be filtered out by the
// caller before calling Compute — see §4.3's "not candidates" rule.
func Compute(candidates []string, pattern string, now time.Time) (map[string]bool, error) {
	minutes, err := ParsePattern(pattern)
	if err != nil {
		return nil, err
	}
	maxAge := minutes[len(minutes)-1]

	parsed := make([]candidate, 0, len(candidates))
	for _, name := range candidates {
		p, err := names.SplitStamp(name)
		if err != nil {
			continue // unparseable names are skipped, not rejected
		}
		age := int(now.Sub(p.Timestamp).Minutes())
		parsed = append(parsed, candidate{name: name, age: age})
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].age < parsed[j].age })

	marks := make(map[string]bool)
	k := len(minutes) - 1
	for i := 0; i <= k-1; i++ {
		hi := minutes[k-i]
		lo := minutes[k-i-1]
		lastFrame := -1
		for _, c := range parsed {
			if (c.age > hi && hi < maxAge) || c.age < lo {
				continue
			}
			frame := c.age / lo
			if frame == lastFrame || c.age > maxAge {
				marks[c.name] = true
			}
			lastFrame = frame
		}
	}
	return marks, nil
}
