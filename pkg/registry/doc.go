// Package registry is the only place in the daemon that holds a mutex
// across an I/O operation: every Upsert serializes through Registry.mu and
// replaces the CSV file with a write-temp-then-rename, so a reader can
// never observe a partially written file. See registry.go for the row
// format and pause.go for the global pause marker.
package registry
