// Package rsync wraps a single external command (rsync over ssh). See
// rsync.go for the exact flags and the per-pair error accumulation policy.
package rsync
