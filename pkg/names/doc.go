// See names.go for the DTFormat constant and the Stamp/SplitStamp helpers
// that every other package uses to name and parse snapshots.
package names
