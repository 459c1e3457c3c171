// Package subvolume wraps the four btrfs subvolume primitives the driver
// needs — exists, create (with optional no-COW), snapshot (optionally
// read-only), delete — plus filesystem label/sync, behind a small Runner
// interface. The production implementation shells out to the btrfs and
// chattr binaries with argument vectors, never a shell string, so a volume
// or snapshot name can never be interpreted by a shell. Tests use an
// in-memory Fake that mimics the same semantics against a plain directory
// tree, so the rest of the driver can be exercised without a real btrfs
// filesystem.
package subvolume
