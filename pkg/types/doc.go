// Package types is intentionally small: Volume and ScheduledJob are plain
// structs with no behavior, shared by pkg/driver, pkg/scheduler
// and pkg/registry so none of them need to import one another just to pass
// a row around.
package types
