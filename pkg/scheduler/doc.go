// See scheduler.go for the tick loop that walks the job registry and
// dispatches enabled rows to pkg/driver by action prefix.
package scheduler
