// See driver.go for the volume/snapshot handlers, schedule.go for the
// registry-backed handlers, and types.go for the JSON wire shapes. Every
// handler returns a value (never a bare Go error) so pkg/server can encode
// it as-is; the Err field is the only failure channel the plugin contract
// defines.
package driver
