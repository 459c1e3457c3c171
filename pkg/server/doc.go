// See server.go for the plugin contract's UNIX-socket HTTP server and
// debug.go for the separate loopback /healthz, /ready, /metrics listener.
package server
