/*
Package metrics exposes Prometheus counters and gauges for the volume driver
daemon: request counts per plugin endpoint, scheduler tick and per-job-kind
dispatch counters, purge/send outcome counters, a couple of component
health checks (registry, socket) served at /health and /ready, and a plain
liveness check served at /healthz. None of this is part of the plugin wire contract on the UNIX socket;
it is served on a separate loopback debug listener.
*/
package metrics
