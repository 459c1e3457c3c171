package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/anybox/buttervolume/pkg/metrics"
)

// DebugServer serves /healthz, /ready and /metrics on a loopback address,
// separate from the UNIX-socket plugin contract.
type DebugServer struct {
	Log zerolog.Logger

	httpServer *http.Server
}

// NewDebugServer returns a DebugServer.
func NewDebugServer(log zerolog.Logger) *DebugServer {
	return &DebugServer{Log: log}
}

// Serve binds addr and blocks until Shutdown closes the listener.
func (d *DebugServer) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", metrics.LivenessHandler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.Handle("/metrics", metrics.Handler())

	d.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	d.Log.Info().Str("addr", addr).Msg("debug listener bound")
	err := d.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the debug server.
func (d *DebugServer) Shutdown(ctx context.Context) error {
	if d.httpServer == nil {
		return nil
	}
	return d.httpServer.Shutdown(ctx)
}
