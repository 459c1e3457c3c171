// Package server binds the Docker-volume-plugin HTTP contract to a UNIX
// domain socket and, separately, binds a loopback debug listener carrying
// /healthz, /ready and /metrics. It is a thin JSON-encode/decode adapter
// over pkg/driver; all business logic lives there.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/anybox/buttervolume/pkg/driver"
	"github.com/anybox/buttervolume/pkg/metrics"
)

// Server serves the plugin contract over a UNIX socket.
type Server struct {
	Driver     *driver.Driver
	SocketPath string
	SocketMode os.FileMode
	Log        zerolog.Logger

	httpServer *http.Server
}

// New returns a Server bound to socketPath with the given file mode.
func New(d *driver.Driver, socketPath string, socketMode os.FileMode, log zerolog.Logger) *Server {
	return &Server{Driver: d, SocketPath: socketPath, SocketMode: socketMode, Log: log}
}

// Serve binds the UNIX socket and blocks serving requests until the
// listener is closed by Shutdown.
func (s *Server) Serve() error {
	_ = os.Remove(s.SocketPath)
	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.SocketPath, s.SocketMode); err != nil {
		ln.Close()
		return err
	}

	s.httpServer = &http.Server{
		Handler:      s.mux(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.Log.Info().Str("socket", s.SocketPath).Msg("plugin socket listening")
	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, waiting up to ctx's deadline for
// in-flight requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()

	plain(mux, "/Plugin.Activate", s.Driver.Activate)
	plain(mux, "/VolumeDriver.Capabilities", s.Driver.Capabilities)
	plain(mux, "/VolumeDriver.List", s.Driver.List)
	plain(mux, "/VolumeDriver.Schedule.List", s.Driver.ScheduleList)
	plain(mux, "/VolumeDriver.Schedule.Pause", s.Driver.SchedulePause)
	plain(mux, "/VolumeDriver.Schedule.Resume", s.Driver.ScheduleResume)

	decoded(mux, s.Log, "/VolumeDriver.Create", s.Driver.Create)
	decoded(mux, s.Log, "/VolumeDriver.Remove", s.Driver.Remove)
	decoded(mux, s.Log, "/VolumeDriver.Mount", s.Driver.Mount)
	decoded(mux, s.Log, "/VolumeDriver.Unmount", s.Driver.Unmount)
	decoded(mux, s.Log, "/VolumeDriver.Path", s.Driver.Path)
	decoded(mux, s.Log, "/VolumeDriver.Get", s.Driver.Get)
	decoded(mux, s.Log, "/VolumeDriver.Snapshot", s.Driver.Snapshot)
	decoded(mux, s.Log, "/VolumeDriver.Snapshot.List", s.Driver.SnapshotList)
	decoded(mux, s.Log, "/VolumeDriver.Snapshot.Remove", s.Driver.SnapshotRemove)
	decoded(mux, s.Log, "/VolumeDriver.Snapshot.Restore", s.Driver.SnapshotRestore)
	decoded(mux, s.Log, "/VolumeDriver.Clone", s.Driver.Clone)
	decoded(mux, s.Log, "/VolumeDriver.Snapshot.Send", s.Driver.SnapshotSend)
	decoded(mux, s.Log, "/VolumeDriver.Snapshots.Purge", s.Driver.SnapshotsPurge)
	decoded(mux, s.Log, "/VolumeDriver.Volume.Sync", s.Driver.VolumeSync)
	decoded(mux, s.Log, "/VolumeDriver.Schedule", s.Driver.Schedule)

	return mux
}

// plain registers an endpoint whose handler takes no request body.
func plain[Resp any](mux *http.ServeMux, path string, fn func(ctx context.Context) Resp) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		resp := fn(r.Context())
		recordRequest(path, resp, timer)
		writeJSON(w, resp)
	})
}

// decoded registers an endpoint whose handler decodes the JSON request
// body into Req before dispatching.
func decoded[Req any, Resp any](mux *http.ServeMux, log zerolog.Logger, path string, fn func(ctx context.Context, req Req) Resp) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		var req Req
		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Str("endpoint", path).Msg("reading request body")
			metrics.RequestsTotal.WithLabelValues(path, "error").Inc()
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"Err": err.Error()})
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				log.Error().Err(err).Str("endpoint", path).Msg("decoding request body")
				metrics.RequestsTotal.WithLabelValues(path, "error").Inc()
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"Err": err.Error()})
				return
			}
		}
		timer := metrics.NewTimer()
		resp := fn(r.Context(), req)
		recordRequest(path, resp, timer)
		writeJSON(w, resp)
	})
}

// errStringer is satisfied by every response type in pkg/driver (they all
// embed driver's response struct), letting recordRequest label outcomes
// without depending on the concrete response types.
type errStringer interface {
	ErrString() string
}

func recordRequest(path string, resp interface{}, timer *metrics.Timer) {
	outcome := "success"
	if e, ok := resp.(errStringer); ok && e.ErrString() != "" {
		outcome = "error"
	}
	metrics.RequestsTotal.WithLabelValues(path, outcome).Inc()
	timer.ObserveDurationVec(metrics.RequestDuration, path)
}

func writeJSON(w http.ResponseWriter, resp interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
