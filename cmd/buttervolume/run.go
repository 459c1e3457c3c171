package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anybox/buttervolume/pkg/config"
	"github.com/anybox/buttervolume/pkg/driver"
	"github.com/anybox/buttervolume/pkg/log"
	"github.com/anybox/buttervolume/pkg/metrics"
	"github.com/anybox/buttervolume/pkg/names"
	"github.com/anybox/buttervolume/pkg/registry"
	"github.com/anybox/buttervolume/pkg/scheduler"
	"github.com/anybox/buttervolume/pkg/server"
	"github.com/anybox/buttervolume/pkg/subvolume"
)

// version is set at build time via -ldflags; it defaults to "dev" for
// locally built binaries.
var version = "dev"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the volume driver daemon",
	Long: `Run starts the plugin socket server and the scheduler, and blocks
until a termination signal (INT, TERM, HUP, QUIT) arrives.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if socket, _ := cmd.Flags().GetString("socket"); socket != "" {
		cfg.Socket = socket
	}
	names.SetDTFormat(cfg.DTFormat)

	if err := os.MkdirAll(cfg.VolumesPath, 0o755); err != nil {
		return fmt.Errorf("ensuring volumes root: %w", err)
	}
	if err := os.MkdirAll(cfg.SnapshotsPath, 0o755); err != nil {
		return fmt.Errorf("ensuring snapshots root: %w", err)
	}

	metrics.SetVersion(version)
	reg := registry.New(cfg.SchedulePath)
	pause := registry.NewPauseMarker(cfg.PauseMarkerPath)
	metrics.RegisterComponent("registry", true, "")
	runner := &subvolume.CLI{}

	drv := driver.New(runner, cfg.VolumesPath, cfg.SnapshotsPath, cfg.TestRemotePath, cfg.SSHPort, reg, pause, log.WithComponent("driver"))

	sched := scheduler.New(reg, pause, drv, time.Duration(cfg.TimerSeconds)*time.Second, log.WithComponent("scheduler"))
	sched.Start()

	srv := server.New(drv, cfg.Socket, os.FileMode(cfg.SocketMode), log.WithComponent("server"))
	debugSrv := server.NewDebugServer(log.WithComponent("debug"))

	metrics.RegisterComponent("socket", true, "")
	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(); err != nil {
			metrics.UpdateComponent("socket", false, err.Error())
			serverErrCh <- err
		}
	}()
	go func() {
		if err := debugSrv.Serve(cfg.DebugListen); err != nil {
			log.WithComponent("debug").Error().Err(err).Msg("debug listener stopped")
		}
	}()

	log.Logger.Info().Str("socket", cfg.Socket).Str("debug", cfg.DebugListen).Msg("buttervolume daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	var exitNonZero bool
	select {
	case sig := <-sigCh:
		log.Logger.Info().Str("signal", sig.String()).Msg("received termination signal, shutting down")
		exitNonZero = true
	case err := <-serverErrCh:
		log.Logger.Error().Err(err).Msg("plugin server failed")
		exitNonZero = true
	}

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Logger.Error().Err(err).Msg("shutting down plugin server")
	}
	if err := debugSrv.Shutdown(ctx); err != nil {
		log.Logger.Error().Err(err).Msg("shutting down debug server")
	}

	if exitNonZero {
		os.Exit(1)
	}
	return nil
}
