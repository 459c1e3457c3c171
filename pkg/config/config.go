// Package config resolves the daemon's configuration surface: volumes and
// snapshots roots, registry and pause-marker paths, the UNIX socket, the
// scheduler tick interval, and logging options. Each setting is read from
// an environment variable first, then a YAML config file, then a hardcoded
// default, following the precedence the daemon has always used.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/anybox/buttervolume/pkg/names"
)

// Config is the fully resolved daemon configuration.
type Config struct {
	VolumesPath     string `yaml:"volumes_path"`
	SnapshotsPath   string `yaml:"snapshots_path"`
	TestRemotePath  string `yaml:"test_remote_path"`
	SchedulePath    string `yaml:"schedule_path"`
	PauseMarkerPath string `yaml:"pause_marker_path"`
	Socket          string `yaml:"socket"`
	SocketMode      uint32 `yaml:"socket_mode"`
	TimerSeconds    int    `yaml:"timer_seconds"`
	DTFormat        string `yaml:"dtformat"`
	LogLevel        string `yaml:"log_level"`
	LogJSON         bool   `yaml:"log_json"`
	SSHPort         int    `yaml:"ssh_port"`
	DebugListen     string `yaml:"debug_listen"`
}

// defaults mirror the daemon's historical hardcoded values.
func defaults() Config {
	return Config{
		VolumesPath:     "/var/lib/buttervolume/volumes",
		SnapshotsPath:   "/var/lib/buttervolume/snapshots",
		TestRemotePath:  "/var/lib/buttervolume/test-remote",
		SchedulePath:    "/etc/buttervolume/schedule.csv",
		PauseMarkerPath: "/etc/buttervolume/schedule.disabled",
		Socket:          "/run/docker/plugins/buttervolume.sock",
		SocketMode:      0o660,
		TimerSeconds:    60,
		DTFormat:        names.DTFormat,
		LogLevel:        "info",
		LogJSON:         true,
		SSHPort:         22,
		DebugListen:     "127.0.0.1:9119",
	}
}

// fileCandidate is the default YAML config file location, overridable with
// BUTTERVOLUME_CONFIG.
const fileCandidate = "/etc/buttervolume/config.yml"

// Load resolves the configuration: defaults, overridden by a YAML file (if
// present), overridden by environment variables.
func Load() (Config, error) {
	cfg := defaults()

	path := os.Getenv("BUTTERVOLUME_CONFIG")
	if path == "" {
		path = fileCandidate
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("VOLUMES_PATH"); ok {
		cfg.VolumesPath = v
	}
	if v, ok := os.LookupEnv("SNAPSHOTS_PATH"); ok {
		cfg.SnapshotsPath = v
	}
	if v, ok := os.LookupEnv("TEST_REMOTE_PATH"); ok {
		cfg.TestRemotePath = v
	}
	if v, ok := os.LookupEnv("SCHEDULE"); ok {
		cfg.SchedulePath = v
	}
	if v, ok := os.LookupEnv("SCHEDULE_PAUSE_MARKER"); ok {
		cfg.PauseMarkerPath = v
	}
	if v, ok := os.LookupEnv("SOCKET"); ok {
		cfg.Socket = v
	}
	if v, ok := os.LookupEnv("SOCKET_MODE"); ok {
		if n, err := strconv.ParseUint(v, 8, 32); err == nil {
			cfg.SocketMode = uint32(n)
		}
	}
	if v, ok := os.LookupEnv("TIMER"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimerSeconds = n
		}
	}
	if v, ok := os.LookupEnv("DTFORMAT"); ok {
		cfg.DTFormat = v
	}
	if v, ok := os.LookupEnv("LOGLEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("LOG_JSON"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogJSON = b
		}
	}
	if v, ok := os.LookupEnv("SSH_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SSHPort = n
		}
	}
	if v, ok := os.LookupEnv("DEBUG_LISTEN"); ok {
		cfg.DebugListen = v
	}
}
