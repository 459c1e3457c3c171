package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anybox/buttervolume/pkg/config"
	"github.com/anybox/buttervolume/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "buttervolume",
	Short: "Copy-on-write btrfs volume driver for container runtimes",
	Long: `buttervolume backs container volumes with copy-on-write btrfs
subvolumes, exposing the Docker volume plugin contract over a UNIX socket
and a scheduler that runs snapshot, replicate, purge and synchronize jobs.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", true, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("socket", "", "Plugin socket path (overrides configured value)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(scheduleListCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
}

// initLogging resolves logging options from the config file/environment
// first, then lets explicitly-passed --log-level/--log-json flags override.
func initLogging() {
	logLevel := "info"
	logJSON := true
	if cfg, err := config.Load(); err == nil {
		if cfg.LogLevel != "" {
			logLevel = cfg.LogLevel
		}
		logJSON = cfg.LogJSON
	} else {
		fmt.Fprintf(os.Stderr, "warning: loading config: %v\n", err)
	}

	if f := rootCmd.PersistentFlags().Lookup("log-level"); f != nil && f.Changed {
		logLevel, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if f := rootCmd.PersistentFlags().Lookup("log-json"); f != nil && f.Changed {
		logJSON, _ = rootCmd.PersistentFlags().GetBool("log-json")
	}

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
