package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// wireResponse is the Err field every plugin contract response embeds.
type wireResponse struct {
	Err string `json:"Err"`
}

func (r wireResponse) asError() error {
	if r.Err == "" {
		return nil
	}
	return fmt.Errorf("%s", r.Err)
}

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		var resp wireResponse
		if err := c.call("/VolumeDriver.Create", map[string]string{"Name": args[0]}, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		fmt.Printf("volume created: %s\n", args[0])
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		var resp wireResponse
		if err := c.call("/VolumeDriver.Remove", map[string]string{"Name": args[0]}, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		fmt.Printf("volume removed: %s\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List volumes",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		var resp struct {
			wireResponse
			Volumes []struct {
				Name       string `json:"Name"`
				Mountpoint string `json:"Mountpoint"`
			} `json:"Volumes"`
		}
		if err := c.call("/VolumeDriver.List", nil, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		for _, v := range resp.Volumes {
			fmt.Printf("%-20s %s\n", v.Name, v.Mountpoint)
		}
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot NAME",
	Short: "Take a snapshot of a volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		var resp struct {
			wireResponse
			Snapshot string `json:"Snapshot"`
		}
		if err := c.call("/VolumeDriver.Snapshot", map[string]string{"Name": args[0]}, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		fmt.Println(resp.Snapshot)
		return nil
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots [NAME]",
	Short: "List snapshots, optionally filtered to one volume",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		var resp struct {
			wireResponse
			Snapshots []string `json:"Snapshots"`
		}
		if err := c.call("/VolumeDriver.Snapshot.List", map[string]string{"Name": name}, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		for _, s := range resp.Snapshots {
			fmt.Println(s)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send SNAPSHOT HOST",
	Short: "Send a snapshot (VOLUME@TIMESTAMP) to a remote host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		test, _ := cmd.Flags().GetBool("test")
		var resp wireResponse
		req := map[string]interface{}{"Name": args[0], "Host": args[1], "Test": test}
		if err := c.call("/VolumeDriver.Snapshot.Send", req, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		fmt.Printf("sent %s to %s\n", args[0], args[1])
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge NAME PATTERN",
	Short: "Purge a volume's snapshots against a retention pattern",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		dryrun, _ := cmd.Flags().GetBool("dryrun")
		var resp wireResponse
		req := map[string]interface{}{"Name": args[0], "Pattern": args[1], "Dryrun": dryrun}
		if err := c.call("/VolumeDriver.Snapshots.Purge", req, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		fmt.Printf("purged %s against %s\n", args[0], args[1])
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync --hosts HOST[,HOST...] --volumes VOLUME[,VOLUME...]",
	Short: "Pull volumes from remote hosts via rsync",
	RunE: func(cmd *cobra.Command, args []string) error {
		hosts, _ := cmd.Flags().GetStringSlice("hosts")
		volumes, _ := cmd.Flags().GetStringSlice("volumes")
		if len(hosts) == 0 || len(volumes) == 0 {
			return fmt.Errorf("--hosts and --volumes are required")
		}
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		test, _ := cmd.Flags().GetBool("test")
		var resp wireResponse
		req := map[string]interface{}{"Volumes": volumes, "Hosts": hosts, "Test": test}
		if err := c.call("/VolumeDriver.Volume.Sync", req, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		fmt.Printf("synced %s from %s\n", strings.Join(volumes, ","), strings.Join(hosts, ","))
		return nil
	},
}

var cloneCmd = &cobra.Command{
	Use:   "clone NAME TARGET",
	Short: "Clone a volume into a new writable target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		var resp wireResponse
		req := map[string]string{"Name": args[0], "Target": args[1]}
		if err := c.call("/VolumeDriver.Clone", req, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		fmt.Printf("cloned %s to %s\n", args[0], args[1])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore NAME [TARGET]",
	Short: "Restore a volume from a snapshot",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		target := ""
		if len(args) == 2 {
			target = args[1]
		}
		var resp struct {
			wireResponse
			VolumeBackup string `json:"VolumeBackup"`
		}
		req := map[string]string{"Name": args[0], "Target": target}
		if err := c.call("/VolumeDriver.Snapshot.Restore", req, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		if resp.VolumeBackup != "" {
			fmt.Printf("restored, previous volume backed up as %s\n", resp.VolumeBackup)
		} else {
			fmt.Println("restored")
		}
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule NAME ACTION TIMER",
	Short: "Upsert a scheduled job (TIMER in minutes, 0 removes the job)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		var timer int
		if _, err := fmt.Sscanf(args[2], "%d", &timer); err != nil {
			return fmt.Errorf("invalid timer %q: %w", args[2], err)
		}
		var resp wireResponse
		req := map[string]interface{}{"Name": args[0], "Action": args[1], "Timer": timer}
		if err := c.call("/VolumeDriver.Schedule", req, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		fmt.Println("schedule updated")
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "schedule-list",
	Short: "List scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		var resp struct {
			wireResponse
			Schedule []struct {
				Name   string `json:"Name"`
				Action string `json:"Action"`
				Timer  int    `json:"Timer"`
				Active bool   `json:"Active"`
			} `json:"Schedule"`
		}
		if err := c.call("/VolumeDriver.Schedule.List", nil, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		for _, j := range resp.Schedule {
			fmt.Printf("%-20s %-30s %-6d %v\n", j.Name, j.Action, j.Timer, j.Active)
		}
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the scheduler globally",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		var resp wireResponse
		if err := c.call("/VolumeDriver.Schedule.Pause", nil, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		fmt.Println("scheduler paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPluginClient(cmd)
		if err != nil {
			return err
		}
		var resp wireResponse
		if err := c.call("/VolumeDriver.Schedule.Resume", nil, &resp); err != nil {
			return err
		}
		if err := resp.asError(); err != nil {
			return err
		}
		fmt.Println("scheduler resumed")
		return nil
	},
}

func init() {
	sendCmd.Flags().Bool("test", false, "simulate against the local test-remote root instead of a real ssh host")
	purgeCmd.Flags().Bool("dryrun", false, "report what would be purged without deleting anything")
	syncCmd.Flags().StringSlice("hosts", nil, "remote hosts to pull from")
	syncCmd.Flags().StringSlice("volumes", nil, "volumes to sync")
	syncCmd.Flags().Bool("test", false, "use the test-remote root in place of the volumes root on both ends (rsync still runs over ssh to each host)")
}
