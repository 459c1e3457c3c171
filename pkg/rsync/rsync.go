// Package rsync implements the sync engine: an archive-style directory pull
// from one or more remote hosts into local volume paths, using rsync over
// ssh. A failure on one (volume, host) pair is collected and reported
// alongside the others rather than aborting the batch.
package rsync

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Puller runs rsync pulls for (volume, host) pairs.
type Puller struct {
	VolumesRoot string
	SSHPort     int

	// runCmd executes the built command and returns its combined output.
	// Defaults to actually running rsync; tests substitute a stub.
	runCmd func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New returns a Puller that shells out to the real rsync binary.
func New(volumesRoot string, sshPort int) *Puller {
	return &Puller{
		VolumesRoot: volumesRoot,
		SSHPort:     sshPort,
		runCmd: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

func (p *Puller) port() int {
	if p.SSHPort == 0 {
		return 22
	}
	return p.SSHPort
}

// Sync pulls, for every volume in volumes and every host in hosts, the
// remote volume directory into the local volume path: recursive, archive
// (preserve permissions/times/links), compressed in transit, and
// --update (never overwrite a destination file newer than the source).
// Every (volume, host) pair is attempted even if earlier pairs failed; all
// errors are joined with newline into the returned error.
func (p *Puller) Sync(ctx context.Context, volumes, hosts []string) error {
	var errs []string
	for _, volume := range volumes {
		local := filepath.Join(p.VolumesRoot, volume)
		for _, host := range hosts {
			if err := p.pullOne(ctx, volume, host, local); err != nil {
				errs = append(errs, fmt.Sprintf("%s from %s: %v", volume, host, err))
			}
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "\n"))
	}
	return nil
}

func (p *Puller) pullOne(ctx context.Context, volume, host, local string) error {
	remote := fmt.Sprintf("%s:%s/", host, filepath.Join(p.VolumesRoot, volume))
	sshOpt := fmt.Sprintf("ssh -p %s", strconv.Itoa(p.port()))

	out, err := p.runCmd(ctx, "rsync", "-a", "-z", "--update", "-e", sshOpt, remote, local+"/")
	if err != nil {
		return fmt.Errorf("rsync failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
