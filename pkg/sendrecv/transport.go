package sendrecv

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	shellquote "github.com/kballard/go-shellquote"
)

// Transport performs the actual send|receive transfer and the best-effort
// remote-target cleanup used by the full-resend fallback.
type Transport interface {
	// SendReceive streams snapshotPath to host, incrementally against
	// parentPath when non-empty.
	SendReceive(ctx context.Context, snapshotPath, parentPath, host string) error
	// DeleteRemote best-effort deletes the would-be target for snapshot
	// name on host, ahead of a full resend.
	DeleteRemote(ctx context.Context, host, name string) error
}

// SSHTransport sends over `btrfs send | ssh <host> "btrfs receive <root>"`.
// The local send process and the ssh process are wired directly
// stdout-to-stdin; no shell is involved on the local side. The remote
// command is a single string interpreted by the remote's shell, so it is
// built with go-shellquote rather than naive concatenation.
type SSHTransport struct {
	Port       int
	RemoteRoot string
}

func (t *SSHTransport) port() string {
	if t.Port == 0 {
		return "22"
	}
	return strconv.Itoa(t.Port)
}

func (t *SSHTransport) SendReceive(ctx context.Context, snapshotPath, parentPath, host string) error {
	sendArgs := []string{"send"}
	if parentPath != "" {
		sendArgs = append(sendArgs, "-p", parentPath)
	}
	sendArgs = append(sendArgs, snapshotPath)

	sendCmd := exec.CommandContext(ctx, "btrfs", sendArgs...)
	var sendStderr bytes.Buffer
	sendCmd.Stderr = &sendStderr

	stdout, err := sendCmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("sendrecv: wiring send pipe: %w", err)
	}

	remoteCmd := shellquote.Join("btrfs", "receive", t.RemoteRoot)
	sshCmd := exec.CommandContext(ctx, "ssh", "-p", t.port(), host, remoteCmd)
	sshCmd.Stdin = stdout
	var sshStderr bytes.Buffer
	sshCmd.Stderr = &sshStderr

	if err := sendCmd.Start(); err != nil {
		return fmt.Errorf("sendrecv: starting send: %w", err)
	}
	if err := sshCmd.Start(); err != nil {
		_ = sendCmd.Wait()
		return fmt.Errorf("sendrecv: starting receive over ssh: %w", err)
	}

	sendErr := sendCmd.Wait()
	sshErr := sshCmd.Wait()
	if sendErr != nil || sshErr != nil {
		return fmt.Errorf("sendrecv: send/receive failed: send=%v (%s) receive=%v (%s)",
			sendErr, sendStderr.String(), sshErr, sshStderr.String())
	}
	return nil
}

func (t *SSHTransport) DeleteRemote(ctx context.Context, host, name string) error {
	remotePath := filepath.Join(t.RemoteRoot, name)
	remoteCmd := shellquote.Join("btrfs", "subvolume", "delete", remotePath)
	cmd := exec.CommandContext(ctx, "ssh", "-p", t.port(), host, remoteCmd)
	return cmd.Run()
}

// LocalTransport simulates the transfer against a local directory tree
// (TestRemotePath/<host>/...), used when a request sets Test=true so the
// send protocol can be exercised without a real second host.
type LocalTransport struct {
	RemoteRoot string
	Host       string
}

func (t *LocalTransport) hostRoot(host string) string {
	return filepath.Join(t.RemoteRoot, host)
}

func (t *LocalTransport) SendReceive(ctx context.Context, snapshotPath, parentPath, host string) error {
	root := t.hostRoot(host)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("sendrecv: creating local test remote root: %w", err)
	}

	sendArgs := []string{"send"}
	if parentPath != "" {
		sendArgs = append(sendArgs, "-p", parentPath)
	}
	sendArgs = append(sendArgs, snapshotPath)

	sendCmd := exec.CommandContext(ctx, "btrfs", sendArgs...)
	stdout, err := sendCmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("sendrecv: wiring send pipe: %w", err)
	}

	receiveCmd := exec.CommandContext(ctx, "btrfs", "receive", root)
	receiveCmd.Stdin = stdout
	var sendStderr, recvStderr bytes.Buffer
	sendCmd.Stderr = &sendStderr
	receiveCmd.Stderr = &recvStderr

	if err := sendCmd.Start(); err != nil {
		return fmt.Errorf("sendrecv: starting send: %w", err)
	}
	if err := receiveCmd.Start(); err != nil {
		_ = sendCmd.Wait()
		return fmt.Errorf("sendrecv: starting local receive: %w", err)
	}
	sendErr := sendCmd.Wait()
	recvErr := receiveCmd.Wait()
	if sendErr != nil || recvErr != nil {
		return fmt.Errorf("sendrecv: local send/receive failed: send=%v (%s) receive=%v (%s)",
			sendErr, sendStderr.String(), recvErr, recvStderr.String())
	}
	return nil
}

func (t *LocalTransport) DeleteRemote(ctx context.Context, host, name string) error {
	target := filepath.Join(t.hostRoot(host), name)
	cmd := exec.CommandContext(ctx, "btrfs", "subvolume", "delete", target)
	return cmd.Run()
}
