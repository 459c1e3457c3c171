package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anybox/buttervolume/pkg/driver"
	"github.com/anybox/buttervolume/pkg/registry"
	"github.com/anybox/buttervolume/pkg/subvolume"
)

func newTestServer(t *testing.T) (*Server, *http.Client) {
	t.Helper()
	root := t.TempDir()
	d := driver.New(
		subvolume.NewFake("testfs"),
		filepath.Join(root, "volumes"),
		filepath.Join(root, "snapshots"),
		filepath.Join(root, "test-remote"),
		22,
		registry.New(filepath.Join(root, "schedule.csv")),
		registry.NewPauseMarker(filepath.Join(root, "schedule.disabled")),
		zerolog.Nop(),
	)

	socketPath := filepath.Join(root, "plugin.sock")
	s := New(d, socketPath, 0o660, zerolog.Nop())

	go s.Serve()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	// Wait for the socket to appear before handing back a client.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", socketPath); err == nil {
			conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", socketPath)
			},
		},
	}
	return s, client
}

func post(t *testing.T, client *http.Client, path string, body interface{}) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := client.Post("http://unix"+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPluginActivateOverSocket(t *testing.T) {
	_, client := newTestServer(t)
	out := post(t, client, "/Plugin.Activate", nil)
	assert.Equal(t, "", out["Err"])
	assert.Contains(t, out["Implements"], "VolumeDriver")
}

func TestCreateAndListOverSocket(t *testing.T) {
	_, client := newTestServer(t)

	out := post(t, client, "/VolumeDriver.Create", map[string]string{"Name": "v1"})
	assert.Equal(t, "", out["Err"])

	list := post(t, client, "/VolumeDriver.List", nil)
	volumes, ok := list["Volumes"].([]interface{})
	require.True(t, ok)
	assert.Len(t, volumes, 1)
}

func TestSocketPermissionsAreRestrictive(t *testing.T) {
	root := t.TempDir()
	d := driver.New(
		subvolume.NewFake("testfs"),
		filepath.Join(root, "volumes"),
		filepath.Join(root, "snapshots"),
		filepath.Join(root, "test-remote"),
		22,
		registry.New(filepath.Join(root, "schedule.csv")),
		registry.NewPauseMarker(filepath.Join(root, "schedule.disabled")),
		zerolog.Nop(),
	)
	socketPath := filepath.Join(root, "plugin.sock")
	s := New(d, socketPath, 0o660, zerolog.Nop())
	go s.Serve()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if info, err := os.Stat(socketPath); err == nil {
			assert.Equal(t, os.FileMode(0o660), info.Mode().Perm())
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("socket never appeared")
}
