package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/anybox/buttervolume/pkg/config"
)

// pluginClient is a thin JSON-over-UNIX-socket caller against the same
// wire contract pkg/server exposes. It imposes no behavior of its own;
// every decision lives in the daemon on the other end of the socket.
type pluginClient struct {
	socketPath string
	http       *http.Client
}

func resolveSocket(cmd *cobra.Command) (string, error) {
	if socket, _ := cmd.Flags().GetString("socket"); socket != "" {
		return socket, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	return cfg.Socket, nil
}

func newPluginClient(cmd *cobra.Command) (*pluginClient, error) {
	socketPath, err := resolveSocket(cmd)
	if err != nil {
		return nil, err
	}
	return &pluginClient{
		socketPath: socketPath,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}, nil
}

// call posts req (nil for no body) to path and decodes the response into
// resp. It returns an error only for transport or decoding failures; the
// Err string every endpoint's response embeds is left in resp for the
// caller to check.
func (c *pluginClient) call(path string, req, resp interface{}) error {
	var body bytes.Buffer
	if req != nil {
		if err := json.NewEncoder(&body).Encode(req); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	httpResp, err := c.http.Post("http://unix"+path, "application/json", &body)
	if err != nil {
		return fmt.Errorf("calling %s over %s: %w", path, c.socketPath, err)
	}
	defer httpResp.Body.Close()

	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}
