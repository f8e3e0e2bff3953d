// Package glowctl implements the command-line client for glowhostd: one
// subcommand per Host Manager operation, each a thin HTTP call against the
// host's REST surface (internal/httpapi). Structured as a Cobra command
// tree with persistent flags.
package glowctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"glowhost/pkg/types"
)

// Client is a thin HTTP client against a glowhostd instance.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client with a sane default timeout.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errResp types.ErrorResponse
		b, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(b, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, errResp.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if resp.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// AddNetwork posts a module definition for compilation and publication.
func (c *Client) AddNetwork(ctx context.Context, req any) error {
	return c.do(ctx, http.MethodPost, "/networks", req, nil)
}

// RemoveNetwork evicts a published network.
func (c *Client) RemoveNetwork(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/networks/"+name, nil, nil)
}

// ListNetworks returns every published or processing network.
func (c *Client) ListNetworks(ctx context.Context) ([]types.NetworkStatus, error) {
	var out []types.NetworkStatus
	err := c.do(ctx, http.MethodGet, "/networks", nil, &out)
	return out, err
}

// GetNetworkDAG fetches the compiled DAG for a published network.
func (c *Client) GetNetworkDAG(ctx context.Context, name string) (*types.CompiledDAG, error) {
	var out types.CompiledDAG
	if err := c.do(ctx, http.MethodGet, "/networks/"+name+"/dag", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Infer runs name synchronously against execCtx and returns the populated
// ExecContext.
func (c *Client) Infer(ctx context.Context, name string, execCtx *types.ExecContext) (*types.ExecContext, error) {
	var out types.ExecContext
	if err := c.do(ctx, http.MethodPost, "/networks/"+name+"/infer", execCtx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearHost tears down every network and releases all device resources.
func (c *Client) ClearHost(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/clear", nil, nil)
}

// Status fetches the host's aggregate status.
func (c *Client) Status(ctx context.Context) (*types.HostStatus, error) {
	var out types.HostStatus
	if err := c.do(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
