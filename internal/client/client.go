package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"mcpdeck/internal/api"
)

// Client talks to a running mcpdeck daemon over its REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client against baseURL, e.g. "http://localhost:8390".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ListServers fetches servers matching the filter.
func (c *Client) ListServers(ctx context.Context, filter api.ServerFilter) ([]*api.Server, error) {
	q := url.Values{}
	if filter.NameContains != "" {
		q.Set("name", filter.NameContains)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	path := "/api/v1/servers"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var servers []*api.Server
	if err := c.do(ctx, http.MethodGet, path, nil, &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// GetServer fetches one server by id.
func (c *Client) GetServer(ctx context.Context, id string) (*api.Server, error) {
	var srv api.Server
	if err := c.do(ctx, http.MethodGet, "/api/v1/servers/"+id, nil, &srv); err != nil {
		return nil, err
	}
	return &srv, nil
}

// ResolveServer accepts an id or display name and returns the server.
func (c *Client) ResolveServer(ctx context.Context, ref string) (*api.Server, error) {
	if srv, err := c.GetServer(ctx, ref); err == nil {
		return srv, nil
	}
	servers, err := c.ListServers(ctx, api.ServerFilter{NameContains: ref})
	if err != nil {
		return nil, err
	}
	for _, srv := range servers {
		if srv.Name == ref {
			return srv, nil
		}
	}
	return nil, fmt.Errorf("no server with id or name %q", ref)
}

// CreateServer registers a new server definition.
func (c *Client) CreateServer(ctx context.Context, name string, cfg api.ServerConfig) (*api.Server, error) {
	body := struct {
		Name   string           `json:"name"`
		Config api.ServerConfig `json:"config"`
	}{Name: name, Config: cfg}

	var srv api.Server
	if err := c.do(ctx, http.MethodPost, "/api/v1/servers", body, &srv); err != nil {
		return nil, err
	}
	return &srv, nil
}

// DeleteServer removes a stopped server.
func (c *Client) DeleteServer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/servers/"+id, nil, nil)
}

// StartServer requests a start and returns the accepted state.
func (c *Client) StartServer(ctx context.Context, id string) (*api.Server, error) {
	return c.lifecycleOp(ctx, id, "start")
}

// StopServer requests a stop and returns the accepted state.
func (c *Client) StopServer(ctx context.Context, id string) (*api.Server, error) {
	return c.lifecycleOp(ctx, id, "stop")
}

// RestartServer requests an atomic restart.
func (c *Client) RestartServer(ctx context.Context, id string) (*api.Server, error) {
	return c.lifecycleOp(ctx, id, "restart")
}

func (c *Client) lifecycleOp(ctx context.Context, id, op string) (*api.Server, error) {
	var srv api.Server
	if err := c.do(ctx, http.MethodPost, "/api/v1/servers/"+id+"/"+op, nil, &srv); err != nil {
		return nil, err
	}
	return &srv, nil
}

// WaitForStatus polls until the server reaches one of the wanted statuses
// or the context expires.
func (c *Client) WaitForStatus(ctx context.Context, id string, wanted ...api.ServerStatus) (*api.Server, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		srv, err := c.GetServer(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, status := range wanted {
			if srv.Status == status {
				return srv, nil
			}
		}
		select {
		case <-ctx.Done():
			return srv, ctx.Err()
		case <-ticker.C:
		}
	}
}

// do executes one request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
