package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-ports/curloc/internal/models"
)

// ErrDaemonUnavailable wraps transport failures reaching the daemon socket.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Backend string `json:"backend"`
	Store   string `json:"store"`
	PID     int    `json:"pid"`
}

// WriteResponse is returned by POST /v1/location.
type WriteResponse struct {
	Window models.WindowID `json:"window"`
}

// EntriesResponse is returned by GET /v1/entries and POST /v1/prune.
type EntriesResponse struct {
	Entries []models.Entry `json:"entries"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// RemoteError is a failure reported by the daemon. It unwraps to the
// resolution sentinel named by Kind so errors.Is and exit codes behave the
// same as in-process calls.
type RemoteError struct {
	Status  int
	Message string
	Kind    string
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return models.ErrorForKind(e.Kind) }

// Client talks to a daemon over its unix socket.
type Client struct {
	socket string
	http   *http.Client
}

// NewClient returns a client for the daemon listening on socket.
func NewClient(socket string) *Client {
	var d net.Dialer
	tr := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return d.DialContext(ctx, "unix", socket)
		},
		MaxIdleConns:    1,
		IdleConnTimeout: 10 * time.Second,
	}
	return &Client{socket: socket, http: &http.Client{Transport: tr, Timeout: 30 * time.Second}}
}

// Socket returns the socket path the client dials.
func (c *Client) Socket() string { return c.socket }

// Health asks the daemon for its build and backend.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &out)
	return out, err
}

// Write registers a location through the daemon.
func (c *Client) Write(ctx context.Context, req models.WriteRequest) (models.WindowID, error) {
	var out WriteResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/location", req, &out); err != nil {
		return "", err
	}
	return out.Window, nil
}

// Get resolves the current location through the daemon.
func (c *Client) Get(ctx context.Context) (models.Resolution, error) {
	var out models.Resolution
	err := c.doJSON(ctx, http.MethodGet, "/v1/location", nil, &out)
	return out, err
}

// List returns every entry held by the daemon.
func (c *Client) List(ctx context.Context) ([]models.Entry, error) {
	var out EntriesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/entries", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Clear drops every entry held by the daemon.
func (c *Client) Clear(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/entries", nil, nil)
}

// Prune asks the daemon to evict entries of windows that no longer exist.
func (c *Client) Prune(ctx context.Context) ([]models.Entry, error) {
	var out EntriesResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/prune", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// doJSON executes a request, marshalling body as JSON and unmarshalling the
// response into out. Non-2xx replies become *RemoteError.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ipc: marshal: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://curloc"+path, bodyReader)
	if err != nil {
		return fmt.Errorf("ipc: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ipc: %s %s: %w: %w", method, path, ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		var er ErrorResponse
		if json.Unmarshal(raw, &er) != nil || er.Error == "" {
			er.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
		}
		return &RemoteError{Status: resp.StatusCode, Message: er.Error, Kind: er.Kind}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("ipc: decode: %w", err)
		}
	}
	return nil
}
