// Package hyprland talks to the Hyprland compositor over its two unix
// sockets: the request socket answers JSON queries, the event socket streams
// "EVENT>>DATA" lines.
package hyprland

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-ports/curloc/internal/models"
	"github.com/go-ports/curloc/internal/wm"
)

const (
	requestSocket = ".socket.sock"
	eventSocket   = ".socket2.sock"

	defaultTimeout = 2 * time.Second
)

var _ wm.Client = (*Client)(nil)

// Client is a Hyprland wm.Client.
type Client struct {
	dir     string
	timeout time.Duration
	dialer  net.Dialer
}

// New locates the sockets for the Hyprland instance identified by signature
// (falling back to $HYPRLAND_INSTANCE_SIGNATURE). runtimeDir overrides
// $XDG_RUNTIME_DIR; the legacy /tmp/hypr location is tried last.
func New(runtimeDir, signature string) (*Client, error) {
	if signature == "" {
		signature = os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	}
	if signature == "" {
		return nil, fmt.Errorf("hyprland: HYPRLAND_INSTANCE_SIGNATURE is not set: %w", models.ErrWindowManagerUnreachable)
	}
	if runtimeDir == "" {
		runtimeDir = os.Getenv("XDG_RUNTIME_DIR")
	}

	var candidates []string
	if runtimeDir != "" {
		candidates = append(candidates, filepath.Join(runtimeDir, "hypr", signature))
	}
	candidates = append(candidates, filepath.Join("/tmp", "hypr", signature))

	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, requestSocket)); err == nil {
			return &Client{dir: dir, timeout: defaultTimeout}, nil
		}
	}
	return nil, fmt.Errorf("hyprland: no sockets for instance %q: %w", signature, models.ErrWindowManagerUnreachable)
}

// NewAt returns a client for sockets in dir without probing.
func NewAt(dir string) *Client {
	return &Client{dir: dir, timeout: defaultTimeout}
}

// Name implements wm.Client.
func (c *Client) Name() string { return "hyprland" }

// clientJSON is the subset of a `j/clients` / `j/activewindow` entry we use.
type clientJSON struct {
	Address string `json:"address"`
	PID     int    `json:"pid"`
	Class   string `json:"class"`
	Title   string `json:"title"`
	Mapped  *bool  `json:"mapped"`
}

func (w clientJSON) window() models.Window {
	return models.Window{ID: normalizeAddress(w.Address), PID: w.PID, Class: w.Class, Title: w.Title}
}

// ActiveWindow implements wm.Client.
func (c *Client) ActiveWindow(ctx context.Context) (models.WindowID, error) {
	var w clientJSON
	if err := c.query(ctx, "j/activewindow", &w); err != nil {
		return "", err
	}
	if w.Address == "" {
		return "", models.ErrNoActiveWindow
	}
	return normalizeAddress(w.Address), nil
}

// WindowPID implements wm.Client.
func (c *Client) WindowPID(ctx context.Context, id models.WindowID) (int, error) {
	ws, err := c.Windows(ctx)
	if err != nil {
		return 0, err
	}
	want := normalizeAddress(string(id))
	for _, w := range ws {
		if w.ID == want {
			return w.PID, nil
		}
	}
	return 0, fmt.Errorf("window %s: %w", id, models.ErrWindowGone)
}

// Windows implements wm.Client. Unmapped clients are skipped.
func (c *Client) Windows(ctx context.Context) ([]models.Window, error) {
	var raw []clientJSON
	if err := c.query(ctx, "j/clients", &raw); err != nil {
		return nil, err
	}
	out := make([]models.Window, 0, len(raw))
	for _, w := range raw {
		if w.Address == "" || (w.Mapped != nil && !*w.Mapped) {
			continue
		}
		out = append(out, w.window())
	}
	return out, nil
}

// query sends one command on a fresh request-socket connection and decodes
// the reply. Hyprland closes the connection after answering.
func (c *Client) query(ctx context.Context, cmd string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "unix", filepath.Join(c.dir, requestSocket))
	if err != nil {
		return fmt.Errorf("hyprland: dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := io.WriteString(conn, cmd); err != nil {
		return fmt.Errorf("hyprland: %s: write: %w", cmd, err)
	}
	body, err := io.ReadAll(conn)
	if err != nil {
		return fmt.Errorf("hyprland: %s: read: %w", cmd, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("hyprland: %s: decode %q: %w", cmd, truncate(body, 64), err)
	}
	return nil
}

// Events implements wm.Client.
func (c *Client) Events(ctx context.Context) (wm.EventStream, error) {
	conn, err := c.dialer.DialContext(ctx, "unix", filepath.Join(c.dir, eventSocket))
	if err != nil {
		return nil, fmt.Errorf("hyprland: dial events: %w", err)
	}
	s := &eventStream{conn: conn, sc: bufio.NewScanner(conn)}
	s.stop = context.AfterFunc(ctx, func() { _ = conn.Close() })
	return s, nil
}

type eventStream struct {
	conn net.Conn
	sc   *bufio.Scanner
	stop func() bool
}

// Next returns the next window event, skipping events we do not track.
func (s *eventStream) Next() (models.WindowEvent, error) {
	for s.sc.Scan() {
		if ev, ok := ParseEvent(s.sc.Text()); ok {
			return ev, nil
		}
	}
	if err := s.sc.Err(); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return models.WindowEvent{}, wm.ErrStreamClosed
		}
		return models.WindowEvent{}, fmt.Errorf("hyprland: events: %w", err)
	}
	return models.WindowEvent{}, fmt.Errorf("hyprland: events: %w", io.EOF)
}

func (s *eventStream) Close() error {
	s.stop()
	return s.conn.Close()
}

// ParseEvent decodes one event-socket line. It reports false for events that
// do not affect window lifetime or focus.
func ParseEvent(line string) (models.WindowEvent, bool) {
	name, data, ok := strings.Cut(strings.TrimSpace(line), ">>")
	if !ok {
		return models.WindowEvent{}, false
	}
	var kind models.EventKind
	switch name {
	case "openwindow":
		kind = models.EventCreated
	case "closewindow":
		kind = models.EventClosed
	case "activewindowv2":
		kind = models.EventFocused
	default:
		return models.WindowEvent{}, false
	}
	// openwindow carries ADDRESS,WORKSPACE,CLASS,TITLE.
	addr, _, _ := strings.Cut(data, ",")
	if strings.TrimSpace(addr) == "" {
		return models.WindowEvent{}, false
	}
	return models.WindowEvent{Kind: kind, Window: normalizeAddress(addr)}, true
}

// normalizeAddress renders addresses the same way whether they come from
// JSON ("0x55d1...") or the event socket ("55d1...").
func normalizeAddress(addr string) models.WindowID {
	a := strings.ToLower(strings.TrimSpace(addr))
	a = strings.TrimPrefix(a, "0x")
	return models.WindowID("0x" + a)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
