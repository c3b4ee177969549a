package wm

import (
	"context"
	"fmt"

	"github.com/go-ports/curloc/internal/models"
)

// Static is a backend with a single window owned by a fixed pid. It serves
// desktops without a supported compositor and tests: the caller names the
// process that stands in for the focused window.
type Static struct {
	PID int
}

// StaticWindowID is the id Static reports for pid.
func StaticWindowID(pid int) models.WindowID {
	return models.WindowID(fmt.Sprintf("pid:%d", pid))
}

// Name implements Client.
func (s Static) Name() string { return "static" }

// ActiveWindow implements Client.
func (s Static) ActiveWindow(context.Context) (models.WindowID, error) {
	if s.PID <= 0 {
		return "", models.ErrNoActiveWindow
	}
	return StaticWindowID(s.PID), nil
}

// WindowPID implements Client.
func (s Static) WindowPID(_ context.Context, id models.WindowID) (int, error) {
	if s.PID <= 0 || id != StaticWindowID(s.PID) {
		return 0, fmt.Errorf("window %s: %w", id, models.ErrWindowGone)
	}
	return s.PID, nil
}

// Windows implements Client.
func (s Static) Windows(context.Context) ([]models.Window, error) {
	if s.PID <= 0 {
		return nil, nil
	}
	return []models.Window{{ID: StaticWindowID(s.PID), PID: s.PID, Class: "static"}}, nil
}

// Events implements Client. The window never changes, so the stream only
// ends with ctx.
func (s Static) Events(ctx context.Context) (EventStream, error) {
	return &staticStream{ctx: ctx, done: make(chan struct{})}, nil
}

type staticStream struct {
	ctx  context.Context
	done chan struct{}
}

func (s *staticStream) Next() (models.WindowEvent, error) {
	select {
	case <-s.ctx.Done():
		return models.WindowEvent{}, s.ctx.Err()
	case <-s.done:
		return models.WindowEvent{}, ErrStreamClosed
	}
}

func (s *staticStream) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

// Unavailable is the backend used when no compositor could be selected. Every
// query fails with Err, which wraps models.ErrWindowManagerUnreachable.
type Unavailable struct {
	Err error
}

// Name implements Client.
func (u Unavailable) Name() string { return "unavailable" }

func (u Unavailable) err() error {
	if u.Err != nil {
		return u.Err
	}
	return models.ErrWindowManagerUnreachable
}

// ActiveWindow implements Client.
func (u Unavailable) ActiveWindow(context.Context) (models.WindowID, error) { return "", u.err() }

// WindowPID implements Client.
func (u Unavailable) WindowPID(context.Context, models.WindowID) (int, error) { return 0, u.err() }

// Windows implements Client.
func (u Unavailable) Windows(context.Context) ([]models.Window, error) { return nil, u.err() }

// Events implements Client.
func (u Unavailable) Events(context.Context) (EventStream, error) { return nil, u.err() }
