// Package wmtest provides a scriptable in-memory window manager for tests.
package wmtest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/go-ports/curloc/internal/models"
	"github.com/go-ports/curloc/internal/wm"
)

var _ wm.Client = (*Fake)(nil)

// Fake is a wm.Client whose desktop state is set by the test.
type Fake struct {
	mu          sync.Mutex
	active      models.WindowID
	windows     []models.Window
	queryErrs   []error
	connectErrs []error
	conns       chan *Stream

	// Queries counts ActiveWindow, WindowPID and Windows calls.
	Queries atomic.Int32
}

// New returns an empty desktop.
func New() *Fake {
	return &Fake{conns: make(chan *Stream, 16)}
}

// Name implements wm.Client.
func (f *Fake) Name() string { return "fake" }

// AddWindow maps a new window owned by pid.
func (f *Fake) AddWindow(id models.WindowID, pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = slices.DeleteFunc(f.windows, func(w models.Window) bool { return w.ID == id })
	f.windows = append(f.windows, models.Window{ID: id, PID: pid})
}

// RemoveWindow unmaps id. The active window is cleared if it was id.
func (f *Fake) RemoveWindow(id models.WindowID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = slices.DeleteFunc(f.windows, func(w models.Window) bool { return w.ID == id })
	if f.active == id {
		f.active = ""
	}
}

// Focus makes id the active window; an empty id means nothing is focused.
func (f *Fake) Focus(id models.WindowID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = id
}

// FailQueries makes the next len(errs) queries return errs in order.
func (f *Fake) FailQueries(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryErrs = append(f.queryErrs, errs...)
}

// FailConnects makes the next len(errs) Events calls return errs in order.
func (f *Fake) FailConnects(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErrs = append(f.connectErrs, errs...)
}

// Conns delivers every stream opened by Events.
func (f *Fake) Conns() <-chan *Stream { return f.conns }

func (f *Fake) popQueryErr() error {
	f.Queries.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queryErrs) == 0 {
		return nil
	}
	err := f.queryErrs[0]
	f.queryErrs = f.queryErrs[1:]
	return err
}

// ActiveWindow implements wm.Client.
func (f *Fake) ActiveWindow(context.Context) (models.WindowID, error) {
	if err := f.popQueryErr(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == "" {
		return "", models.ErrNoActiveWindow
	}
	return f.active, nil
}

// WindowPID implements wm.Client.
func (f *Fake) WindowPID(_ context.Context, id models.WindowID) (int, error) {
	if err := f.popQueryErr(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.windows {
		if w.ID == id {
			return w.PID, nil
		}
	}
	return 0, fmt.Errorf("window %s: %w", id, models.ErrWindowGone)
}

// Windows implements wm.Client.
func (f *Fake) Windows(context.Context) ([]models.Window, error) {
	if err := f.popQueryErr(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.windows), nil
}

// Events implements wm.Client.
func (f *Fake) Events(ctx context.Context) (wm.EventStream, error) {
	f.mu.Lock()
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()

	s := &Stream{ctx: ctx, events: make(chan models.WindowEvent, 64), dropped: make(chan struct{})}
	f.conns <- s
	return s, nil
}

// Stream is one fake event connection.
type Stream struct {
	ctx     context.Context
	events  chan models.WindowEvent
	dropped chan struct{}
	once    sync.Once
}

// Send queues ev for the subscriber.
func (s *Stream) Send(ev models.WindowEvent) { s.events <- ev }

// Drop breaks the connection as if the compositor went away.
func (s *Stream) Drop() { s.once.Do(func() { close(s.dropped) }) }

// Next implements wm.EventStream. Queued events are delivered before a drop
// is reported.
func (s *Stream) Next() (models.WindowEvent, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	default:
	}
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.dropped:
		return models.WindowEvent{}, wm.ErrStreamClosed
	case <-s.ctx.Done():
		return models.WindowEvent{}, s.ctx.Err()
	}
}

// Close implements wm.EventStream.
func (s *Stream) Close() error {
	s.Drop()
	return nil
}
