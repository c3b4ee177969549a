// Package wm defines the window manager capabilities the resolver consumes and
// the compositor-independent machinery around them: retries, reconnecting
// event subscriptions and the static single-window backend.
package wm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/go-ports/curloc/internal/config"
	"github.com/go-ports/curloc/internal/models"
)

// Client is implemented by each compositor adapter.
type Client interface {
	// ActiveWindow returns the focused window or models.ErrNoActiveWindow.
	ActiveWindow(ctx context.Context) (models.WindowID, error)
	// WindowPID returns the pid owning id or models.ErrWindowGone.
	WindowPID(ctx context.Context, id models.WindowID) (int, error)
	// Windows lists every live window with its owning pid.
	Windows(ctx context.Context) ([]models.Window, error)
	// Events opens one connection to the compositor's event feed.
	Events(ctx context.Context) (EventStream, error)
	// Name returns the backend name for logging.
	Name() string
}

// EventStream is a single connection's worth of window events. Next blocks
// until an event arrives; any error means the connection is finished.
type EventStream interface {
	Next() (models.WindowEvent, error)
	Close() error
}

// ErrStreamClosed is returned by EventStream.Next after Close.
var ErrStreamClosed = errors.New("wm: event stream closed")

// Policy bounds retries against the window manager: the first attempt is
// immediate, later ones back off exponentially up to Max, and at most
// Attempts tries are made in total.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Attempts   int
}

// PolicyFromConfig converts reconnect settings into a Policy.
func PolicyFromConfig(rc config.ReconnectConfig) Policy {
	return Policy{
		Initial:    rc.Initial,
		Max:        rc.Max,
		Multiplier: rc.Multiplier,
		Attempts:   rc.Attempts,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		b.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		b.MaxInterval = p.Max
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	// The attempt budget is the only stop condition.
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}
